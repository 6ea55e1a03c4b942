package syncintent

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/resilience"
)

// Outbox is the intent storage the drainer reads and acknowledges.
type Outbox interface {
	PendingSyncIntents(ctx context.Context, limit, maxAttempts int) ([]model.SyncIntent, error)
	MarkSyncDispatched(ctx context.Context, id string, at time.Time) error
	MarkSyncFailed(ctx context.Context, id, reason string) error
}

// DrainResult counts one pass.
type DrainResult struct {
	Dispatched int `json:"dispatched"`
	Failed     int `json:"failed"`
}

// Drainer moves pending intents into the dispatcher.
type Drainer struct {
	outbox     Outbox
	dispatcher Dispatcher
	// MaxAttempts parks an intent after this many failed dispatches. Parked
	// intents are no longer listed, so they never hold back newer ones. Zero
	// means retry forever.
	MaxAttempts int
	now         func() time.Time
	log         *zap.Logger
}

// NewDrainer wires a Drainer.
func NewDrainer(outbox Outbox, dispatcher Dispatcher, maxAttempts int) *Drainer {
	return &Drainer{
		outbox:      outbox,
		dispatcher:  dispatcher,
		MaxAttempts: maxAttempts,
		now:         time.Now,
		log:         zap.L().With(zap.String("component", "syncintent.drain")),
	}
}

// Drain dispatches up to limit pending intents, oldest first. A failed
// dispatch is recorded on the intent and left pending for the next pass.
func (d *Drainer) Drain(ctx context.Context, limit int) (DrainResult, error) {
	var res DrainResult
	intents, err := d.outbox.PendingSyncIntents(ctx, limit, d.MaxAttempts)
	if err != nil {
		return res, eris.Wrap(err, "syncintent: list pending")
	}

	for _, in := range intents {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		iLog := d.log.With(
			zap.String("intent_id", in.ID),
			zap.String("record_id", in.RecordID),
			zap.String("kind", string(in.Kind)),
		)
		if err := d.dispatcher.Dispatch(ctx, in); err != nil {
			iLog.Error("dispatch failed", zap.Error(err), zap.String("class", resilience.Classify(err)))
			if markErr := d.outbox.MarkSyncFailed(ctx, in.ID, err.Error()); markErr != nil {
				return res, eris.Wrapf(markErr, "syncintent: record failure for %s", in.ID)
			}
			if d.MaxAttempts > 0 && in.Attempts+1 >= d.MaxAttempts {
				iLog.Warn("intent parked after repeated failures",
					zap.Int("attempts", in.Attempts+1),
				)
			}
			res.Failed++
			continue
		}
		if err := d.outbox.MarkSyncDispatched(ctx, in.ID, d.now().UTC()); err != nil {
			return res, eris.Wrapf(err, "syncintent: acknowledge %s", in.ID)
		}
		res.Dispatched++
	}

	if len(intents) > 0 {
		d.log.Info("drain complete",
			zap.Int("dispatched", res.Dispatched),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}
