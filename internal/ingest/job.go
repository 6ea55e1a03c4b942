// Package ingest creates renewal records for policies nearing expiration.
package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
)

// Source lists policies expiring between two dates.
type Source interface {
	ExpiringPolicies(ctx context.Context, tenantID string, from, to time.Time) ([]renewal.IngestRequest, error)
}

// Ingester creates one record per policy. Implemented by *renewal.Service.
type Ingester interface {
	Ingest(ctx context.Context, req renewal.IngestRequest) (*model.Record, bool, error)
}

// Config controls a Job.
type Config struct {
	// WindowDays is how far ahead of today expiring policies are picked up.
	WindowDays int `yaml:"window_days" mapstructure:"window_days"`
	// Concurrency bounds in-flight Ingest calls.
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	// LookupsPerSecond throttles Ingest calls, each of which hits the
	// baseline provider. Zero disables throttling.
	LookupsPerSecond float64 `yaml:"lookups_per_second" mapstructure:"lookups_per_second"`
}

// DefaultConfig returns the stock batch settings.
func DefaultConfig() Config {
	return Config{WindowDays: 60, Concurrency: 4, LookupsPerSecond: 5}
}

// Result counts a run's outcomes.
type Result struct {
	Scanned  int64 `json:"scanned"`
	Created  int64 `json:"created"`
	Existing int64 `json:"existing"`
	Failed   int64 `json:"failed"`
}

// Job is the scheduled ingestion run. Re-running it is safe: records are
// keyed by policy and renewal effective date.
type Job struct {
	src     Source
	ing     Ingester
	cfg     Config
	limiter *rate.Limiter
	now     func() time.Time
}

// NewJob wires a Job.
func NewJob(src Source, ing Ingester, cfg Config) *Job {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultConfig().WindowDays
	}
	limit := rate.Inf
	burst := cfg.Concurrency
	if cfg.LookupsPerSecond > 0 {
		limit = rate.Limit(cfg.LookupsPerSecond)
	}
	return &Job{
		src:     src,
		ing:     ing,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Run ingests every policy of the tenant expiring within the window.
// Individual failures are logged and counted; only a source failure or
// cancellation fails the run.
func (j *Job) Run(ctx context.Context, tenantID string) (Result, error) {
	log := zap.L().With(zap.String("component", "ingest.job"), zap.String("tenant_id", tenantID))

	from := j.now().UTC()
	to := from.AddDate(0, 0, j.cfg.WindowDays)
	policies, err := j.src.ExpiringPolicies(ctx, tenantID, from, to)
	if err != nil {
		return Result{}, eris.Wrap(err, "ingest: list expiring policies")
	}
	log.Info("expiring policies", zap.Int("count", len(policies)),
		zap.Time("from", from), zap.Time("to", to))

	var created, existing, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.cfg.Concurrency)

	for _, req := range policies {
		req := req
		g.Go(func() error {
			if err := j.limiter.Wait(gctx); err != nil {
				return err
			}
			pLog := log.With(zap.String("policy_number", req.PolicyNumber))

			rec, isNew, err := j.ing.Ingest(gctx, req)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				pLog.Error("ingest failed", zap.Error(err))
				failed.Add(1)
				return nil
			}
			if !isNew {
				existing.Add(1)
				return nil
			}
			pLog.Debug("record created",
				zap.String("record_id", rec.ID),
				zap.String("status", string(rec.Status)),
			)
			created.Add(1)
			return nil
		})
	}

	res := Result{Scanned: int64(len(policies))}
	err = g.Wait()
	res.Created, res.Existing, res.Failed = created.Load(), existing.Load(), failed.Load()
	if err != nil {
		return res, err
	}

	log.Info("ingest run complete",
		zap.Int64("created", res.Created),
		zap.Int64("existing", res.Existing),
		zap.Int64("failed", res.Failed),
	)
	return res, nil
}
