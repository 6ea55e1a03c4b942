// Package baseline supplies prior-term snapshots for renewal comparison.
package baseline

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/store"
)

// Provider returns the baseline term for a renewal. A missing baseline is
// (nil, false, nil), not an error.
type Provider interface {
	GetBaseline(ctx context.Context, tenantID, policyNumber, carrier string, effective time.Time) (*model.Snapshot, bool, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, tenantID, policyNumber, carrier string, effective time.Time) (*model.Snapshot, bool, error)

// GetBaseline calls f.
func (f ProviderFunc) GetBaseline(ctx context.Context, tenantID, policyNumber, carrier string, effective time.Time) (*model.Snapshot, bool, error) {
	return f(ctx, tenantID, policyNumber, carrier, effective)
}

// Archive is the slice of store.Store the archive provider reads.
type Archive interface {
	LatestSnapshot(ctx context.Context, tenantID, policyNumber, carrier string, before time.Time) (*model.Snapshot, error)
}

// ArchiveProvider serves baselines from the snapshot archive: the latest
// archived term for the policy effective before the renewal.
type ArchiveProvider struct {
	archive Archive
	// MatchCarrier restricts baselines to the renewal's carrier.
	MatchCarrier bool
}

// NewArchiveProvider creates an ArchiveProvider.
func NewArchiveProvider(a Archive, matchCarrier bool) *ArchiveProvider {
	return &ArchiveProvider{archive: a, MatchCarrier: matchCarrier}
}

// GetBaseline implements Provider.
func (p *ArchiveProvider) GetBaseline(ctx context.Context, tenantID, policyNumber, carrier string, effective time.Time) (*model.Snapshot, bool, error) {
	if !p.MatchCarrier {
		carrier = ""
	}
	snap, err := p.archive.LatestSnapshot(ctx, tenantID, policyNumber, carrier, effective)
	if errors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "baseline: archive lookup %s", policyNumber)
	}
	return snap, true, nil
}
