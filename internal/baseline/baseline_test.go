package baseline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/resilience"
	"github.com/tcdsagency/renewals/internal/store"
)

type stubArchive struct {
	snap    *model.Snapshot
	err     error
	carrier string
}

func (a *stubArchive) LatestSnapshot(_ context.Context, _, _, carrier string, _ time.Time) (*model.Snapshot, error) {
	a.carrier = carrier
	return a.snap, a.err
}

var effective = time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

func TestArchiveProvider(t *testing.T) {
	snap := model.NewAutoSnapshot(model.PolicyInfo{PolicyNumber: "PA-1"}, nil, nil)

	t.Run("found", func(t *testing.T) {
		a := &stubArchive{snap: snap}
		got, found, err := NewArchiveProvider(a, true).GetBaseline(context.Background(), "t1", "PA-1", "Acme", effective)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Same(t, snap, got)
		assert.Equal(t, "Acme", a.carrier)
	})

	t.Run("not found is not an error", func(t *testing.T) {
		a := &stubArchive{err: eris.Wrap(store.ErrNotFound, "sqlite: no archived term")}
		got, found, err := NewArchiveProvider(a, false).GetBaseline(context.Background(), "t1", "PA-1", "Acme", effective)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, got)
		assert.Empty(t, a.carrier)
	})

	t.Run("store failure", func(t *testing.T) {
		a := &stubArchive{err: errors.New("disk on fire")}
		_, _, err := NewArchiveProvider(a, false).GetBaseline(context.Background(), "t1", "PA-1", "", effective)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "baseline: archive lookup PA-1")
	})
}

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	cfg.Retry.InitialBackoff = time.Millisecond
	cfg.Retry.MaxBackoff = 2 * time.Millisecond
	cfg.Circuit.FailureThreshold = 2
	cfg.Circuit.ResetTimeout = time.Hour
	return cfg
}

func TestResilient_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	snap := model.NewAutoSnapshot(model.PolicyInfo{PolicyNumber: "PA-1"}, nil, nil)
	next := ProviderFunc(func(context.Context, string, string, string, time.Time) (*model.Snapshot, bool, error) {
		if calls.Add(1) == 1 {
			return nil, false, resilience.Transient(errors.New("ams timeout"))
		}
		return snap, true, nil
	})

	cfg := fastConfig()
	cfg.Circuit.FailureThreshold = 5
	got, found, err := NewResilient(next, cfg).GetBaseline(context.Background(), "t1", "PA-1", "", effective)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Same(t, snap, got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResilient_PermanentNotRetried(t *testing.T) {
	var calls atomic.Int32
	next := ProviderFunc(func(context.Context, string, string, string, time.Time) (*model.Snapshot, bool, error) {
		calls.Add(1)
		return nil, false, errors.New("policy number malformed")
	})

	_, _, err := NewResilient(next, fastConfig()).GetBaseline(context.Background(), "t1", "PA-1", "", effective)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestResilient_TimeoutPerAttempt(t *testing.T) {
	var calls atomic.Int32
	next := ProviderFunc(func(ctx context.Context, _, _, _ string, _ time.Time) (*model.Snapshot, bool, error) {
		calls.Add(1)
		<-ctx.Done()
		return nil, false, ctx.Err()
	})

	cfg := fastConfig()
	cfg.Timeout = 5 * time.Millisecond
	cfg.Circuit.FailureThreshold = 10
	_, _, err := NewResilient(next, cfg).GetBaseline(context.Background(), "t1", "PA-1", "", effective)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResilient_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	next := ProviderFunc(func(context.Context, string, string, string, time.Time) (*model.Snapshot, bool, error) {
		calls.Add(1)
		return nil, false, errors.New("ams down")
	})

	r := NewResilient(next, fastConfig())
	for i := 0; i < 2; i++ {
		_, _, err := r.GetBaseline(context.Background(), "t1", "PA-1", "", effective)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.CircuitOpen, r.State())

	_, _, err := r.GetBaseline(context.Background(), "t1", "PA-1", "", effective)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestResilient_NotFoundPassesThrough(t *testing.T) {
	next := ProviderFunc(func(context.Context, string, string, string, time.Time) (*model.Snapshot, bool, error) {
		return nil, false, nil
	})
	got, found, err := NewResilient(next, fastConfig()).GetBaseline(context.Background(), "t1", "PA-1", "", effective)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}
