package baseline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/resilience"
)

// Config controls the per-attempt timeout, retries and circuit breaking
// applied around a Provider.
type Config struct {
	Timeout time.Duration
	Retry   resilience.RetryConfig
	Circuit resilience.CircuitBreakerConfig
}

// DefaultConfig returns a 10s timeout with the stock retry and breaker.
func DefaultConfig() Config {
	return Config{
		Timeout: 10 * time.Second,
		Retry:   resilience.DefaultRetryConfig(),
		Circuit: resilience.DefaultCircuitBreakerConfig(),
	}
}

// Resilient wraps a Provider so slow or flaky lookups are bounded at this
// boundary and never inside the comparison core.
type Resilient struct {
	next    Provider
	cfg     Config
	breaker *resilience.CircuitBreaker
	log     *zap.Logger
}

// NewResilient wraps next.
func NewResilient(next Provider, cfg Config) *Resilient {
	log := zap.L().With(zap.String("component", "baseline"))
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("baseline", "get_baseline")
	}
	if cfg.Circuit.OnStateChange == nil {
		cfg.Circuit.OnStateChange = func(from, to resilience.CircuitState) {
			log.Warn("baseline circuit state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		}
	}
	return &Resilient{
		next:    next,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(cfg.Circuit),
		log:     log,
	}
}

type lookup struct {
	snap  *model.Snapshot
	found bool
}

// GetBaseline implements Provider.
func (r *Resilient) GetBaseline(ctx context.Context, tenantID, policyNumber, carrier string, effective time.Time) (*model.Snapshot, bool, error) {
	res, err := resilience.DoVal(ctx, r.cfg.Retry, func(ctx context.Context) (lookup, error) {
		return resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (lookup, error) {
			if r.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
				defer cancel()
			}
			snap, found, err := r.next.GetBaseline(ctx, tenantID, policyNumber, carrier, effective)
			return lookup{snap: snap, found: found}, err
		})
	})
	if err != nil {
		r.log.Error("baseline lookup failed",
			zap.String("policy_number", policyNumber),
			zap.String("class", resilience.Classify(err)),
			zap.Error(err),
		)
		return nil, false, err
	}
	return res.snap, res.found, nil
}

// State exposes the breaker state for health reporting.
func (r *Resilient) State() resilience.CircuitState {
	return r.breaker.State()
}
