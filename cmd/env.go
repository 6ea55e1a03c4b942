package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/baseline"
	"github.com/tcdsagency/renewals/internal/check"
	"github.com/tcdsagency/renewals/internal/compare"
	"github.com/tcdsagency/renewals/internal/config"
	"github.com/tcdsagency/renewals/internal/renewal"
	"github.com/tcdsagency/renewals/internal/store"
)

// appEnv holds the store and service shared by the subcommands.
type appEnv struct {
	Store   store.Store
	Service *renewal.Service
}

// Close releases the store.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		return store.NewSQLite(sc.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// buildService wires the state machine from configuration onto st.
func buildService(c *config.Config, st store.Store, opts ...renewal.Option) (*renewal.Service, error) {
	ruleCfg, err := c.Check.RuleConfig()
	if err != nil {
		return nil, eris.Wrap(err, "check rules")
	}
	provider := baseline.NewResilient(
		baseline.NewArchiveProvider(st, c.Baseline.MatchCarrier),
		c.Baseline.Resilience(),
	)
	opts = append([]renewal.Option{renewal.WithAuditRetry(c.Audit.Retry())}, opts...)
	return renewal.NewService(st, st, provider,
		compare.NewEngine(c.Compare),
		check.NewEngine(check.DefaultRules(ruleCfg), ruleCfg),
		opts...,
	), nil
}

// initApp validates cfg for mode, opens and migrates the store and builds
// the service. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	svc, err := buildService(cfg, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	zap.L().Debug("store ready", zap.String("driver", cfg.Store.Driver))
	return &appEnv{Store: st, Service: svc}, nil
}

func readJSONFile(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck
	if err := json.NewDecoder(f).Decode(dst); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
