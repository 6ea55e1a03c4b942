package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tcdsagency/renewals/internal/api"
	"github.com/tcdsagency/renewals/internal/baseline"
	"github.com/tcdsagency/renewals/internal/check"
	"github.com/tcdsagency/renewals/internal/compare"
	"github.com/tcdsagency/renewals/internal/ingest"
	"github.com/tcdsagency/renewals/internal/resilience"
	"github.com/tcdsagency/renewals/internal/syncintent"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig               `yaml:"store" mapstructure:"store"`
	Log      LogConfig                 `yaml:"log" mapstructure:"log"`
	Server   api.Config                `yaml:"server" mapstructure:"server"`
	Compare  compare.Config            `yaml:"compare" mapstructure:"compare"`
	Check    CheckConfig               `yaml:"check" mapstructure:"check"`
	Baseline BaselineConfig            `yaml:"baseline" mapstructure:"baseline"`
	Ingest   ingest.Config             `yaml:"ingest" mapstructure:"ingest"`
	Audit    AuditConfig               `yaml:"audit" mapstructure:"audit"`
	Temporal syncintent.TemporalConfig `yaml:"temporal" mapstructure:"temporal"`
	Sync     SyncConfig                `yaml:"sync" mapstructure:"sync"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// CheckConfig configures the check rules. Values here override the stock
// rule config; RulesFile then overlays the per-carrier and per-state tables.
type CheckConfig struct {
	RulesFile             string            `yaml:"rules_file" mapstructure:"rules_file"`
	PremiumOutlierPercent float64           `yaml:"premium_outlier_percent" mapstructure:"premium_outlier_percent"`
	LapseToleranceDays    int               `yaml:"lapse_tolerance_days" mapstructure:"lapse_tolerance_days"`
	SeverityOverrides     map[string]string `yaml:"severity_overrides" mapstructure:"severity_overrides"`
}

// BaselineConfig bounds baseline lookups.
type BaselineConfig struct {
	TimeoutSecs      int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int  `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int  `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	FailureThreshold int  `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int  `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	MatchCarrier     bool `yaml:"match_carrier" mapstructure:"match_carrier"`
}

// AuditConfig controls best-effort audit appends.
type AuditConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
}

// SyncConfig controls the outbox drain.
type SyncConfig struct {
	BatchSize    int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxAttempts  int `yaml:"max_attempts" mapstructure:"max_attempts"`
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RENEWALS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "renewals.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("compare.reshop_premium_percent", 10.0)
	v.SetDefault("compare.review_premium_percent", 5.0)
	v.SetDefault("compare.reshop_negative_count", 3)
	v.SetDefault("check.rules_file", "")
	v.SetDefault("check.premium_outlier_percent", 25.0)
	v.SetDefault("check.lapse_tolerance_days", 0)
	v.SetDefault("baseline.timeout_secs", 10)
	v.SetDefault("baseline.max_attempts", 3)
	v.SetDefault("baseline.initial_backoff_ms", 250)
	v.SetDefault("baseline.failure_threshold", 5)
	v.SetDefault("baseline.reset_timeout_secs", 30)
	v.SetDefault("baseline.match_carrier", false)
	v.SetDefault("ingest.window_days", 60)
	v.SetDefault("ingest.concurrency", 4)
	v.SetDefault("ingest.lookups_per_second", 5.0)
	v.SetDefault("audit.max_attempts", 3)
	v.SetDefault("audit.initial_backoff_ms", 100)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "renewal-sync")
	v.SetDefault("temporal.workflow", "ReshopSync")
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.max_attempts", 10)
	v.SetDefault("sync.interval_secs", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. All problems are reported
// together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve", "compare", "ingest", "decide", "export", "sync", "migrate", "archive":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
		if c.Store.MaxConns < 1 {
			errs = append(errs, "store.max_conns must be >= 1")
		}
		if c.Store.MinConns < 0 || c.Store.MinConns > c.Store.MaxConns {
			errs = append(errs, "store.min_conns must be between 0 and store.max_conns")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlite_path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
	}

	if c.Compare.ReviewPremiumPercent < 0 || c.Compare.ReshopPremiumPercent < 0 {
		errs = append(errs, "compare premium thresholds must be >= 0")
	}
	if c.Compare.ReviewPremiumPercent > c.Compare.ReshopPremiumPercent {
		errs = append(errs, "compare.review_premium_percent must not exceed compare.reshop_premium_percent")
	}
	if c.Compare.ReshopNegativeCount < 0 {
		errs = append(errs, "compare.reshop_negative_count must be >= 0")
	}
	if c.Check.PremiumOutlierPercent < 0 {
		errs = append(errs, "check.premium_outlier_percent must be >= 0")
	}
	if c.Check.LapseToleranceDays < 0 {
		errs = append(errs, "check.lapse_tolerance_days must be >= 0")
	}
	if c.Baseline.TimeoutSecs < 1 {
		errs = append(errs, "baseline.timeout_secs must be >= 1")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "ingest":
		if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 50 {
			errs = append(errs, "ingest.concurrency must be between 1 and 50")
		}
		if c.Ingest.WindowDays < 1 {
			errs = append(errs, "ingest.window_days must be >= 1")
		}
		if c.Ingest.LookupsPerSecond < 0 {
			errs = append(errs, "ingest.lookups_per_second must be >= 0")
		}
	case "sync":
		if c.Temporal.HostPort == "" {
			errs = append(errs, "temporal.host_port is required")
		}
		if c.Temporal.TaskQueue == "" {
			errs = append(errs, "temporal.task_queue is required")
		}
		if c.Temporal.Workflow == "" {
			errs = append(errs, "temporal.workflow is required")
		}
		if c.Sync.BatchSize < 1 {
			errs = append(errs, "sync.batch_size must be >= 1")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
	}
	return nil
}

// RuleConfig resolves the check rule configuration: stock values, then the
// values in this section, then the rules file.
func (c CheckConfig) RuleConfig() (check.Config, error) {
	out := check.DefaultConfig()
	if c.PremiumOutlierPercent > 0 {
		out.PremiumOutlierPercent = c.PremiumOutlierPercent
	}
	if c.LapseToleranceDays > 0 {
		out.LapseToleranceDays = c.LapseToleranceDays
	}
	for id, sev := range c.SeverityOverrides {
		out.SeverityOverrides[id] = sev
	}
	if c.RulesFile != "" {
		return check.LoadRuleConfig(c.RulesFile, out)
	}
	if err := out.Validate(); err != nil {
		return check.Config{}, err
	}
	return out, nil
}

// Resilience builds the timeout, retry and breaker settings for baseline lookups.
func (c BaselineConfig) Resilience() baseline.Config {
	cfg := baseline.DefaultConfig()
	if c.TimeoutSecs > 0 {
		cfg.Timeout = time.Duration(c.TimeoutSecs) * time.Second
	}
	cfg.Retry = resilience.RetryFrom(c.MaxAttempts, c.InitialBackoffMs)
	cfg.Circuit = resilience.CircuitFrom(c.FailureThreshold, c.ResetTimeoutSecs)
	return cfg
}

// Retry builds the audit append retry policy.
func (c AuditConfig) Retry() resilience.RetryConfig {
	return resilience.RetryFrom(c.MaxAttempts, c.InitialBackoffMs)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
