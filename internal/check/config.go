package check

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/tcdsagency/renewals/internal/model"
)

// StateMinimum is a state's financial-responsibility liability floor in dollars.
type StateMinimum struct {
	BodilyInjuryPerPerson   int `yaml:"bodily_injury_per_person" mapstructure:"bodily_injury_per_person"`
	BodilyInjuryPerAccident int `yaml:"bodily_injury_per_accident" mapstructure:"bodily_injury_per_accident"`
	PropertyDamage          int `yaml:"property_damage" mapstructure:"property_damage"`
}

// Config parameterizes the stock rules.
type Config struct {
	// PremiumOutlierPercent flags increases above this percent when the
	// carrier has no threshold of its own.
	PremiumOutlierPercent float64 `yaml:"premium_outlier_percent" mapstructure:"premium_outlier_percent"`
	// LapseToleranceDays is the gap allowed between terms before it counts as a lapse.
	LapseToleranceDays int `yaml:"lapse_tolerance_days" mapstructure:"lapse_tolerance_days"`
	// SeverityOverrides replaces a rule's default severity, keyed by rule id.
	// Findings a rule emits at some other severity are left alone, so an
	// override on mortgagee_payment_status only regrades lapsed payments.
	SeverityOverrides map[string]string `yaml:"severity_overrides" mapstructure:"severity_overrides"`
	// StateMinimums is keyed by two-letter state code.
	StateMinimums map[string]StateMinimum `yaml:"state_minimums" mapstructure:"state_minimums"`
	// CarrierPremiumThresholds is the historical increase percent per carrier.
	CarrierPremiumThresholds map[string]float64 `yaml:"carrier_premium_thresholds" mapstructure:"carrier_premium_thresholds"`
	// NonRenewalPhrases are matched case-insensitively against document remarks.
	NonRenewalPhrases []string `yaml:"nonrenewal_phrases" mapstructure:"nonrenewal_phrases"`
}

// DefaultConfig returns the stock rule configuration.
func DefaultConfig() Config {
	return Config{
		PremiumOutlierPercent: 25,
		LapseToleranceDays:    0,
		SeverityOverrides:     map[string]string{},
		StateMinimums: map[string]StateMinimum{
			"AZ": {25000, 50000, 15000},
			"CA": {15000, 30000, 5000},
			"FL": {10000, 20000, 10000},
			"GA": {25000, 50000, 25000},
			"IL": {25000, 50000, 20000},
			"NY": {25000, 50000, 10000},
			"OK": {25000, 50000, 25000},
			"TX": {30000, 60000, 25000},
		},
		CarrierPremiumThresholds: map[string]float64{},
		NonRenewalPhrases: []string{
			"notice of nonrenewal",
			"notice of non-renewal",
			"will not be renewed",
			"will not renew",
			"nonrenewal",
			"non-renewal",
			"notice of cancellation",
			"policy will be cancelled",
			"conditional renewal",
		},
	}
}

// OutlierThreshold returns the carrier's threshold, or the default.
func (c Config) OutlierThreshold(carrier string) float64 {
	for name, pct := range c.CarrierPremiumThresholds {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(carrier)) {
			return pct
		}
	}
	return c.PremiumOutlierPercent
}

// Validate checks that overrides name real severities and thresholds are sane.
func (c Config) Validate() error {
	var errs []string
	for id, sev := range c.SeverityOverrides {
		if _, err := parseOverride(sev); err != nil {
			errs = append(errs, id+": "+err.Error())
		}
	}
	if c.PremiumOutlierPercent < 0 {
		errs = append(errs, "premium_outlier_percent must be >= 0")
	}
	if c.LapseToleranceDays < 0 {
		errs = append(errs, "lapse_tolerance_days must be >= 0")
	}
	for carrier, pct := range c.CarrierPremiumThresholds {
		if pct < 0 {
			errs = append(errs, "carrier_premium_thresholds."+carrier+" must be >= 0")
		}
	}
	if len(errs) > 0 {
		return eris.Errorf("check: invalid config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseOverride(s string) (model.Severity, error) {
	return model.ParseSeverity(strings.ToLower(strings.TrimSpace(s)))
}

// LoadRuleConfig overlays the rule tables in a YAML file onto base. Keys
// absent from the file keep their base value; maps are merged per key.
func LoadRuleConfig(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, eris.Wrapf(err, "check: read rules file %s", path)
	}

	var wrapper struct {
		Rules struct {
			PremiumOutlierPercent    *float64                `yaml:"premium_outlier_percent"`
			LapseToleranceDays       *int                    `yaml:"lapse_tolerance_days"`
			SeverityOverrides        map[string]string       `yaml:"severity_overrides"`
			StateMinimums            map[string]StateMinimum `yaml:"state_minimums"`
			CarrierPremiumThresholds map[string]float64      `yaml:"carrier_premium_thresholds"`
			NonRenewalPhrases        []string                `yaml:"nonrenewal_phrases"`
		} `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return base, eris.Wrap(err, "check: parse rules file")
	}

	out := base
	f := wrapper.Rules
	if f.PremiumOutlierPercent != nil {
		out.PremiumOutlierPercent = *f.PremiumOutlierPercent
	}
	if f.LapseToleranceDays != nil {
		out.LapseToleranceDays = *f.LapseToleranceDays
	}
	out.SeverityOverrides = mergeMap(base.SeverityOverrides, f.SeverityOverrides)
	out.StateMinimums = mergeMap(base.StateMinimums, upperKeys(f.StateMinimums))
	out.CarrierPremiumThresholds = mergeMap(base.CarrierPremiumThresholds, f.CarrierPremiumThresholds)
	if len(f.NonRenewalPhrases) > 0 {
		out.NonRenewalPhrases = f.NonRenewalPhrases
	}

	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

func mergeMap[V any](base, overlay map[string]V) map[string]V {
	out := make(map[string]V, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

func upperKeys[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[strings.ToUpper(k)] = v
	}
	return out
}
