package check

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/normalize"
)

// Rule ids. Stable: they key severity overrides and stored findings.
const (
	RuleUMUIMDropped          = "um_uim_dropped"
	RuleLiabilityBelowMinimum = "liability_below_state_minimum"
	RuleNonRenewalLanguage    = "nonrenewal_language"
	RulePremiumOutlier        = "premium_outlier"
	RuleCoverageLapse         = "coverage_lapse"
	RuleDriverRemoved         = "driver_removed"
	RuleDwellingLimitDecrease = "dwelling_limit_decrease"
	RuleMortgageePayment      = "mortgagee_payment_status"
	RuleBaselineMissing       = "baseline_missing"
	RuleNamedInsuredChanged   = "named_insured_changed"
)

var (
	autoOnly = []model.LineOfBusiness{model.LineAuto}
	homeOnly = []model.LineOfBusiness{model.LineHomeowners, model.LineDwellingFire, model.LineCondo}
)

// DefaultRules returns the stock rule set.
func DefaultRules(cfg Config) []Rule {
	return []Rule{
		umUIMDropped(),
		liabilityBelowMinimum(cfg),
		nonRenewalLanguage(cfg),
		premiumOutlier(cfg),
		coverageLapse(cfg),
		driverRemoved(),
		dwellingLimitDecrease(),
		mortgageePayment(),
		baselineMissing(),
		namedInsuredChanged(),
	}
}

func umUIMDropped() Rule {
	r := Rule{ID: RuleUMUIMDropped, Category: "coverage", Severity: model.SeverityCritical, Lines: autoOnly}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Baseline == nil || c.Renewal == nil {
			return nil, nil
		}
		var out []model.CheckResult
		for _, cov := range c.Baseline.Policy.Coverages {
			if !cov.Code.IsUninsuredMotorist() {
				continue
			}
			if _, ok := c.Renewal.Coverage(cov.Code); ok {
				continue
			}
			out = append(out, r.Finding("coverages."+string(cov.Code),
				"%s coverage (limit %s) was dropped at renewal; a signed rejection form is required",
				cov.Code, cov.Limit))
		}
		return out, nil
	}
	return r
}

func liabilityBelowMinimum(cfg Config) Rule {
	r := Rule{ID: RuleLiabilityBelowMinimum, Category: "coverage", Severity: model.SeverityCritical, Lines: autoOnly}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Renewal == nil {
			return nil, nil
		}
		state := c.Renewal.Policy.State
		floor, ok := cfg.minimum(state)
		if !ok {
			return nil, nil
		}

		var out []model.CheckResult
		if csl, ok := c.Renewal.Coverage(model.CoverageCombinedSingleLimit); ok {
			limits := splitLimit(csl.Limit)
			if len(limits) > 0 && limits[0] < floor.BodilyInjuryPerAccident+floor.PropertyDamage {
				out = append(out, r.Finding("coverages.combined_single_limit.limit",
					"combined single limit %s is below the %s minimum of %d", csl.Limit, state,
					floor.BodilyInjuryPerAccident+floor.PropertyDamage))
			}
			return out, nil
		}

		bi, hasBI := c.Renewal.Coverage(model.CoverageBodilyInjury)
		if !hasBI {
			return []model.CheckResult{r.Finding("coverages.bodily_injury", "no bodily injury liability reported for a %s policy", state)}, nil
		}
		limits := splitLimit(bi.Limit)
		if len(limits) >= 1 && limits[0] < floor.BodilyInjuryPerPerson {
			out = append(out, r.Finding("coverages.bodily_injury.limit",
				"bodily injury per-person limit %d is below the %s minimum of %d", limits[0], state, floor.BodilyInjuryPerPerson))
		}
		if len(limits) >= 2 && limits[1] < floor.BodilyInjuryPerAccident {
			out = append(out, r.Finding("coverages.bodily_injury.limit",
				"bodily injury per-accident limit %d is below the %s minimum of %d", limits[1], state, floor.BodilyInjuryPerAccident))
		}

		pd := -1
		if len(limits) == 3 {
			pd = limits[2]
		}
		if cov, ok := c.Renewal.Coverage(model.CoveragePropertyDamage); ok {
			if l := splitLimit(cov.Limit); len(l) > 0 {
				pd = l[0]
			}
		}
		if pd >= 0 && pd < floor.PropertyDamage {
			out = append(out, r.Finding("coverages.property_damage.limit",
				"property damage limit %d is below the %s minimum of %d", pd, state, floor.PropertyDamage))
		}
		return out, nil
	}
	return r
}

func (c Config) minimum(state string) (StateMinimum, bool) {
	state = strings.TrimSpace(state)
	if state == "" {
		return StateMinimum{}, false
	}
	for k, v := range c.StateMinimums {
		if strings.EqualFold(k, state) {
			return v, true
		}
	}
	return StateMinimum{}, false
}

var thousand = decimal.NewFromInt(1000)

// splitLimit reads "30/60/25", "100,000/300,000" or a single number into
// dollar amounts. Components under 1000 are in thousands.
func splitLimit(a model.Amount) []int {
	var parts []decimal.Decimal
	if a.Number != nil {
		parts = append(parts, *a.Number)
	} else {
		for _, p := range strings.Split(a.Text, "/") {
			v, err := normalize.ParseCurrency(strings.TrimSuffix(strings.ToLower(strings.TrimSpace(p)), "k"))
			if err != nil || v == nil {
				return nil
			}
			parts = append(parts, *v)
		}
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if p.LessThan(thousand) {
			p = p.Mul(thousand)
		}
		out = append(out, int(p.IntPart()))
	}
	return out
}

func nonRenewalLanguage(cfg Config) Rule {
	r := Rule{ID: RuleNonRenewalLanguage, Category: "document", Severity: model.SeverityCritical}
	phrases := make([]string, 0, len(cfg.NonRenewalPhrases))
	for _, p := range cfg.NonRenewalPhrases {
		phrases = append(phrases, normalize.TextKey(p))
	}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Renewal == nil {
			return nil, nil
		}
		var out []model.CheckResult
		for i, remark := range c.Renewal.Policy.Remarks {
			text := normalize.TextKey(remark)
			for _, p := range phrases {
				if p != "" && strings.Contains(text, p) {
					out = append(out, r.Finding(fmt.Sprintf("remarks[%d]", i),
						"renewal document contains non-renewal or cancellation language: %q", p))
					break
				}
			}
		}
		return out, nil
	}
	return r
}

func premiumOutlier(cfg Config) Rule {
	r := Rule{ID: RulePremiumOutlier, Category: "premium", Severity: model.SeverityWarning}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Comparison == nil || c.Comparison.Summary.PremiumChangePercent == nil {
			return nil, nil
		}
		pct := *c.Comparison.Summary.PremiumChangePercent
		threshold := cfg.OutlierThreshold(c.CarrierName)
		if pct <= threshold {
			return nil, nil
		}
		return []model.CheckResult{r.Finding("premium",
			"premium increase of %.1f%% exceeds the %.1f%% threshold for %s", pct, threshold, carrierLabel(c.CarrierName))}, nil
	}
	return r
}

func carrierLabel(name string) string {
	if strings.TrimSpace(name) == "" {
		return "this carrier"
	}
	return name
}

func coverageLapse(cfg Config) Rule {
	r := Rule{ID: RuleCoverageLapse, Category: "continuity", Severity: model.SeverityCritical}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Baseline == nil || c.Renewal == nil {
			return nil, nil
		}
		exp, eff := c.Baseline.Policy.ExpirationDate, c.Renewal.Policy.EffectiveDate
		if exp == nil || eff == nil {
			return nil, nil
		}
		gap := int(eff.Sub(*exp).Hours() / 24)
		if gap <= cfg.LapseToleranceDays {
			return nil, nil
		}
		return []model.CheckResult{r.Finding("effective_date",
			"coverage gap of %d days between prior expiration %s and renewal effective %s",
			gap, exp.Format("2006-01-02"), eff.Format("2006-01-02"))}, nil
	}
	return r
}

func driverRemoved() Rule {
	r := Rule{ID: RuleDriverRemoved, Category: "driver", Severity: model.SeverityWarning, Lines: autoOnly}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Comparison == nil {
			return nil, nil
		}
		var out []model.CheckResult
		for _, ch := range c.Comparison.Changes(model.CategoryDriver) {
			if ch.Before != "" && ch.After == "" && ch.Materiality == model.MaterialNegative {
				out = append(out, r.Finding(ch.Field,
					"driver %s is no longer listed; confirm the removal was requested", ch.Before))
			}
		}
		return out, nil
	}
	return r
}

func dwellingLimitDecrease() Rule {
	r := Rule{ID: RuleDwellingLimitDecrease, Category: "coverage", Severity: model.SeverityWarning, Lines: homeOnly}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Baseline == nil || c.Renewal == nil {
			return nil, nil
		}
		before, ok := c.Baseline.Coverage(model.CoverageDwelling)
		if !ok || before.Limit.Number == nil {
			return nil, nil
		}
		after, ok := c.Renewal.Coverage(model.CoverageDwelling)
		if !ok || after.Limit.Number == nil {
			return nil, nil
		}
		if !after.Limit.Number.LessThan(*before.Limit.Number) {
			return nil, nil
		}
		return []model.CheckResult{r.Finding("coverages.dwelling.limit",
			"dwelling limit decreased from %s to %s; verify replacement cost",
			before.Limit.Number.StringFixed(0), after.Limit.Number.StringFixed(0))}, nil
	}
	return r
}

func mortgageePayment() Rule {
	r := Rule{ID: RuleMortgageePayment, Category: "billing", Severity: model.SeverityCritical, Lines: homeOnly}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Renewal == nil {
			return nil, nil
		}
		status := c.Renewal.Policy.MortgageePaymentStatus
		switch status {
		case model.PaymentLapsed:
			return []model.CheckResult{r.Finding("mortgagee_payment_status",
				"mortgagee reports the escrow payment as lapsed")}, nil
		case model.PaymentLate, model.PaymentGracePeriod:
			f := r.Finding("mortgagee_payment_status", "mortgagee reports the escrow payment as %s", status)
			f.Severity = model.SeverityWarning
			return []model.CheckResult{f}, nil
		default:
			return nil, nil
		}
	}
	return r
}

func baselineMissing() Rule {
	r := Rule{ID: RuleBaselineMissing, Category: "continuity", Severity: model.SeverityInfo}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Baseline != nil {
			return nil, nil
		}
		return []model.CheckResult{r.Finding("", "no prior term on file; coverage changes could not be compared")}, nil
	}
	return r
}

func namedInsuredChanged() Rule {
	r := Rule{ID: RuleNamedInsuredChanged, Category: "policy", Severity: model.SeverityWarning}
	r.Evaluate = func(c *Context) ([]model.CheckResult, error) {
		if c.Baseline == nil || c.Renewal == nil {
			return nil, nil
		}
		before, after := c.Baseline.Policy.InsuredName, c.Renewal.Policy.InsuredName
		if before == "" || after == "" || normalize.TextKey(before) == normalize.TextKey(after) {
			return nil, nil
		}
		return []model.CheckResult{r.Finding("insured_name", "named insured changed from %q to %q", before, after)}, nil
	}
	return r
}
