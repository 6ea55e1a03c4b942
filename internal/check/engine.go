// Package check runs independent rules over a renewal and collects findings.
// A failing rule is logged and skipped; it never suppresses other rules.
package check

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
)

// Context is everything a rule may look at. Baseline and Comparison are nil
// when no prior term was found.
type Context struct {
	Renewal        *model.Snapshot
	Baseline       *model.Snapshot
	Comparison     *model.ComparisonResult
	LineOfBusiness model.LineOfBusiness
	CarrierName    string
}

// Rule is one registered check. Lines restricts the rule to those lines of
// business; empty means every line.
type Rule struct {
	ID       string
	Category string
	Severity model.Severity
	Lines    []model.LineOfBusiness
	Evaluate func(c *Context) ([]model.CheckResult, error)
}

// AppliesTo reports whether the rule runs for lob.
func (r Rule) AppliesTo(lob model.LineOfBusiness) bool {
	return len(r.Lines) == 0 || slices.Contains(r.Lines, lob)
}

// Finding builds a result carrying the rule's identity and default severity.
func (r Rule) Finding(field, format string, args ...any) model.CheckResult {
	return model.CheckResult{
		RuleID:        r.ID,
		Severity:      r.Severity,
		Category:      r.Category,
		Message:       fmt.Sprintf(format, args...),
		AffectedField: field,
	}
}

// RuleError wraps a rule that returned an error or panicked.
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("check: rule %s failed: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Outcome is the result of one engine run.
type Outcome struct {
	Results []model.CheckResult
	Summary model.CheckSummary
	Errors  []*RuleError
}

// Engine runs a fixed rule list.
type Engine struct {
	rules     []Rule
	overrides map[string]model.Severity
	log       *zap.Logger
}

// NewEngine registers rules. Severity overrides that do not parse are
// ignored here; Config.Validate reports them.
func NewEngine(rules []Rule, cfg Config) *Engine {
	overrides := make(map[string]model.Severity, len(cfg.SeverityOverrides))
	for id, s := range cfg.SeverityOverrides {
		if sev, err := parseOverride(s); err == nil {
			overrides[id] = sev
		}
	}
	return &Engine{
		rules:     rules,
		overrides: overrides,
		log:       zap.L().With(zap.String("component", "check")),
	}
}

// Rules returns the registered rules.
func (e *Engine) Rules() []Rule {
	return e.rules
}

// Run evaluates every applicable rule. Findings are sorted by rule id so the
// output does not depend on registration order.
func (e *Engine) Run(c Context) Outcome {
	if c.LineOfBusiness == "" && c.Renewal != nil {
		c.LineOfBusiness = c.Renewal.LineOfBusiness()
	}
	if c.CarrierName == "" && c.Renewal != nil {
		c.CarrierName = c.Renewal.Policy.CarrierName
	}

	var out Outcome
	for _, rule := range e.rules {
		if !rule.AppliesTo(c.LineOfBusiness) {
			continue
		}
		results, err := e.evaluate(rule, &c)
		if err != nil {
			e.log.Warn("check: rule failed, skipping",
				zap.String("rule_id", rule.ID),
				zap.String("line_of_business", string(c.LineOfBusiness)),
				zap.Error(err),
			)
			out.Errors = append(out.Errors, &RuleError{RuleID: rule.ID, Err: err})
			continue
		}
		for _, r := range results {
			r.RuleID = rule.ID
			if r.Category == "" {
				r.Category = rule.Category
			}
			if r.Severity == "" {
				r.Severity = rule.Severity
			}
			// Findings the rule graded itself keep their severity.
			if sev, ok := e.overrides[rule.ID]; ok && r.Severity == rule.Severity {
				r.Severity = sev
			}
			out.Results = append(out.Results, r)
		}
	}

	slices.SortStableFunc(out.Results, func(a, b model.CheckResult) int {
		if n := strings.Compare(a.RuleID, b.RuleID); n != 0 {
			return n
		}
		if n := strings.Compare(a.AffectedField, b.AffectedField); n != 0 {
			return n
		}
		return strings.Compare(a.Message, b.Message)
	})

	failed := make([]string, 0, len(out.Errors))
	for _, re := range out.Errors {
		failed = append(failed, re.RuleID)
	}
	out.Summary = BuildSummary(out.Results, failed...)
	return out
}

func (e *Engine) evaluate(rule Rule, c *Context) (results []model.CheckResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("panic: %v", p)
		}
	}()
	if rule.Evaluate == nil {
		return nil, eris.New("rule has no evaluate function")
	}
	return rule.Evaluate(c)
}

// BuildSummary counts findings by severity. Passed means no warning or
// critical findings and no failed rules.
func BuildSummary(results []model.CheckResult, failedRules ...string) model.CheckSummary {
	s := model.CheckSummary{Total: len(results)}
	for _, r := range results {
		switch r.Severity {
		case model.SeverityCritical:
			s.CriticalCount++
		case model.SeverityWarning:
			s.WarningCount++
		default:
			s.InfoCount++
		}
	}
	s.HasCritical = s.CriticalCount > 0
	if len(failedRules) > 0 {
		s.FailedRules = slices.Clone(failedRules)
		slices.Sort(s.FailedRules)
	}
	s.Passed = s.CriticalCount == 0 && s.WarningCount == 0 && len(s.FailedRules) == 0
	return s
}
