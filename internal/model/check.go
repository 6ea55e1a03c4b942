package model

import "github.com/rotisserie/eris"

// Severity ranks a check finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates a configured severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return Severity(s), nil
	default:
		return "", eris.Errorf("model: unknown severity %q (valid: info, warning, critical)", s)
	}
}

// CheckResult is one finding emitted by a check rule.
type CheckResult struct {
	RuleID        string   `json:"rule_id"`
	Severity      Severity `json:"severity"`
	Category      string   `json:"category"`
	Message       string   `json:"message"`
	AffectedField string   `json:"affected_field,omitempty"`
}

// CheckSummary aggregates findings for the recommendation step.
type CheckSummary struct {
	Total         int  `json:"total"`
	InfoCount     int  `json:"info_count"`
	WarningCount  int  `json:"warning_count"`
	CriticalCount int  `json:"critical_count"`
	HasCritical   bool `json:"has_critical"`
	Passed        bool `json:"passed"`
	// FailedRules lists rules that errored and contributed no findings.
	FailedRules []string `json:"failed_rules,omitempty"`
}
