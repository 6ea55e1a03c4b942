package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RenewalStatus is the workflow state of a renewal record.
type RenewalStatus string

const (
	StatusPending              RenewalStatus = "pending"
	StatusPendingManualRenewal RenewalStatus = "pending_manual_renewal"
	StatusWaitingAgentReview   RenewalStatus = "waiting_agent_review"
	StatusRequoteRequested     RenewalStatus = "requote_requested"
	StatusQuoteReady           RenewalStatus = "quote_ready"
	StatusAgentReviewed        RenewalStatus = "agent_reviewed"
	StatusCompleted            RenewalStatus = "completed"
	StatusCancelled            RenewalStatus = "cancelled"

	// StatusComparisonReady is a read-side filter, never stored on a record.
	StatusComparisonReady RenewalStatus = "comparison_ready"
)

// IsTerminal reports whether no further transitions are allowed.
func (s RenewalStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Expand resolves read-side filter buckets into stored statuses.
func (s RenewalStatus) Expand() []RenewalStatus {
	if s == StatusComparisonReady {
		return []RenewalStatus{StatusWaitingAgentReview, StatusQuoteReady}
	}
	if s == "" {
		return nil
	}
	return []RenewalStatus{s}
}

// Decision is an agent's decision on a renewal.
type Decision string

const (
	DecisionRenewAsIs      Decision = "renew_as_is"
	DecisionReshop         Decision = "reshop"
	DecisionContactCust    Decision = "contact_customer"
	DecisionNeedsMoreInfo  Decision = "needs_more_info"
	DecisionNoBetterOption Decision = "no_better_option"
	DecisionBoundNewPolicy Decision = "bound_new_policy"
)

// AllDecisions lists the decisions an agent may submit.
var AllDecisions = []Decision{
	DecisionRenewAsIs, DecisionReshop, DecisionContactCust,
	DecisionNeedsMoreInfo, DecisionNoBetterOption, DecisionBoundNewPolicy,
}

// RedecidableDecisions may be replaced by a later decision.
var RedecidableDecisions = []Decision{DecisionNeedsMoreInfo, DecisionContactCust}

// IsValid reports whether d is a known decision.
func (d Decision) IsValid() bool {
	for _, v := range AllDecisions {
		if d == v {
			return true
		}
	}
	return false
}

// IsFinal reports whether the decision locks the record against re-deciding.
func (d Decision) IsFinal() bool {
	if d == "" {
		return false
	}
	for _, v := range RedecidableDecisions {
		if d == v {
			return false
		}
	}
	return true
}

// RenewalSource records where the renewal term data came from.
type RenewalSource string

const (
	SourceAL3           RenewalSource = "al3"
	SourcePDFUpload     RenewalSource = "pdf_upload"
	SourceHawkSoftCloud RenewalSource = "hawksoft_cloud"
	SourcePending       RenewalSource = "pending"
)

// Record is the persisted renewal comparison, mutated only through workflow
// transitions. Natural key: (TenantID, PolicyNumber, RenewalEffectiveDate).
type Record struct {
	ID                   string         `json:"id"`
	TenantID             string         `json:"tenant_id"`
	PolicyNumber         string         `json:"policy_number"`
	CarrierName          string         `json:"carrier_name"`
	LineOfBusiness       LineOfBusiness `json:"line_of_business"`
	RenewalEffectiveDate time.Time      `json:"renewal_effective_date"`
	CustomerID           string         `json:"customer_id,omitempty"`
	PolicyID             string         `json:"policy_id,omitempty"`

	RenewalSnapshot  *Snapshot        `json:"renewal_snapshot,omitempty"`
	BaselineSnapshot *Snapshot        `json:"baseline_snapshot,omitempty"`
	ValidationErrors []FieldViolation `json:"validation_errors,omitempty"`

	BaselineStatus       BaselineStatus     `json:"baseline_status,omitempty"`
	BaselineStatusReason string             `json:"baseline_status_reason,omitempty"`
	MaterialChanges      []Change           `json:"material_changes,omitempty"`
	ComparisonSummary    *ComparisonSummary `json:"comparison_summary,omitempty"`
	CheckResults         []CheckResult      `json:"check_results,omitempty"`
	CheckSummary         *CheckSummary      `json:"check_summary,omitempty"`
	CurrentPremium       *decimal.Decimal   `json:"current_premium,omitempty"`
	RenewalPremium       *decimal.Decimal   `json:"renewal_premium,omitempty"`
	PremiumChangeAmount  *decimal.Decimal   `json:"premium_change_amount,omitempty"`
	PremiumChangePercent *float64           `json:"premium_change_percent,omitempty"`
	Recommendation       Recommendation     `json:"recommendation,omitempty"`
	ComparedAt           *time.Time         `json:"compared_at,omitempty"`

	Status          RenewalStatus `json:"status"`
	AgentDecision   Decision      `json:"agent_decision,omitempty"`
	AgentDecisionAt *time.Time    `json:"agent_decision_at,omitempty"`
	AgentDecisionBy string        `json:"agent_decision_by,omitempty"`
	AgentNotes      string        `json:"agent_notes,omitempty"`
	RenewalSource   RenewalSource `json:"renewal_source"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FieldViolation is a field that could not be normalized.
type FieldViolation struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// AuditEventType names an audit log entry.
type AuditEventType string

const (
	EventRecordCreated    AuditEventType = "record_created"
	EventRenewalIngested  AuditEventType = "renewal_ingested"
	EventComparisonRun    AuditEventType = "comparison_run"
	EventBaselineMissing  AuditEventType = "baseline_missing"
	EventAgentDecision    AuditEventType = "agent_decision"
	EventReshopResolved   AuditEventType = "reshop_resolved"
	EventQuoteReady       AuditEventType = "quote_ready"
	EventRecordCompleted  AuditEventType = "record_completed"
	EventRecordCancelled  AuditEventType = "record_cancelled"
	EventSyncIntentQueued AuditEventType = "sync_intent_queued"
	EventDecisionConflict AuditEventType = "decision_conflict"
)

// AuditEvent is an append-only history entry for a record.
type AuditEvent struct {
	ID          string         `json:"id"`
	RecordID    string         `json:"record_id"`
	TenantID    string         `json:"tenant_id"`
	EventType   AuditEventType `json:"event_type"`
	EventData   map[string]any `json:"event_data,omitempty"`
	PerformedBy string         `json:"performed_by"`
	PerformedAt time.Time      `json:"performed_at"`
}

// SyncIntentKind names a downstream sync action.
type SyncIntentKind string

// SyncRatingReshop pushes renewal data into the rating system for requoting.
const SyncRatingReshop SyncIntentKind = "rating_reshop"

// SyncIntentStatus tracks outbox delivery.
type SyncIntentStatus string

const (
	IntentPending    SyncIntentStatus = "pending"
	IntentDispatched SyncIntentStatus = "dispatched"
)

// SyncIntent is an outbox entry consumed by the rating-system sync workflow.
type SyncIntent struct {
	ID           string           `json:"id"`
	RecordID     string           `json:"record_id"`
	TenantID     string           `json:"tenant_id"`
	PolicyNumber string           `json:"policy_number"`
	Kind         SyncIntentKind   `json:"kind"`
	Status       SyncIntentStatus `json:"status"`
	Attempts     int              `json:"attempts"`
	LastError    string           `json:"last_error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	DispatchedAt *time.Time       `json:"dispatched_at,omitempty"`
}
