// Package store persists renewal records, their audit history, the prior-term
// snapshot archive and the downstream sync outbox.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/tcdsagency/renewals/internal/model"
)

var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrConflict is returned when a conditional update matched no row
	// because the record moved on (status changed or decision already final).
	ErrConflict = eris.New("store: conflict")
)

// RecordFilter narrows ListRecords. Statuses are matched as stored; expand
// read-side buckets with RenewalStatus.Expand first.
type RecordFilter struct {
	TenantID        string                `json:"tenant_id,omitempty"`
	Statuses        []model.RenewalStatus `json:"statuses,omitempty"`
	PolicyNumber    string                `json:"policy_number,omitempty"`
	EffectiveBefore *time.Time            `json:"effective_before,omitempty"`
	Limit           int                   `json:"limit,omitempty"`
	Offset          int                   `json:"offset,omitempty"`
}

// DecisionUpdate is a compare-and-swap on a record's agent decision. It
// applies only while the record's status is in FromStatuses and its current
// decision is unset (when AllowUnset) or one of Replaceable.
type DecisionUpdate struct {
	RecordID     string
	Decision     model.Decision
	Status       model.RenewalStatus
	Actor        string
	Notes        string
	At           time.Time
	FromStatuses []model.RenewalStatus
	Replaceable  []model.Decision
	AllowUnset   bool
	// Intent, when set, is enqueued in the same transaction.
	Intent *model.SyncIntent
}

// Store is the persistence surface used by the renewal service, the batch
// jobs and the HTTP layer.
type Store interface {
	// Records
	CreateIfAbsent(ctx context.Context, rec *model.Record) (bool, error)
	Load(ctx context.Context, id string) (*model.Record, error)
	FindByKey(ctx context.Context, tenantID, policyNumber string, effective time.Time) (*model.Record, error)
	Save(ctx context.Context, rec *model.Record, expected model.RenewalStatus) error
	UpdateDecision(ctx context.Context, u DecisionUpdate) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)

	// Audit log (append-only)
	AppendAuditEvent(ctx context.Context, ev model.AuditEvent) error
	History(ctx context.Context, recordID string) ([]model.AuditEvent, error)

	// Prior-term archive
	ArchiveSnapshot(ctx context.Context, tenantID string, snap *model.Snapshot) error
	ImportArchive(ctx context.Context, tenantID string, snaps []*model.Snapshot) (int64, error)
	LatestSnapshot(ctx context.Context, tenantID, policyNumber, carrier string, before time.Time) (*model.Snapshot, error)

	// Sync outbox
	EnqueueSyncIntent(ctx context.Context, intent model.SyncIntent) (bool, error)
	// PendingSyncIntents lists pending intents oldest first. When maxAttempts
	// is positive, intents that already failed that many times are left out.
	PendingSyncIntents(ctx context.Context, limit, maxAttempts int) ([]model.SyncIntent, error)
	MarkSyncDispatched(ctx context.Context, id string, at time.Time) error
	MarkSyncFailed(ctx context.Context, id, reason string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// recordPayload is the JSON column holding a record's computed data.
type recordPayload struct {
	RenewalSnapshot      *model.Snapshot          `json:"renewal_snapshot,omitempty"`
	BaselineSnapshot     *model.Snapshot          `json:"baseline_snapshot,omitempty"`
	ValidationErrors     []model.FieldViolation   `json:"validation_errors,omitempty"`
	BaselineStatusReason string                   `json:"baseline_status_reason,omitempty"`
	MaterialChanges      []model.Change           `json:"material_changes,omitempty"`
	ComparisonSummary    *model.ComparisonSummary `json:"comparison_summary,omitempty"`
	CheckResults         []model.CheckResult      `json:"check_results,omitempty"`
	CheckSummary         *model.CheckSummary      `json:"check_summary,omitempty"`
	CurrentPremium       *decimal.Decimal         `json:"current_premium,omitempty"`
	RenewalPremium       *decimal.Decimal         `json:"renewal_premium,omitempty"`
	PremiumChangeAmount  *decimal.Decimal         `json:"premium_change_amount,omitempty"`
	PremiumChangePercent *float64                 `json:"premium_change_percent,omitempty"`
}

func marshalPayload(r *model.Record) ([]byte, error) {
	b, err := json.Marshal(recordPayload{
		RenewalSnapshot:      r.RenewalSnapshot,
		BaselineSnapshot:     r.BaselineSnapshot,
		ValidationErrors:     r.ValidationErrors,
		BaselineStatusReason: r.BaselineStatusReason,
		MaterialChanges:      r.MaterialChanges,
		ComparisonSummary:    r.ComparisonSummary,
		CheckResults:         r.CheckResults,
		CheckSummary:         r.CheckSummary,
		CurrentPremium:       r.CurrentPremium,
		RenewalPremium:       r.RenewalPremium,
		PremiumChangeAmount:  r.PremiumChangeAmount,
		PremiumChangePercent: r.PremiumChangePercent,
	})
	return b, eris.Wrap(err, "store: marshal record payload")
}

func unmarshalPayload(data []byte, r *model.Record) error {
	if len(data) == 0 {
		return nil
	}
	var p recordPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return eris.Wrap(err, "store: unmarshal record payload")
	}
	r.RenewalSnapshot = p.RenewalSnapshot
	r.BaselineSnapshot = p.BaselineSnapshot
	r.ValidationErrors = p.ValidationErrors
	r.BaselineStatusReason = p.BaselineStatusReason
	r.MaterialChanges = p.MaterialChanges
	r.ComparisonSummary = p.ComparisonSummary
	r.CheckResults = p.CheckResults
	r.CheckSummary = p.CheckSummary
	r.CurrentPremium = p.CurrentPremium
	r.RenewalPremium = p.RenewalPremium
	r.PremiumChangeAmount = p.PremiumChangeAmount
	r.PremiumChangePercent = p.PremiumChangePercent
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func statusStrings(in []model.RenewalStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func decisionStrings(in []model.Decision) []string {
	out := make([]string, len(in))
	for i, d := range in {
		out[i] = string(d)
	}
	return out
}

// archiveKey validates a snapshot for the archive.
func archiveKey(snap *model.Snapshot) (time.Time, error) {
	if snap == nil {
		return time.Time{}, eris.New("store: nil snapshot")
	}
	if snap.Policy.PolicyNumber == "" {
		return time.Time{}, eris.New("store: archive snapshot needs a policy number")
	}
	if snap.Policy.EffectiveDate == nil {
		return time.Time{}, eris.Errorf("store: archive snapshot %s needs an effective date", snap.Policy.PolicyNumber)
	}
	return dateOnly(*snap.Policy.EffectiveDate), nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const defaultListLimit = 100
