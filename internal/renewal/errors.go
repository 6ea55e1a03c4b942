package renewal

import (
	"fmt"
	"strings"
	"time"

	"github.com/tcdsagency/renewals/internal/model"
)

// ValidationError lists fields that made a request unusable.
type ValidationError struct {
	Violations []model.FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		v := e.Violations[0]
		return fmt.Sprintf("renewal: invalid %s: %s", v.Field, v.Reason)
	}
	fields := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		fields = append(fields, v.Field)
	}
	return fmt.Sprintf("renewal: %d fields could not be parsed (%s)", len(e.Violations), strings.Join(fields, ", "))
}

func invalid(field, value, reason string) *ValidationError {
	return &ValidationError{Violations: []model.FieldViolation{{Field: field, Value: value, Reason: reason}}}
}

// PreconditionError rejects an operation the record is not ready for.
type PreconditionError struct {
	RecordID string
	Reason   string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("renewal: record %s: %s", e.RecordID, e.Reason)
}

// ConflictError rejects a change to a record that was already decided or
// moved on concurrently.
type ConflictError struct {
	RecordID  string
	Status    model.RenewalStatus
	Decision  model.Decision
	DecidedBy string
	DecidedAt *time.Time
}

func (e *ConflictError) Error() string {
	if e.Status == model.StatusCancelled {
		if e.Decision != "" {
			return fmt.Sprintf("renewal: record %s is already cancelled (last decision %s)", e.RecordID, e.Decision)
		}
		return fmt.Sprintf("renewal: record %s is already cancelled", e.RecordID)
	}
	if e.Decision != "" && e.DecidedBy != "" && e.DecidedAt != nil {
		return fmt.Sprintf("renewal: this renewal was already decided by %s on %s (%s)",
			e.DecidedBy, e.DecidedAt.Format("Jan 2, 2006"), e.Decision)
	}
	if e.Decision != "" {
		return fmt.Sprintf("renewal: this renewal was already decided (%s)", e.Decision)
	}
	if e.Status.IsTerminal() {
		return fmt.Sprintf("renewal: record %s is already %s", e.RecordID, e.Status)
	}
	return fmt.Sprintf("renewal: record %s changed concurrently (now %s)", e.RecordID, e.Status)
}

func conflictFrom(rec *model.Record) *ConflictError {
	return &ConflictError{
		RecordID:  rec.ID,
		Status:    rec.Status,
		Decision:  rec.AgentDecision,
		DecidedBy: rec.AgentDecisionBy,
		DecidedAt: rec.AgentDecisionAt,
	}
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("renewal: record %s not found", e.ID)
}
