// Package renewal drives a renewal record through its lifecycle: ingestion,
// comparison, agent decision, reshop resolution and completion. Every
// transition is a conditional write and appends an audit event.
package renewal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/baseline"
	"github.com/tcdsagency/renewals/internal/check"
	"github.com/tcdsagency/renewals/internal/compare"
	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/normalize"
	"github.com/tcdsagency/renewals/internal/recommend"
	"github.com/tcdsagency/renewals/internal/resilience"
	"github.com/tcdsagency/renewals/internal/store"
)

// SystemActor performs automatic transitions.
const SystemActor = "system"

// Repository is the record persistence the service needs.
type Repository interface {
	CreateIfAbsent(ctx context.Context, rec *model.Record) (bool, error)
	Load(ctx context.Context, id string) (*model.Record, error)
	Save(ctx context.Context, rec *model.Record, expected model.RenewalStatus) error
	UpdateDecision(ctx context.Context, u store.DecisionUpdate) error
	ArchiveSnapshot(ctx context.Context, tenantID string, snap *model.Snapshot) error
}

// AuditSink receives append-only history events.
type AuditSink interface {
	AppendAuditEvent(ctx context.Context, ev model.AuditEvent) error
}

// Service implements the renewal state machine.
type Service struct {
	repo       Repository
	audit      AuditSink
	baselines  baseline.Provider
	comparer   *compare.Engine
	checker    *check.Engine
	auditRetry resilience.RetryConfig
	now        func() time.Time
	log        *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithAuditRetry sets the retry policy for audit appends.
func WithAuditRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) { s.auditRetry = cfg }
}

// NewService wires the state machine to its collaborators.
func NewService(repo Repository, audit AuditSink, baselines baseline.Provider, comparer *compare.Engine, checker *check.Engine, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		audit:      audit,
		baselines:  baselines,
		comparer:   comparer,
		checker:    checker,
		auditRetry: resilience.DefaultRetryConfig(),
		now:        time.Now,
		log:        zap.L().With(zap.String("component", "renewal")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auditRetry.OnRetry == nil {
		s.auditRetry.OnRetry = resilience.RetryLogger("renewal", "append_audit_event")
	}
	return s
}

// IngestRequest describes a policy nearing renewal.
type IngestRequest struct {
	TenantID             string               `json:"tenant_id"`
	PolicyNumber         string               `json:"policy_number"`
	CarrierName          string               `json:"carrier_name"`
	LineOfBusiness       model.LineOfBusiness `json:"line_of_business"`
	RenewalEffectiveDate time.Time            `json:"renewal_effective_date"`
	CustomerID           string               `json:"customer_id,omitempty"`
	PolicyID             string               `json:"policy_id,omitempty"`
}

func (r IngestRequest) validate() error {
	var v []model.FieldViolation
	if strings.TrimSpace(r.TenantID) == "" {
		v = append(v, model.FieldViolation{Field: "tenant_id", Reason: "required"})
	}
	if strings.TrimSpace(r.PolicyNumber) == "" {
		v = append(v, model.FieldViolation{Field: "policy_number", Reason: "required"})
	}
	if r.RenewalEffectiveDate.IsZero() {
		v = append(v, model.FieldViolation{Field: "renewal_effective_date", Reason: "required"})
	}
	if r.LineOfBusiness != "" && !slices.Contains(model.AllLines, r.LineOfBusiness) {
		v = append(v, model.FieldViolation{Field: "line_of_business", Value: string(r.LineOfBusiness), Reason: "unknown line of business"})
	}
	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// Ingest creates the placeholder record for a policy nearing renewal. It is
// pending when a baseline exists and pending_manual_renewal otherwise. A
// record already present for the natural key is returned unchanged with
// created=false.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*model.Record, bool, error) {
	if err := req.validate(); err != nil {
		return nil, false, err
	}
	lob := req.LineOfBusiness
	if lob == "" {
		lob = model.LineAuto
	}

	rec := &model.Record{
		TenantID:             req.TenantID,
		PolicyNumber:         strings.TrimSpace(req.PolicyNumber),
		CarrierName:          strings.TrimSpace(req.CarrierName),
		LineOfBusiness:       lob,
		RenewalEffectiveDate: req.RenewalEffectiveDate,
		CustomerID:           req.CustomerID,
		PolicyID:             req.PolicyID,
		RenewalSource:        model.SourcePending,
	}

	snap, found, err := s.baselines.GetBaseline(ctx, rec.TenantID, rec.PolicyNumber, rec.CarrierName, rec.RenewalEffectiveDate)
	switch {
	case err != nil:
		s.log.Warn("baseline lookup failed during ingest",
			zap.String("policy_number", rec.PolicyNumber),
			zap.Error(err),
		)
		rec.Status = model.StatusPending
		rec.BaselineStatus = model.BaselineUnknown
		rec.BaselineStatusReason = "baseline lookup failed: " + err.Error()
	case found:
		rec.Status = model.StatusPending
		rec.BaselineStatus = model.BaselineFound
		rec.BaselineSnapshot = snap
		if snap.Policy.Premium != nil {
			p := *snap.Policy.Premium
			rec.CurrentPremium = &p
		}
	default:
		rec.Status = model.StatusPendingManualRenewal
		rec.BaselineStatus = model.BaselineNotFound
		rec.BaselineStatusReason = "no prior term on file for the policy"
	}

	created, err := s.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, false, eris.Wrapf(err, "renewal: create record %s", rec.PolicyNumber)
	}
	if created {
		s.record(ctx, rec, model.EventRecordCreated, SystemActor, map[string]any{
			"status":          string(rec.Status),
			"baseline_status": string(rec.BaselineStatus),
		})
	}
	return rec, created, nil
}

// RenewalRequest carries a producer payload for a renewal term.
type RenewalRequest struct {
	TenantID       string               `json:"tenant_id"`
	Source         model.RenewalSource  `json:"source"`
	LineOfBusiness model.LineOfBusiness `json:"line_of_business,omitempty"`
	Payload        normalize.RawPayload `json:"payload"`
	CustomerID     string               `json:"customer_id,omitempty"`
	PolicyID       string               `json:"policy_id,omitempty"`
	// Compare runs the comparison immediately. AL3 renewals always do.
	Compare bool   `json:"compare,omitempty"`
	Actor   string `json:"actor,omitempty"`
}

// IngestRenewal normalizes a renewal payload and attaches it to the record
// for its policy and effective date, creating the record when absent. Field
// violations are kept on the record; only a missing policy number, premium
// or effective date rejects the payload.
func (s *Service) IngestRenewal(ctx context.Context, req RenewalRequest) (*model.Record, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, invalid("tenant_id", "", "required")
	}
	source := req.Source
	if source == "" {
		source = model.SourcePending
	}
	actor := actorOr(req.Actor)

	res := normalize.Normalize(req.Payload, source, req.LineOfBusiness)
	if err := res.Usable(); err != nil {
		return nil, &ValidationError{Violations: append(res.Violations, model.FieldViolation{
			Field: "snapshot", Reason: err.Error(),
		})}
	}
	snap := res.Snapshot
	if snap.Policy.EffectiveDate == nil {
		return nil, &ValidationError{Violations: append(res.Violations, model.FieldViolation{
			Field: "effective_date", Value: req.Payload.EffectiveDate, Reason: "required",
		})}
	}

	rec := &model.Record{
		TenantID:             req.TenantID,
		PolicyNumber:         snap.Policy.PolicyNumber,
		CarrierName:          snap.Policy.CarrierName,
		LineOfBusiness:       snap.LineOfBusiness(),
		RenewalEffectiveDate: *snap.Policy.EffectiveDate,
		CustomerID:           req.CustomerID,
		PolicyID:             req.PolicyID,
		Status:               model.StatusPending,
		RenewalSource:        source,
		RenewalSnapshot:      snap,
		ValidationErrors:     res.Violations,
		RenewalPremium:       snap.Policy.Premium,
	}
	created, err := s.repo.CreateIfAbsent(ctx, rec)
	if err != nil {
		return nil, eris.Wrapf(err, "renewal: create record %s", rec.PolicyNumber)
	}

	if !created {
		if !slices.Contains(comparableStatuses, rec.Status) || rec.AgentDecision.IsFinal() {
			return nil, &PreconditionError{RecordID: rec.ID, Reason: fmt.Sprintf("cannot replace renewal data in status %s", rec.Status)}
		}
		rec.LineOfBusiness = snap.LineOfBusiness()
		if rec.CarrierName == "" {
			rec.CarrierName = snap.Policy.CarrierName
		}
		if req.CustomerID != "" {
			rec.CustomerID = req.CustomerID
		}
		if req.PolicyID != "" {
			rec.PolicyID = req.PolicyID
		}
		rec.RenewalSnapshot = snap
		rec.ValidationErrors = res.Violations
		rec.RenewalPremium = snap.Policy.Premium
		rec.RenewalSource = source
		if err := s.save(ctx, rec, rec.Status); err != nil {
			return nil, err
		}
	} else {
		s.record(ctx, rec, model.EventRecordCreated, actor, map[string]any{"status": string(rec.Status)})
	}

	s.record(ctx, rec, model.EventRenewalIngested, actor, map[string]any{
		"renewal_source":   string(source),
		"validation_count": len(res.Violations),
	})

	if source == model.SourceAL3 || req.Compare {
		return s.RunComparison(ctx, rec.ID, actor)
	}
	return rec, nil
}

// RunComparison diffs the record's renewal term against its baseline, runs
// the check rules, stores the aggregated recommendation and moves the record
// to waiting_agent_review. A missing baseline is a valid outcome.
func (s *Service) RunComparison(ctx context.Context, id, actor string) (*model.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(comparableStatuses, rec.Status) {
		return nil, &PreconditionError{RecordID: id, Reason: fmt.Sprintf("cannot run comparison in status %s", rec.Status)}
	}
	if rec.RenewalSnapshot == nil {
		return nil, &PreconditionError{RecordID: id, Reason: "no renewal snapshot present"}
	}

	base, found, err := s.baselines.GetBaseline(ctx, rec.TenantID, rec.PolicyNumber, rec.CarrierName, rec.RenewalEffectiveDate)
	if err != nil {
		return nil, eris.Wrapf(err, "renewal: baseline for %s", rec.PolicyNumber)
	}
	if found {
		if err := model.Comparable(rec.RenewalSnapshot, base); err != nil {
			return nil, &PreconditionError{RecordID: id, Reason: err.Error()}
		}
	}

	var cmp *model.ComparisonResult
	if found {
		cmp = s.comparer.Compare(rec.RenewalSnapshot, base)
	} else {
		base = nil
		cmp = compare.NotFound("no prior term on file for the policy")
	}

	outcome := s.checker.Run(check.Context{
		Renewal:        rec.RenewalSnapshot,
		Baseline:       base,
		Comparison:     cmp,
		LineOfBusiness: rec.RenewalSnapshot.LineOfBusiness(),
		CarrierName:    rec.CarrierName,
	})
	final := recommend.Apply(cmp, outcome.Summary)

	now := s.now().UTC()
	expected := rec.Status
	applyComparison(rec, base, cmp, outcome)
	rec.ComparedAt = &now
	rec.Status = model.StatusWaitingAgentReview
	if err := s.save(ctx, rec, expected); err != nil {
		return nil, err
	}

	actor = actorOr(actor)
	if !found {
		s.record(ctx, rec, model.EventBaselineMissing, actor, map[string]any{"reason": cmp.BaselineStatusReason})
	}
	s.record(ctx, rec, model.EventComparisonRun, actor, map[string]any{
		"recommendation":          string(final.Recommendation),
		"escalated":               final.Escalated,
		"headline":                final.Headline,
		"material_negative_count": cmp.Summary.MaterialNegativeCount,
		"critical_count":          outcome.Summary.CriticalCount,
		"warning_count":           outcome.Summary.WarningCount,
		"failed_rules":            outcome.Summary.FailedRules,
	})
	return rec, nil
}

func applyComparison(rec *model.Record, base *model.Snapshot, cmp *model.ComparisonResult, outcome check.Outcome) {
	summary := cmp.Summary
	checkSummary := outcome.Summary

	rec.BaselineSnapshot = base
	rec.BaselineStatus = cmp.BaselineStatus
	rec.BaselineStatusReason = cmp.BaselineStatusReason
	rec.MaterialChanges = cmp.MaterialChanges
	rec.ComparisonSummary = &summary
	rec.CheckResults = outcome.Results
	rec.CheckSummary = &checkSummary
	rec.Recommendation = cmp.Recommendation
	rec.RenewalPremium = rec.RenewalSnapshot.Policy.Premium
	rec.CurrentPremium = nil
	if base != nil {
		rec.CurrentPremium = base.Policy.Premium
	}
	rec.PremiumChangeAmount = summary.PremiumChangeAmount
	rec.PremiumChangePercent = summary.PremiumChangePercent
}

// HandleAgentDecision records an agent's decision. A record whose decision is
// already final is a ConflictError and is left unchanged; needs_more_info and
// contact_customer may be replaced. A reshop enqueues the rating-sync intent
// in the same write.
func (s *Service) HandleAgentDecision(ctx context.Context, id string, decision model.Decision, notes, actor string) (*model.Record, error) {
	if !decision.IsValid() {
		return nil, invalid("decision", string(decision), "must be one of "+joinDecisions(model.AllDecisions))
	}
	if strings.TrimSpace(actor) == "" {
		return nil, invalid("actor", "", "required")
	}

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.AgentDecision.IsFinal() || rec.Status.IsTerminal() {
		s.recordConflict(ctx, rec, decision, actor)
		return nil, conflictFrom(rec)
	}
	if !slices.Contains(decidableStatuses, rec.Status) {
		return nil, &PreconditionError{RecordID: id, Reason: fmt.Sprintf("no comparison to decide on (status %s)", rec.Status)}
	}

	status, _ := StatusFor(decision)
	update := store.DecisionUpdate{
		RecordID:     id,
		Decision:     decision,
		Status:       status,
		Actor:        actor,
		Notes:        notes,
		At:           s.now().UTC(),
		FromStatuses: decidableStatuses,
		Replaceable:  model.RedecidableDecisions,
		AllowUnset:   true,
	}
	if decision == model.DecisionReshop {
		update.Intent = &model.SyncIntent{
			RecordID:     rec.ID,
			TenantID:     rec.TenantID,
			PolicyNumber: rec.PolicyNumber,
			Kind:         model.SyncRatingReshop,
			CreatedAt:    update.At,
		}
	}
	previous := rec.AgentDecision
	if err := s.updateDecision(ctx, rec, update); err != nil {
		return nil, err
	}

	s.record(ctx, rec, model.EventAgentDecision, actor, map[string]any{
		"decision":          string(decision),
		"previous_decision": string(previous),
		"status":            string(status),
		"notes":             notes,
	})
	if update.Intent != nil {
		s.record(ctx, rec, model.EventSyncIntentQueued, actor, map[string]any{"kind": string(update.Intent.Kind)})
	}
	return s.load(ctx, id)
}

// ResolveReshop closes a reshop once requoting is done: no_better_option
// keeps the renewal, bound_new_policy completes the record.
func (s *Service) ResolveReshop(ctx context.Context, id string, outcome model.Decision, notes, actor string) (*model.Record, error) {
	if !slices.Contains(reshopOutcomes, outcome) {
		return nil, invalid("decision", string(outcome), "must be one of "+joinDecisions(reshopOutcomes))
	}
	if strings.TrimSpace(actor) == "" {
		return nil, invalid("actor", "", "required")
	}

	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.AgentDecision != model.DecisionReshop || !slices.Contains(reshopStatuses, rec.Status) {
		return nil, &PreconditionError{RecordID: id, Reason: fmt.Sprintf("no open reshop (decision %q, status %s)", rec.AgentDecision, rec.Status)}
	}

	status, _ := StatusFor(outcome)
	err = s.updateDecision(ctx, rec, store.DecisionUpdate{
		RecordID:     id,
		Decision:     outcome,
		Status:       status,
		Actor:        actor,
		Notes:        notes,
		At:           s.now().UTC(),
		FromStatuses: reshopStatuses,
		Replaceable:  []model.Decision{model.DecisionReshop},
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, rec, model.EventReshopResolved, actor, map[string]any{
		"decision": string(outcome),
		"status":   string(status),
		"notes":    notes,
	})
	return s.load(ctx, id)
}

// MarkQuoteReady records that requoting finished for a reshop.
func (s *Service) MarkQuoteReady(ctx context.Context, id, actor string) (*model.Record, error) {
	return s.transition(ctx, id, actor, []model.RenewalStatus{model.StatusRequoteRequested},
		model.StatusQuoteReady, model.EventQuoteReady, nil, nil)
}

// Complete closes a reviewed record and archives its renewal term as the
// baseline for the next renewal. The term is archived only once the status
// change has been committed.
func (s *Service) Complete(ctx context.Context, id, actor string) (*model.Record, error) {
	return s.transition(ctx, id, actor, []model.RenewalStatus{model.StatusAgentReviewed},
		model.StatusCompleted, model.EventRecordCompleted, nil,
		func(ctx context.Context, rec *model.Record) error {
			if rec.RenewalSnapshot == nil {
				return nil
			}
			return eris.Wrapf(s.repo.ArchiveSnapshot(ctx, rec.TenantID, rec.RenewalSnapshot),
				"renewal: archive term %s", rec.PolicyNumber)
		})
}

// Cancel moves any non-terminal record to cancelled.
func (s *Service) Cancel(ctx context.Context, id, reason, actor string) (*model.Record, error) {
	open := []model.RenewalStatus{
		model.StatusPending, model.StatusPendingManualRenewal, model.StatusWaitingAgentReview,
		model.StatusRequoteRequested, model.StatusQuoteReady, model.StatusAgentReviewed,
	}
	return s.transition(ctx, id, actor, open, model.StatusCancelled, model.EventRecordCancelled,
		map[string]any{"reason": reason}, nil)
}

func (s *Service) transition(
	ctx context.Context,
	id, actor string,
	from []model.RenewalStatus,
	to model.RenewalStatus,
	event model.AuditEventType,
	data map[string]any,
	after func(context.Context, *model.Record) error,
) (*model.Record, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, rec.Status) {
		return nil, &PreconditionError{RecordID: id, Reason: fmt.Sprintf("cannot move from %s to %s", rec.Status, to)}
	}

	expected := rec.Status
	rec.Status = to
	if err := s.save(ctx, rec, expected); err != nil {
		return nil, err
	}

	if data == nil {
		data = map[string]any{}
	}
	data["from"] = string(expected)
	data["to"] = string(to)
	s.record(ctx, rec, event, actorOr(actor), data)

	if after != nil {
		if err := after(ctx, rec); err != nil {
			s.log.Error("post-transition step failed",
				zap.String("record_id", rec.ID),
				zap.String("status", string(to)),
				zap.Error(err),
			)
			return nil, err
		}
	}
	return rec, nil
}

func (s *Service) load(ctx context.Context, id string) (*model.Record, error) {
	rec, err := s.repo.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "renewal: load record %s", id)
	}
	return rec, nil
}

func (s *Service) save(ctx context.Context, rec *model.Record, expected model.RenewalStatus) error {
	err := s.repo.Save(ctx, rec, expected)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{ID: rec.ID}
	case errors.Is(err, store.ErrConflict):
		return s.currentConflict(ctx, rec.ID)
	default:
		return eris.Wrapf(err, "renewal: save record %s", rec.ID)
	}
}

func (s *Service) updateDecision(ctx context.Context, rec *model.Record, u store.DecisionUpdate) error {
	err := s.repo.UpdateDecision(ctx, u)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{ID: rec.ID}
	case errors.Is(err, store.ErrConflict):
		s.recordConflict(ctx, rec, u.Decision, u.Actor)
		return s.currentConflict(ctx, rec.ID)
	default:
		return eris.Wrapf(err, "renewal: record decision %s", rec.ID)
	}
}

// currentConflict reloads the record so the error names who won.
func (s *Service) currentConflict(ctx context.Context, id string) error {
	current, err := s.repo.Load(ctx, id)
	if err != nil {
		return &ConflictError{RecordID: id}
	}
	return conflictFrom(current)
}

func (s *Service) recordConflict(ctx context.Context, rec *model.Record, attempted model.Decision, actor string) {
	s.record(ctx, rec, model.EventDecisionConflict, actor, map[string]any{
		"attempted_decision": string(attempted),
		"current_decision":   string(rec.AgentDecision),
		"status":             string(rec.Status),
	})
}

// record appends an audit event. Failures are retried, then logged; they
// never fail the transition that produced them.
func (s *Service) record(ctx context.Context, rec *model.Record, eventType model.AuditEventType, actor string, data map[string]any) {
	ev := model.AuditEvent{
		RecordID:    rec.ID,
		TenantID:    rec.TenantID,
		EventType:   eventType,
		EventData:   data,
		PerformedBy: actorOr(actor),
		PerformedAt: s.now().UTC(),
	}
	err := resilience.Do(ctx, s.auditRetry, func(ctx context.Context) error {
		return s.audit.AppendAuditEvent(ctx, ev)
	})
	if err != nil {
		s.log.Error("audit event dropped",
			zap.String("record_id", rec.ID),
			zap.String("event_type", string(eventType)),
			zap.Error(err),
		)
	}
}

func actorOr(actor string) string {
	if a := strings.TrimSpace(actor); a != "" {
		return a
	}
	return SystemActor
}

func joinDecisions(ds []model.Decision) string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return strings.Join(out, ", ")
}
