package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
	"github.com/tcdsagency/renewals/internal/store"
)

// actorHeader names the acting agent when the body does not.
const actorHeader = "X-Actor"

const maxBodyBytes = 4 << 20

type errorBody struct {
	Error      string                 `json:"error"`
	Violations []model.FieldViolation `json:"violations,omitempty"`
	Status     model.RenewalStatus    `json:"status,omitempty"`
	Decision   model.Decision         `json:"decision,omitempty"`
	DecidedBy  string                 `json:"decided_by,omitempty"`
	DecidedAt  *time.Time             `json:"decided_at,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the renewal error taxonomy onto status codes.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *renewal.ValidationError
		perr     *renewal.PreconditionError
		conflict *renewal.ConflictError
		notFound *renewal.NotFoundError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Error(), Violations: verr.Violations})
	case errors.As(err, &perr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: perr.Error()})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorBody{
			Error:     conflict.Error(),
			Status:    conflict.Status,
			Decision:  conflict.Decision,
			DecidedBy: conflict.DecidedBy,
			DecidedAt: conflict.DecidedAt,
		})
	case errors.As(err, &notFound), errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := decodeJSON(w, r, dst); err != nil {
		return bodyError(err)
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func bodyError(err error) error {
	return &renewal.ValidationError{Violations: []model.FieldViolation{{Field: "body", Reason: err.Error()}}}
}

func actorFrom(r *http.Request, bodyActor string) string {
	if a := strings.TrimSpace(bodyActor); a != "" {
		return a
	}
	return strings.TrimSpace(r.Header.Get(actorHeader))
}

func (s *server) listRenewals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RecordFilter{
		TenantID:     q.Get("tenant_id"),
		PolicyNumber: q.Get("policy_number"),
	}
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, model.RenewalStatus(strings.TrimSpace(part)).Expand()...)
		}
	}
	if raw := q.Get("effective_before"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			s.writeError(w, r, queryViolation("effective_before", raw, "expected YYYY-MM-DD"))
			return
		}
		filter.EffectiveBefore = &t
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, r, queryViolation(name, raw, "expected a non-negative integer"))
			return
		}
		*dst = n
	}

	records, err := s.reader.ListRecords(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []model.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}

func queryViolation(field, value, reason string) error {
	return &renewal.ValidationError{Violations: []model.FieldViolation{{Field: field, Value: value, Reason: reason}}}
}

func (s *server) getRenewal(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.reader.Load(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *server) history(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.reader.Load(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.reader.History(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []model.AuditEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *server) ingestRenewal(w http.ResponseWriter, r *http.Request) {
	var req renewal.RenewalRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	req.Actor = actorFrom(r, req.Actor)
	rec, err := s.svc.IngestRenewal(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type expiringRequest struct {
	TenantID             string               `json:"tenant_id"`
	PolicyNumber         string               `json:"policy_number"`
	CarrierName          string               `json:"carrier_name"`
	LineOfBusiness       model.LineOfBusiness `json:"line_of_business"`
	RenewalEffectiveDate string               `json:"renewal_effective_date"`
	CustomerID           string               `json:"customer_id"`
	PolicyID             string               `json:"policy_id"`
}

func (s *server) ingestExpiring(w http.ResponseWriter, r *http.Request) {
	var body expiringRequest
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := renewal.IngestRequest{
		TenantID:       body.TenantID,
		PolicyNumber:   body.PolicyNumber,
		CarrierName:    body.CarrierName,
		LineOfBusiness: body.LineOfBusiness,
		CustomerID:     body.CustomerID,
		PolicyID:       body.PolicyID,
	}
	if body.RenewalEffectiveDate != "" {
		t, err := time.Parse("2006-01-02", body.RenewalEffectiveDate)
		if err != nil {
			s.writeError(w, r, queryViolation("renewal_effective_date", body.RenewalEffectiveDate, "expected YYYY-MM-DD"))
			return
		}
		req.RenewalEffectiveDate = t
	}

	rec, created, err := s.svc.Ingest(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, rec)
}

type actionRequest struct {
	Decision model.Decision `json:"decision"`
	Notes    string         `json:"notes"`
	Reason   string         `json:"reason"`
	Actor    string         `json:"actor"`
}

// decodeAction accepts an empty body for actions that carry no fields,
// including a chunked body that ends before any JSON.
func decodeAction(w http.ResponseWriter, r *http.Request) (actionRequest, error) {
	var req actionRequest
	if r.ContentLength == 0 || r.Body == nil {
		return req, nil
	}
	err := decodeJSON(w, r, &req)
	switch {
	case errors.Is(err, io.EOF):
		return actionRequest{}, nil
	case err != nil:
		return req, bodyError(err)
	}
	return req, nil
}

func (s *server) action(fn func(r *http.Request, id string, req actionRequest) (*model.Record, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeAction(w, r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		req.Actor = actorFrom(r, req.Actor)
		rec, err := fn(r, chi.URLParam(r, "id"), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *server) compare(w http.ResponseWriter, r *http.Request) {
	s.action(func(r *http.Request, id string, req actionRequest) (*model.Record, error) {
		return s.svc.RunComparison(r.Context(), id, req.Actor)
	})(w, r)
}

func (s *server) decide(w http.ResponseWriter, r *http.Request) {
	s.action(func(r *http.Request, id string, req actionRequest) (*model.Record, error) {
		return s.svc.HandleAgentDecision(r.Context(), id, req.Decision, req.Notes, req.Actor)
	})(w, r)
}

func (s *server) resolve(w http.ResponseWriter, r *http.Request) {
	s.action(func(r *http.Request, id string, req actionRequest) (*model.Record, error) {
		return s.svc.ResolveReshop(r.Context(), id, req.Decision, req.Notes, req.Actor)
	})(w, r)
}

func (s *server) quoteReady(w http.ResponseWriter, r *http.Request) {
	s.action(func(r *http.Request, id string, req actionRequest) (*model.Record, error) {
		return s.svc.MarkQuoteReady(r.Context(), id, req.Actor)
	})(w, r)
}

func (s *server) complete(w http.ResponseWriter, r *http.Request) {
	s.action(func(r *http.Request, id string, req actionRequest) (*model.Record, error) {
		return s.svc.Complete(r.Context(), id, req.Actor)
	})(w, r)
}

func (s *server) cancel(w http.ResponseWriter, r *http.Request) {
	s.action(func(r *http.Request, id string, req actionRequest) (*model.Record, error) {
		return s.svc.Cancel(r.Context(), id, req.Reason, req.Actor)
	})(w, r)
}
