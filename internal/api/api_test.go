package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdsagency/renewals/internal/baseline"
	"github.com/tcdsagency/renewals/internal/check"
	"github.com/tcdsagency/renewals/internal/compare"
	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/renewal"
	"github.com/tcdsagency/renewals/internal/store"
)

var apiNow = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func newTestRouter(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	premium := decimal.NewFromInt(1000)
	eff := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	exp := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.ArchiveSnapshot(context.Background(), "tenant-1", model.NewAutoSnapshot(model.PolicyInfo{
		PolicyNumber: "PA-100", CarrierName: "Acme Mutual", InsuredName: "Jane Doe",
		Premium: &premium, EffectiveDate: &eff, ExpirationDate: &exp,
	}, nil, nil)))

	cfg := check.DefaultConfig()
	svc := renewal.NewService(st, st, baseline.NewArchiveProvider(st, false),
		compare.NewEngine(compare.DefaultConfig()),
		check.NewEngine(check.DefaultRules(cfg), cfg),
		renewal.WithClock(func() time.Time { return apiNow }),
	)
	return NewRouter(svc, st, Config{CORSOrigins: []string{"https://agents.example.com"}}), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeRecord(t *testing.T, w *httptest.ResponseRecorder) model.Record {
	t.Helper()
	var rec model.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec), w.Body.String())
	return rec
}

const al3Body = `{
	"tenant_id": "tenant-1",
	"source": "al3",
	"actor": "alex",
	"payload": {
		"policy_number": "PA-100",
		"carrier_name": "Acme Mutual",
		"insured_name": "Jane Doe",
		"line_of_business": "auto",
		"premium": "$1,150.00",
		"effective_date": "2026-11-01",
		"expiration_date": "2027-11-01"
	}
}`

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRenewalFlow(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodPost, "/renewals", al3Body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rec := decodeRecord(t, w)
	assert.Equal(t, model.StatusWaitingAgentReview, rec.Status)
	assert.Equal(t, model.RecommendReshop, rec.Recommendation)
	assert.Equal(t, model.BaselineFound, rec.BaselineStatus)

	w = do(t, h, http.MethodGet, "/renewals/"+rec.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.ID, decodeRecord(t, w).ID)

	w = do(t, h, http.MethodGet, "/renewals?tenant_id=tenant-1&status=comparison_ready", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Records []model.Record `json:"records"`
		Count   int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = do(t, h, http.MethodPost, "/renewals/"+rec.ID+"/decision",
		`{"decision":"bound_new_policy","notes":"moved carriers","actor":"alex"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusCompleted, decodeRecord(t, w).Status)

	w = do(t, h, http.MethodPost, "/renewals/"+rec.ID+"/decision", `{"decision":"renew_as_is","actor":"sam"}`)
	require.Equal(t, http.StatusConflict, w.Code)
	var conflict errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflict))
	assert.Equal(t, "alex", conflict.DecidedBy)
	assert.Equal(t, model.DecisionBoundNewPolicy, conflict.Decision)
	assert.Contains(t, conflict.Error, "already decided by alex on Oct 14, 2026")

	w = do(t, h, http.MethodGet, "/renewals/"+rec.ID+"/history", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Events []model.AuditEvent `json:"events"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	var types []model.AuditEventType
	for _, ev := range hist.Events {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []model.AuditEventType{
		model.EventRecordCreated, model.EventRenewalIngested, model.EventComparisonRun,
		model.EventAgentDecision, model.EventDecisionConflict,
	}, types)
}

func TestActorHeader(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := decodeRecord(t, do(t, h, http.MethodPost, "/renewals", al3Body))

	req := httptest.NewRequest(http.MethodPost, "/renewals/"+rec.ID+"/decision", strings.NewReader(`{"decision":"reshop"}`))
	req.Header.Set(actorHeader, "morgan")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decodeRecord(t, w)
	assert.Equal(t, "morgan", got.AgentDecisionBy)
	assert.Equal(t, model.StatusRequoteRequested, got.Status)

	w = do(t, h, http.MethodPost, "/renewals/"+rec.ID+"/quote-ready", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusQuoteReady, decodeRecord(t, w).Status)

	w = do(t, h, http.MethodPost, "/renewals/"+rec.ID+"/resolve", `{"decision":"no_better_option","actor":"morgan"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusAgentReviewed, decodeRecord(t, w).Status)

	w = do(t, h, http.MethodPost, "/renewals/"+rec.ID+"/complete", `{"actor":"morgan"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusCompleted, decodeRecord(t, w).Status)
}

func TestActionAcceptsEmptyChunkedBody(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := decodeRecord(t, do(t, h, http.MethodPost, "/renewals", al3Body))
	w := do(t, h, http.MethodPost, "/renewals/"+rec.ID+"/decision", `{"decision":"reshop","actor":"morgan"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	chunked := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/renewals/"+rec.ID+"/quote-ready", io.NopCloser(strings.NewReader(body)))
		req.ContentLength = -1
		req.Header.Set(actorHeader, "morgan")
		return req
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, chunked(`{"actor":`))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, chunked(""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, model.StatusQuoteReady, decodeRecord(t, w).Status)
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := decodeRecord(t, do(t, h, http.MethodPost, "/renewals", al3Body))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"unknown record", http.MethodGet, "/renewals/missing", "", http.StatusNotFound},
		{"unknown record history", http.MethodGet, "/renewals/missing/history", "", http.StatusNotFound},
		{"decide unknown record", http.MethodPost, "/renewals/missing/decision", `{"decision":"reshop","actor":"alex"}`, http.StatusNotFound},
		{"invalid decision", http.MethodPost, "/renewals/" + rec.ID + "/decision", `{"decision":"maybe","actor":"alex"}`, http.StatusUnprocessableEntity},
		{"missing actor", http.MethodPost, "/renewals/" + rec.ID + "/decision", `{"decision":"reshop"}`, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/renewals", `{"tenant_id":`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/renewals/" + rec.ID + "/decision", `{"verdict":"reshop"}`, http.StatusUnprocessableEntity},
		{"precondition", http.MethodPost, "/renewals/" + rec.ID + "/complete", "", http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/renewals?limit=-1", "", http.StatusUnprocessableEntity},
		{"bad date filter", http.MethodGet, "/renewals?effective_before=soon", "", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestIngestExpiring(t *testing.T) {
	h, _ := newTestRouter(t)
	body := `{"tenant_id":"tenant-1","policy_number":"PA-100","carrier_name":"Acme Mutual","renewal_effective_date":"2026-11-01"}`

	w := do(t, h, http.MethodPost, "/renewals/expiring", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	rec := decodeRecord(t, w)
	assert.Equal(t, model.StatusPending, rec.Status)
	assert.Equal(t, model.BaselineFound, rec.BaselineStatus)

	w = do(t, h, http.MethodPost, "/renewals/expiring", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.ID, decodeRecord(t, w).ID)

	w = do(t, h, http.MethodPost, "/renewals/expiring",
		`{"tenant_id":"tenant-1","policy_number":"PA-999","renewal_effective_date":"2026-11-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, model.StatusPendingManualRenewal, decodeRecord(t, w).Status)
}

func TestCORS(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/renewals", nil)
	req.Header.Set("Origin", "https://agents.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://agents.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestNewServer(t *testing.T) {
	srv := NewServer(http.NotFoundHandler(), Config{Port: 8080})
	assert.Equal(t, ":8080", srv.Addr)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
}
