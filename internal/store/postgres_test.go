package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdsagency/renewals/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Load_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)SELECT id, tenant_id, policy_number,.* FROM renewal_records WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.Load(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateIfAbsent_Inserts(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`(?s)INSERT INTO renewal_records .* ON CONFLICT \(tenant_id, policy_number, renewal_effective_date\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := &model.Record{
		TenantID:             "t1",
		PolicyNumber:         "PA-100",
		LineOfBusiness:       model.LineAuto,
		RenewalEffectiveDate: time.Date(2026, 11, 1, 15, 30, 0, 0, time.UTC),
		Status:               model.StatusPending,
		RenewalSource:        model.SourceAL3,
	}
	created, err := s.CreateIfAbsent(context.Background(), rec)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), rec.RenewalEffectiveDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`(?s)UPDATE renewal_records SET carrier_name .* WHERE id = \$12 AND status = \$13`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM renewal_records WHERE id = \$1`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("completed"))

	err := s.Save(context.Background(), &model.Record{ID: "r1", Status: model.StatusWaitingAgentReview}, model.StatusPending)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "completed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Save_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE renewal_records SET`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM renewal_records`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	err := s.Save(context.Background(), &model.Record{ID: "gone"}, model.StatusPending)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDecision_EnqueuesIntentInTx(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`(?s)UPDATE renewal_records SET agent_decision = \$1,.* status = ANY\(\$7\)`).
		WithArgs("reshop", "requote_requested", at, "agent@x", "", "r1",
			[]string{"waiting_agent_review"}, []string{"needs_more_info"}, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`(?s)INSERT INTO sync_intents .* ON CONFLICT \(record_id, kind\) DO NOTHING`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpdateDecision(context.Background(), DecisionUpdate{
		RecordID:     "r1",
		Decision:     model.DecisionReshop,
		Status:       model.StatusRequoteRequested,
		Actor:        "agent@x",
		At:           at,
		FromStatuses: []model.RenewalStatus{model.StatusWaitingAgentReview},
		Replaceable:  []model.Decision{model.DecisionNeedsMoreInfo},
		AllowUnset:   true,
		Intent:       &model.SyncIntent{RecordID: "r1", TenantID: "t1", PolicyNumber: "PA-100", Kind: model.SyncRatingReshop},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDecision_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE renewal_records SET agent_decision`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT status FROM renewal_records`).
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("agent_reviewed"))
	mock.ExpectRollback()

	err := s.UpdateDecision(context.Background(), DecisionUpdate{
		RecordID:     "r1",
		Decision:     model.DecisionRenewAsIs,
		Status:       model.StatusAgentReviewed,
		At:           time.Now(),
		FromStatuses: []model.RenewalStatus{model.StatusWaitingAgentReview},
		AllowUnset:   true,
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecords_BuildsFilter(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	before := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE true AND tenant_id = \$1 AND status = ANY\(\$2\) AND renewal_effective_date <= \$3 ORDER BY renewal_effective_date, policy_number LIMIT \$4 OFFSET \$5`).
		WithArgs("t1", []string{"waiting_agent_review", "quote_ready"}, before, 25, 50).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	recs, err := s.ListRecords(context.Background(), RecordFilter{
		TenantID:        "t1",
		Statuses:        model.StatusComparisonReady.Expand(),
		EffectiveBefore: &before,
		Limit:           25,
		Offset:          50,
	})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	eff := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	snap := model.NewAutoSnapshot(model.PolicyInfo{PolicyNumber: "PA-100", CarrierName: "Acme", EffectiveDate: &eff}, nil, nil)
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	mock.ExpectQuery(`(?s)SELECT snapshot FROM snapshot_archive .* ORDER BY effective_date DESC LIMIT 1`).
		WithArgs("t1", "PA-100", "acme", time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)).
		WillReturnRows(pgxmock.NewRows([]string{"snapshot"}).AddRow(data))

	got, err := s.LatestSnapshot(context.Background(), "t1", "PA-100", "acme", time.Date(2026, 11, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "PA-100", got.Policy.PolicyNumber)
	assert.Equal(t, model.LineAuto, got.LineOfBusiness())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestSnapshot_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT snapshot FROM snapshot_archive`).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LatestSnapshot(context.Background(), "t1", "PA-100", "", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportArchive(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	eff := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_snapshot_archive"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_snapshot_archive"}, archiveUpsert.Columns).
		WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "snapshot_archive"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := s.ImportArchive(context.Background(), "t1", []*model.Snapshot{
		model.NewAutoSnapshot(model.PolicyInfo{PolicyNumber: "PA-100", EffectiveDate: &eff}, nil, nil),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ImportArchive_RejectsUndated(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	_, err := s.ImportArchive(context.Background(), "t1", []*model.Snapshot{
		model.NewAutoSnapshot(model.PolicyInfo{PolicyNumber: "PA-100"}, nil, nil),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "effective date")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSyncDispatched_NotPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE sync_intents SET status = \$1`).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkSyncDispatched(context.Background(), "i1", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS renewal_records`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.Contains(t, postgresMigration, "audit_events is append-only")
	assert.NoError(t, mock.ExpectationsWereMet())
}
