package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tcdsagency/renewals/internal/model"
)

const (
	sqliteDateLayout = "2006-01-02"
	sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
}

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path in WAL mode. Pragmas
// ride on the DSN so every pooled connection gets them.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Single writer; transactions must not touch s.db while open.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

func sqliteDSN(dsn string) string {
	parts := make([]string, 0, len(sqlitePragmas))
	for _, p := range sqlitePragmas {
		parts = append(parts, "_pragma="+p)
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(parts, "&")
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS renewal_records (
	id                     TEXT PRIMARY KEY,
	tenant_id              TEXT NOT NULL,
	policy_number          TEXT NOT NULL,
	carrier_name           TEXT NOT NULL DEFAULT '',
	line_of_business       TEXT NOT NULL,
	renewal_effective_date TEXT NOT NULL,
	customer_id            TEXT NOT NULL DEFAULT '',
	policy_id              TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	agent_decision         TEXT,
	agent_decision_at      TEXT,
	agent_decision_by      TEXT NOT NULL DEFAULT '',
	agent_notes            TEXT NOT NULL DEFAULT '',
	renewal_source         TEXT NOT NULL DEFAULT 'pending',
	baseline_status        TEXT NOT NULL DEFAULT '',
	recommendation         TEXT NOT NULL DEFAULT '',
	compared_at            TEXT,
	payload                TEXT NOT NULL DEFAULT '{}',
	created_at             TEXT NOT NULL,
	updated_at             TEXT NOT NULL,
	UNIQUE (tenant_id, policy_number, renewal_effective_date)
);

CREATE INDEX IF NOT EXISTS idx_renewal_records_tenant_status ON renewal_records(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_renewal_records_effective ON renewal_records(renewal_effective_date);

CREATE TABLE IF NOT EXISTS audit_events (
	id           TEXT PRIMARY KEY,
	record_id    TEXT NOT NULL REFERENCES renewal_records(id),
	tenant_id    TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	event_data   TEXT NOT NULL DEFAULT '{}',
	performed_by TEXT NOT NULL,
	performed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_events_record ON audit_events(record_id, performed_at);

CREATE TRIGGER IF NOT EXISTS audit_events_no_update BEFORE UPDATE ON audit_events
BEGIN
	SELECT RAISE(ABORT, 'audit_events is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_events_no_delete BEFORE DELETE ON audit_events
BEGIN
	SELECT RAISE(ABORT, 'audit_events is append-only');
END;

CREATE TABLE IF NOT EXISTS snapshot_archive (
	tenant_id        TEXT NOT NULL,
	policy_number    TEXT NOT NULL,
	carrier_name     TEXT NOT NULL DEFAULT '',
	line_of_business TEXT NOT NULL,
	effective_date   TEXT NOT NULL,
	snapshot         TEXT NOT NULL,
	archived_at      TEXT NOT NULL,
	PRIMARY KEY (tenant_id, policy_number, effective_date)
);

CREATE TABLE IF NOT EXISTS sync_intents (
	id            TEXT PRIMARY KEY,
	record_id     TEXT NOT NULL REFERENCES renewal_records(id),
	tenant_id     TEXT NOT NULL,
	policy_number TEXT NOT NULL,
	kind          TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	dispatched_at TEXT,
	UNIQUE (record_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_sync_intents_pending ON sync_intents(status, created_at);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteRecordColumns = `id, tenant_id, policy_number, carrier_name, line_of_business, renewal_effective_date,
	customer_id, policy_id, status, agent_decision, agent_decision_at, agent_decision_by, agent_notes,
	renewal_source, baseline_status, recommendation, compared_at, payload, created_at, updated_at`

func (s *SQLiteStore) CreateIfAbsent(ctx context.Context, rec *model.Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.RenewalEffectiveDate = dateOnly(rec.RenewalEffectiveDate)

	payload, err := marshalPayload(rec)
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO renewal_records (`+sqliteRecordColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, policy_number, renewal_effective_date) DO NOTHING`,
		rec.ID, rec.TenantID, rec.PolicyNumber, rec.CarrierName, string(rec.LineOfBusiness),
		fmtDate(rec.RenewalEffectiveDate), rec.CustomerID, rec.PolicyID, string(rec.Status),
		nullString(string(rec.AgentDecision)), fmtTimePtr(rec.AgentDecisionAt), rec.AgentDecisionBy, rec.AgentNotes,
		string(rec.RenewalSource), string(rec.BaselineStatus), string(rec.Recommendation),
		fmtTimePtr(rec.ComparedAt), string(payload), fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert record %s", rec.PolicyNumber)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 1 {
		return true, nil
	}

	existing, err := s.FindByKey(ctx, rec.TenantID, rec.PolicyNumber, rec.RenewalEffectiveDate)
	if err != nil {
		return false, err
	}
	*rec = *existing
	return false, nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteRecordColumns+` FROM renewal_records WHERE id = ?`, id)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load record %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) FindByKey(ctx context.Context, tenantID, policyNumber string, effective time.Time) (*model.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteRecordColumns+` FROM renewal_records
		 WHERE tenant_id = ? AND policy_number = ? AND renewal_effective_date = ?`,
		tenantID, policyNumber, fmtDate(effective),
	)
	rec, err := scanSQLiteRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: record %s/%s", tenantID, policyNumber)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find record %s", policyNumber)
	}
	return rec, nil
}

func (s *SQLiteStore) Save(ctx context.Context, rec *model.Record, expected model.RenewalStatus) error {
	payload, err := marshalPayload(rec)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE renewal_records SET carrier_name = ?, line_of_business = ?, customer_id = ?, policy_id = ?,
		 status = ?, renewal_source = ?, baseline_status = ?, recommendation = ?, compared_at = ?,
		 payload = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		rec.CarrierName, string(rec.LineOfBusiness), rec.CustomerID, rec.PolicyID,
		string(rec.Status), string(rec.RenewalSource), string(rec.BaselineStatus), string(rec.Recommendation),
		fmtTimePtr(rec.ComparedAt), string(payload), fmtTime(rec.UpdatedAt), rec.ID, string(expected),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: save record %s", rec.ID)
	}
	return s.checkSwapped(ctx, s.db, res, rec.ID)
}

func (s *SQLiteStore) UpdateDecision(ctx context.Context, u DecisionUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin decision tx")
	}
	defer tx.Rollback() //nolint:errcheck

	args := []any{string(u.Decision), string(u.Status), fmtTime(u.At), u.Actor, u.Notes, fmtTime(u.At), u.RecordID}
	query := `UPDATE renewal_records SET agent_decision = ?, status = ?, agent_decision_at = ?,
		 agent_decision_by = ?, agent_notes = ?, updated_at = ?
		 WHERE id = ? AND status IN (` + placeholders(len(u.FromStatuses)) + `)`
	for _, st := range u.FromStatuses {
		args = append(args, string(st))
	}

	var guards []string
	if len(u.Replaceable) > 0 {
		guards = append(guards, `agent_decision IN (`+placeholders(len(u.Replaceable))+`)`)
		for _, d := range u.Replaceable {
			args = append(args, string(d))
		}
	}
	if u.AllowUnset {
		guards = append(guards, `agent_decision IS NULL`)
	}
	if len(guards) == 0 {
		guards = append(guards, `0`)
	}
	query += ` AND (` + strings.Join(guards, ` OR `) + `)`

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update decision %s", u.RecordID)
	}
	if err := s.checkSwapped(ctx, tx, res, u.RecordID); err != nil {
		return err
	}

	if u.Intent != nil {
		if _, err := insertIntentSQLite(ctx, tx, *u.Intent); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit decision")
}

type sqliteQueryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkSwapped maps a zero-row conditional update to ErrNotFound or ErrConflict.
func (s *SQLiteStore) checkSwapped(ctx context.Context, q sqliteQueryer, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n > 0 {
		return nil
	}
	var status string
	err = q.QueryRowContext(ctx, `SELECT status FROM renewal_records WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: record %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: check record %s", id)
	}
	return eris.Wrapf(ErrConflict, "sqlite: record %s is %s", id, status)
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT ` + sqliteRecordColumns + ` FROM renewal_records WHERE 1=1`
	var args []any

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if len(filter.Statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(filter.Statuses)) + `)`
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.PolicyNumber != "" {
		query += ` AND policy_number = ?`
		args = append(args, filter.PolicyNumber)
	}
	if filter.EffectiveBefore != nil {
		query += ` AND renewal_effective_date <= ?`
		args = append(args, fmtDate(*filter.EffectiveBefore))
	}
	query += ` ORDER BY renewal_effective_date, policy_number`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func (s *SQLiteStore) AppendAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.PerformedAt.IsZero() {
		ev.PerformedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev.EventData)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal event data")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, record_id, tenant_id, event_type, event_data, performed_by, performed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RecordID, ev.TenantID, string(ev.EventType), string(data), ev.PerformedBy, fmtTime(ev.PerformedAt),
	)
	return eris.Wrapf(err, "sqlite: append audit event %s", ev.EventType)
}

func (s *SQLiteStore) History(ctx context.Context, recordID string) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, tenant_id, event_type, event_data, performed_by, performed_at
		 FROM audit_events WHERE record_id = ? ORDER BY performed_at, rowid`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: history %s", recordID)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var eventType, data, performedAt string
		if err := rows.Scan(&ev.ID, &ev.RecordID, &ev.TenantID, &eventType, &data, &ev.PerformedBy, &performedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit event")
		}
		ev.EventType = model.AuditEventType(eventType)
		if ev.PerformedAt, err = parseTime(performedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &ev.EventData); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal event data")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: history iterate")
}

func (s *SQLiteStore) ArchiveSnapshot(ctx context.Context, tenantID string, snap *model.Snapshot) error {
	return s.archive(ctx, s.db, tenantID, snap, time.Now().UTC())
}

func (s *SQLiteStore) archive(ctx context.Context, q sqliteQueryer, tenantID string, snap *model.Snapshot, at time.Time) error {
	effective, err := archiveKey(snap)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal snapshot")
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO snapshot_archive (tenant_id, policy_number, carrier_name, line_of_business, effective_date, snapshot, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, policy_number, effective_date) DO UPDATE SET
		 carrier_name = excluded.carrier_name, line_of_business = excluded.line_of_business,
		 snapshot = excluded.snapshot, archived_at = excluded.archived_at`,
		tenantID, snap.Policy.PolicyNumber, snap.Policy.CarrierName, string(snap.LineOfBusiness()),
		fmtDate(effective), string(data), fmtTime(at),
	)
	return eris.Wrapf(err, "sqlite: archive snapshot %s", snap.Policy.PolicyNumber)
}

// ImportArchive loads prior terms in one transaction.
func (s *SQLiteStore) ImportArchive(ctx context.Context, tenantID string, snaps []*model.Snapshot) (int64, error) {
	if len(snaps) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, snap := range snaps {
		if err := s.archive(ctx, tx, tenantID, snap, now); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import")
	}
	return int64(len(snaps)), nil
}

func (s *SQLiteStore) LatestSnapshot(ctx context.Context, tenantID, policyNumber, carrier string, before time.Time) (*model.Snapshot, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM snapshot_archive
		 WHERE tenant_id = ? AND policy_number = ? AND (? = '' OR lower(carrier_name) = lower(?))
		 AND effective_date < ?
		 ORDER BY effective_date DESC LIMIT 1`,
		tenantID, policyNumber, carrier, carrier, fmtDate(before),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: no archived term for %s", policyNumber)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: latest snapshot %s", policyNumber)
	}
	var snap model.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal snapshot")
	}
	return &snap, nil
}

func insertIntentSQLite(ctx context.Context, q sqliteQueryer, in model.SyncIntent) (bool, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.Status == "" {
		in.Status = model.IntentPending
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO sync_intents (id, record_id, tenant_id, policy_number, kind, status, attempts, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, '', ?)
		 ON CONFLICT (record_id, kind) DO NOTHING`,
		in.ID, in.RecordID, in.TenantID, in.PolicyNumber, string(in.Kind), string(in.Status), fmtTime(in.CreatedAt),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: enqueue sync intent for %s", in.RecordID)
	}
	n, err := res.RowsAffected()
	return n == 1, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) EnqueueSyncIntent(ctx context.Context, intent model.SyncIntent) (bool, error) {
	return insertIntentSQLite(ctx, s.db, intent)
}

func (s *SQLiteStore) PendingSyncIntents(ctx context.Context, limit, maxAttempts int) ([]model.SyncIntent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, record_id, tenant_id, policy_number, kind, status, attempts, last_error, created_at, dispatched_at
		 FROM sync_intents WHERE status = ? AND (? <= 0 OR attempts < ?)
		 ORDER BY created_at, id LIMIT ?`,
		string(model.IntentPending), maxAttempts, maxAttempts, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending sync intents")
	}
	defer rows.Close()

	var out []model.SyncIntent
	for rows.Next() {
		var in model.SyncIntent
		var kind, status, created string
		var dispatched sql.NullString
		if err := rows.Scan(&in.ID, &in.RecordID, &in.TenantID, &in.PolicyNumber, &kind, &status,
			&in.Attempts, &in.LastError, &created, &dispatched); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync intent")
		}
		in.Kind = model.SyncIntentKind(kind)
		in.Status = model.SyncIntentStatus(status)
		if in.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if in.DispatchedAt, err = parseTimePtr(dispatched); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: pending sync intents iterate")
}

func (s *SQLiteStore) MarkSyncDispatched(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_intents SET status = ?, dispatched_at = ?, attempts = attempts + 1, last_error = ''
		 WHERE id = ? AND status = ?`,
		string(model.IntentDispatched), fmtTime(at), id, string(model.IntentPending),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark sync intent %s dispatched", id)
	}
	return checkRowsAffected(res, "pending sync intent", id)
}

func (s *SQLiteStore) MarkSyncFailed(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sync_intents SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark sync intent %s failed", id)
	}
	return checkRowsAffected(res, "sync intent", id)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scannable) (*model.Record, error) {
	var (
		r                                model.Record
		lob, effective, status, source   string
		baseline, rec, payload           string
		created, updated                 string
		decision, decisionAt, comparedAt sql.NullString
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.PolicyNumber, &r.CarrierName, &lob, &effective,
		&r.CustomerID, &r.PolicyID, &status, &decision, &decisionAt, &r.AgentDecisionBy, &r.AgentNotes,
		&source, &baseline, &rec, &comparedAt, &payload, &created, &updated)
	if err != nil {
		return nil, err
	}
	r.LineOfBusiness = model.LineOfBusiness(lob)
	r.Status = model.RenewalStatus(status)
	r.AgentDecision = model.Decision(decision.String)
	r.RenewalSource = model.RenewalSource(source)
	r.BaselineStatus = model.BaselineStatus(baseline)
	r.Recommendation = model.Recommendation(rec)

	if r.RenewalEffectiveDate, err = time.Parse(sqliteDateLayout, effective); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse effective date %q", effective)
	}
	if r.AgentDecisionAt, err = parseTimePtr(decisionAt); err != nil {
		return nil, err
	}
	if r.ComparedAt, err = parseTimePtr(comparedAt); err != nil {
		return nil, err
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if err := unmarshalPayload([]byte(payload), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func fmtDate(t time.Time) string {
	return dateOnly(t).Format(sqliteDateLayout)
}

// fmtTime renders fixed-width UTC so text ordering matches time ordering.
func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	return t, eris.Wrapf(err, "sqlite: parse time %q", s)
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
