package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/tcdsagency/renewals/internal/db"
	"github.com/tcdsagency/renewals/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres connects and returns a PostgresStore.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pc := db.PoolConfig{MaxConns: 10, MinConns: 2}
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pc.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pc.MinConns = poolCfg.MinConns
		}
	}
	pool, err := db.Connect(ctx, connString, pc)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS renewal_records (
	id                     TEXT PRIMARY KEY,
	tenant_id              TEXT NOT NULL,
	policy_number          TEXT NOT NULL,
	carrier_name           TEXT NOT NULL DEFAULT '',
	line_of_business       TEXT NOT NULL,
	renewal_effective_date DATE NOT NULL,
	customer_id            TEXT NOT NULL DEFAULT '',
	policy_id              TEXT NOT NULL DEFAULT '',
	status                 TEXT NOT NULL,
	agent_decision         TEXT,
	agent_decision_at      TIMESTAMPTZ,
	agent_decision_by      TEXT NOT NULL DEFAULT '',
	agent_notes            TEXT NOT NULL DEFAULT '',
	renewal_source         TEXT NOT NULL DEFAULT 'pending',
	baseline_status        TEXT NOT NULL DEFAULT '',
	recommendation         TEXT NOT NULL DEFAULT '',
	compared_at            TIMESTAMPTZ,
	payload                JSONB NOT NULL DEFAULT '{}',
	created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, policy_number, renewal_effective_date)
);

CREATE INDEX IF NOT EXISTS idx_renewal_records_tenant_status ON renewal_records(tenant_id, status);
CREATE INDEX IF NOT EXISTS idx_renewal_records_effective ON renewal_records(renewal_effective_date);

CREATE TABLE IF NOT EXISTS audit_events (
	id           TEXT PRIMARY KEY,
	record_id    TEXT NOT NULL REFERENCES renewal_records(id),
	tenant_id    TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	event_data   JSONB NOT NULL DEFAULT '{}',
	performed_by TEXT NOT NULL,
	performed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_events_record ON audit_events(record_id, performed_at);

CREATE OR REPLACE FUNCTION audit_events_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'audit_events is append-only';
END;
$$ LANGUAGE plpgsql;

CREATE OR REPLACE TRIGGER audit_events_no_mutation
	BEFORE UPDATE OR DELETE ON audit_events
	FOR EACH ROW EXECUTE FUNCTION audit_events_append_only();

CREATE TABLE IF NOT EXISTS snapshot_archive (
	tenant_id        TEXT NOT NULL,
	policy_number    TEXT NOT NULL,
	carrier_name     TEXT NOT NULL DEFAULT '',
	line_of_business TEXT NOT NULL,
	effective_date   DATE NOT NULL,
	snapshot         JSONB NOT NULL,
	archived_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
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
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	dispatched_at TIMESTAMPTZ,
	UNIQUE (record_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_sync_intents_pending ON sync_intents(status, created_at);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgRecordColumns = `id, tenant_id, policy_number, carrier_name, line_of_business, renewal_effective_date,
	customer_id, policy_id, status, agent_decision, agent_decision_at, agent_decision_by, agent_notes,
	renewal_source, baseline_status, recommendation, compared_at, payload, created_at, updated_at`

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, rec *model.Record) (bool, error) {
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

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO renewal_records (`+pgRecordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (tenant_id, policy_number, renewal_effective_date) DO NOTHING`,
		rec.ID, rec.TenantID, rec.PolicyNumber, rec.CarrierName, string(rec.LineOfBusiness), rec.RenewalEffectiveDate,
		rec.CustomerID, rec.PolicyID, string(rec.Status), nullString(string(rec.AgentDecision)), rec.AgentDecisionAt,
		rec.AgentDecisionBy, rec.AgentNotes, string(rec.RenewalSource), string(rec.BaselineStatus),
		string(rec.Recommendation), rec.ComparedAt, payload, now, now,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert record %s", rec.PolicyNumber)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	existing, err := s.FindByKey(ctx, rec.TenantID, rec.PolicyNumber, rec.RenewalEffectiveDate)
	if err != nil {
		return false, err
	}
	*rec = *existing
	return false, nil
}

func (s *PostgresStore) Load(ctx context.Context, id string) (*model.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgRecordColumns+` FROM renewal_records WHERE id = $1`, id)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: record %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load record %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, tenantID, policyNumber string, effective time.Time) (*model.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgRecordColumns+` FROM renewal_records
		 WHERE tenant_id = $1 AND policy_number = $2 AND renewal_effective_date = $3`,
		tenantID, policyNumber, dateOnly(effective),
	)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: record %s/%s", tenantID, policyNumber)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find record %s", policyNumber)
	}
	return rec, nil
}

func (s *PostgresStore) Save(ctx context.Context, rec *model.Record, expected model.RenewalStatus) error {
	payload, err := marshalPayload(rec)
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx,
		`UPDATE renewal_records SET carrier_name = $1, line_of_business = $2, customer_id = $3, policy_id = $4,
		 status = $5, renewal_source = $6, baseline_status = $7, recommendation = $8, compared_at = $9,
		 payload = $10, updated_at = $11
		 WHERE id = $12 AND status = $13`,
		rec.CarrierName, string(rec.LineOfBusiness), rec.CustomerID, rec.PolicyID,
		string(rec.Status), string(rec.RenewalSource), string(rec.BaselineStatus), string(rec.Recommendation),
		rec.ComparedAt, payload, rec.UpdatedAt, rec.ID, string(expected),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: save record %s", rec.ID)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, rec.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateDecision(ctx context.Context, u DecisionUpdate) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin decision tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE renewal_records SET agent_decision = $1, status = $2, agent_decision_at = $3,
		 agent_decision_by = $4, agent_notes = $5, updated_at = $3
		 WHERE id = $6 AND status = ANY($7)
		 AND (agent_decision = ANY($8) OR ($9::boolean AND agent_decision IS NULL))`,
		string(u.Decision), string(u.Status), u.At, u.Actor, u.Notes,
		u.RecordID, statusStrings(u.FromStatuses), decisionStrings(u.Replaceable), u.AllowUnset,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update decision %s", u.RecordID)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrConflict(ctx, u.RecordID)
	}

	if u.Intent != nil {
		if _, err := insertIntentPg(ctx, tx, *u.Intent); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit decision")
}

func (s *PostgresStore) missingOrConflict(ctx context.Context, id string) error {
	var status string
	err := s.pool.QueryRow(ctx, `SELECT status FROM renewal_records WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: record %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: check record %s", id)
	}
	return eris.Wrapf(ErrConflict, "postgres: record %s is %s", id, status)
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error) {
	query := `SELECT ` + pgRecordColumns + ` FROM renewal_records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}
	if len(filter.Statuses) > 0 {
		query += fmt.Sprintf(` AND status = ANY($%d)`, argIdx)
		args = append(args, statusStrings(filter.Statuses))
		argIdx++
	}
	if filter.PolicyNumber != "" {
		query += fmt.Sprintf(` AND policy_number = $%d`, argIdx)
		args = append(args, filter.PolicyNumber)
		argIdx++
	}
	if filter.EffectiveBefore != nil {
		query += fmt.Sprintf(` AND renewal_effective_date <= $%d`, argIdx)
		args = append(args, dateOnly(*filter.EffectiveBefore))
		argIdx++
	}
	query += ` ORDER BY renewal_effective_date, policy_number`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.Record
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records iterate")
}

func scanPgRecord(row pgx.Row) (*model.Record, error) {
	var (
		r        model.Record
		lob      string
		status   string
		decision *string
		source   string
		baseline string
		rec      string
		payload  []byte
	)
	err := row.Scan(&r.ID, &r.TenantID, &r.PolicyNumber, &r.CarrierName, &lob, &r.RenewalEffectiveDate,
		&r.CustomerID, &r.PolicyID, &status, &decision, &r.AgentDecisionAt, &r.AgentDecisionBy, &r.AgentNotes,
		&source, &baseline, &rec, &r.ComparedAt, &payload, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.LineOfBusiness = model.LineOfBusiness(lob)
	r.Status = model.RenewalStatus(status)
	r.AgentDecision = model.Decision(derefString(decision))
	r.RenewalSource = model.RenewalSource(source)
	r.BaselineStatus = model.BaselineStatus(baseline)
	r.Recommendation = model.Recommendation(rec)
	if err := unmarshalPayload(payload, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) AppendAuditEvent(ctx context.Context, ev model.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.PerformedAt.IsZero() {
		ev.PerformedAt = time.Now().UTC()
	}
	data, err := json.Marshal(ev.EventData)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal event data")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, record_id, tenant_id, event_type, event_data, performed_by, performed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.RecordID, ev.TenantID, string(ev.EventType), data, ev.PerformedBy, ev.PerformedAt,
	)
	return eris.Wrapf(err, "postgres: append audit event %s", ev.EventType)
}

func (s *PostgresStore) History(ctx context.Context, recordID string) ([]model.AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, tenant_id, event_type, event_data, performed_by, performed_at
		 FROM audit_events WHERE record_id = $1 ORDER BY performed_at, id`,
		recordID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: history %s", recordID)
	}
	defer rows.Close()

	var out []model.AuditEvent
	for rows.Next() {
		var ev model.AuditEvent
		var eventType string
		var data []byte
		if err := rows.Scan(&ev.ID, &ev.RecordID, &ev.TenantID, &eventType, &data, &ev.PerformedBy, &ev.PerformedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit event")
		}
		ev.EventType = model.AuditEventType(eventType)
		if err := json.Unmarshal(data, &ev.EventData); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal event data")
		}
		out = append(out, ev)
	}
	return out, eris.Wrap(rows.Err(), "postgres: history iterate")
}

func (s *PostgresStore) ArchiveSnapshot(ctx context.Context, tenantID string, snap *model.Snapshot) error {
	effective, err := archiveKey(snap)
	if err != nil {
		return err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal snapshot")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO snapshot_archive (tenant_id, policy_number, carrier_name, line_of_business, effective_date, snapshot, archived_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, policy_number, effective_date) DO UPDATE SET
		 carrier_name = EXCLUDED.carrier_name, line_of_business = EXCLUDED.line_of_business,
		 snapshot = EXCLUDED.snapshot, archived_at = EXCLUDED.archived_at`,
		tenantID, snap.Policy.PolicyNumber, snap.Policy.CarrierName, string(snap.LineOfBusiness()), effective, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: archive snapshot %s", snap.Policy.PolicyNumber)
}

var archiveUpsert = db.UpsertConfig{
	Table:        "snapshot_archive",
	Columns:      []string{"tenant_id", "policy_number", "carrier_name", "line_of_business", "effective_date", "snapshot", "archived_at"},
	ConflictKeys: []string{"tenant_id", "policy_number", "effective_date"},
}

// ImportArchive bulk-loads prior terms, replacing any with the same key.
func (s *PostgresStore) ImportArchive(ctx context.Context, tenantID string, snaps []*model.Snapshot) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(snaps))
	for _, snap := range snaps {
		effective, err := archiveKey(snap)
		if err != nil {
			return 0, err
		}
		data, err := json.Marshal(snap)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal snapshot")
		}
		rows = append(rows, []any{tenantID, snap.Policy.PolicyNumber, snap.Policy.CarrierName,
			string(snap.LineOfBusiness()), effective, data, now})
	}
	n, err := db.BulkUpsert(ctx, s.pool, archiveUpsert, rows)
	return n, eris.Wrap(err, "postgres: import archive")
}

func (s *PostgresStore) LatestSnapshot(ctx context.Context, tenantID, policyNumber, carrier string, before time.Time) (*model.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot FROM snapshot_archive
		 WHERE tenant_id = $1 AND policy_number = $2 AND ($3 = '' OR lower(carrier_name) = lower($3))
		 AND effective_date < $4
		 ORDER BY effective_date DESC LIMIT 1`,
		tenantID, policyNumber, carrier, dateOnly(before),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: no archived term for %s", policyNumber)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: latest snapshot %s", policyNumber)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal snapshot")
	}
	return &snap, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertIntentPg(ctx context.Context, ex execer, in model.SyncIntent) (bool, error) {
	if in.ID == "" {
		in.ID = uuid.New().String()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}
	if in.Status == "" {
		in.Status = model.IntentPending
	}
	tag, err := ex.Exec(ctx,
		`INSERT INTO sync_intents (id, record_id, tenant_id, policy_number, kind, status, attempts, last_error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, '', $7)
		 ON CONFLICT (record_id, kind) DO NOTHING`,
		in.ID, in.RecordID, in.TenantID, in.PolicyNumber, string(in.Kind), string(in.Status), in.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: enqueue sync intent for %s", in.RecordID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) EnqueueSyncIntent(ctx context.Context, intent model.SyncIntent) (bool, error) {
	return insertIntentPg(ctx, s.pool, intent)
}

func (s *PostgresStore) PendingSyncIntents(ctx context.Context, limit, maxAttempts int) ([]model.SyncIntent, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, record_id, tenant_id, policy_number, kind, status, attempts, last_error, created_at, dispatched_at
		 FROM sync_intents WHERE status = $1 AND ($2 <= 0 OR attempts < $2)
		 ORDER BY created_at, id LIMIT $3`,
		string(model.IntentPending), maxAttempts, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending sync intents")
	}
	defer rows.Close()

	var out []model.SyncIntent
	for rows.Next() {
		var in model.SyncIntent
		var kind, status string
		if err := rows.Scan(&in.ID, &in.RecordID, &in.TenantID, &in.PolicyNumber, &kind, &status,
			&in.Attempts, &in.LastError, &in.CreatedAt, &in.DispatchedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync intent")
		}
		in.Kind = model.SyncIntentKind(kind)
		in.Status = model.SyncIntentStatus(status)
		out = append(out, in)
	}
	return out, eris.Wrap(rows.Err(), "postgres: pending sync intents iterate")
}

func (s *PostgresStore) MarkSyncDispatched(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_intents SET status = $1, dispatched_at = $2, attempts = attempts + 1, last_error = ''
		 WHERE id = $3 AND status = $4`,
		string(model.IntentDispatched), at, id, string(model.IntentPending),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark sync intent %s dispatched", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: pending sync intent %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkSyncFailed(ctx context.Context, id, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sync_intents SET attempts = attempts + 1, last_error = $1 WHERE id = $2`,
		reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark sync intent %s failed", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: sync intent %s", id)
	}
	return nil
}
