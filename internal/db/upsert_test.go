package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var archiveUpsert = UpsertConfig{
	Table:        "snapshot_archive",
	Columns:      []string{"tenant_id", "policy_number", "effective_date", "snapshot"},
	ConflictKeys: []string{"tenant_id", "policy_number", "effective_date"},
}

func TestBulkUpsert_Validation(t *testing.T) {
	t.Parallel()

	n, err := BulkUpsert(context.Background(), nil, archiveUpsert, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", ConflictKeys: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")

	_, err = BulkUpsert(context.Background(), nil, UpsertConfig{Table: "t", Columns: []string{"id"}}, [][]any{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_Mock(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_snapshot_archive"`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_snapshot_archive"}, archiveUpsert.Columns).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "snapshot_archive"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	rows := [][]any{
		{"t1", "PA-1", "2025-03-01", []byte(`{}`)},
		{"t1", "PA-2", "2025-04-01", []byte(`{}`)},
	}
	n, err := BulkUpsert(context.Background(), mock, archiveUpsert, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestUpsertSQL(t *testing.T) {
	t.Parallel()

	got := UpsertSQL(archiveUpsert, "_tmp")
	assert.Equal(t,
		`INSERT INTO "snapshot_archive" ("tenant_id", "policy_number", "effective_date", "snapshot") `+
			`SELECT "tenant_id", "policy_number", "effective_date", "snapshot" FROM "_tmp" `+
			`ON CONFLICT ("tenant_id", "policy_number", "effective_date") DO UPDATE SET "snapshot" = EXCLUDED."snapshot"`,
		got)

	keysOnly := UpsertConfig{Table: "renewals.keys", Columns: []string{"id"}, ConflictKeys: []string{"id"}}
	assert.Contains(t, UpsertSQL(keysOnly, "_tmp"), `INSERT INTO "renewals"."keys"`)
	assert.Contains(t, UpsertSQL(keysOnly, "_tmp"), "DO NOTHING")
}
