package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdsagency/renewals/internal/config"
	"github.com/tcdsagency/renewals/internal/ingest"
	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/store"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{
		"serve", "compare", "ingest", "decide", "resolve", "quote-ready",
		"complete", "cancel", "export", "sync", "migrate", "archive-import",
	}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "renewals", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"csv", "tenant", "delimiter", "window-days"} {
		assert.NotNil(t, ingestCmd.Flags().Lookup(name), "ingest should have --%s flag", name)
	}
	assert.Equal(t, ",", ingestCmd.Flags().Lookup("delimiter").DefValue)
}

func TestDecisionCommands_Flags(t *testing.T) {
	assert.NotNil(t, decideCmd.Flags().Lookup("decision"))
	assert.NotNil(t, decideCmd.Flags().Lookup("notes"))
	assert.NotNil(t, resolveCmd.Flags().Lookup("decision"))
	assert.NotNil(t, cancelCmd.Flags().Lookup("reason"))
	assert.Nil(t, completeCmd.Flags().Lookup("decision"))
	for _, name := range []string{"id", "actor"} {
		assert.NotNil(t, quoteReadyCmd.Flags().Lookup(name))
		assert.NotNil(t, completeCmd.Flags().Lookup(name))
	}
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "renewals.xlsx", flag.DefValue)
}

func TestSyncCommand_Flags(t *testing.T) {
	flag := syncCmd.Flags().Lookup("once")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestInitStore(t *testing.T) {
	ctx := context.Background()

	st, err := initStore(ctx, config.StoreConfig{Driver: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "r.db")})
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Close())

	_, err = initStore(ctx, config.StoreConfig{Driver: "mongo"})
	assert.ErrorContains(t, err, "unsupported store driver: mongo")
}

func TestBuildService_RejectsInvalidRules(t *testing.T) {
	c := &config.Config{}
	c.Check.SeverityOverrides = map[string]string{"premium_outlier": "urgent"}
	_, err := buildService(c, nil)
	assert.ErrorContains(t, err, "check rules")
}

// TestCLI_IngestAndExport drives the archive import, ingest and export
// commands end to end against a SQLite store.
func TestCLI_IngestAndExport(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck

	dbPath := filepath.Join(dir, "renewals.db")
	t.Setenv("RENEWALS_STORE_DRIVER", "sqlite")
	t.Setenv("RENEWALS_STORE_SQLITE_PATH", dbPath)
	t.Setenv("RENEWALS_LOG_LEVEL", "error")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	renewalDate := today.AddDate(0, 0, 10)
	priorEff := renewalDate.AddDate(-1, 0, 0)
	premium := decimal.NewFromInt(1200)
	snap := model.NewAutoSnapshot(model.PolicyInfo{
		PolicyNumber:   "PA-100",
		CarrierName:    "Acme Mutual",
		InsuredName:    "Jane Doe",
		Premium:        &premium,
		EffectiveDate:  &priorEff,
		ExpirationDate: &renewalDate,
	}, nil, nil)
	data, err := json.Marshal([]*model.Snapshot{snap})
	require.NoError(t, err)
	archivePath := filepath.Join(dir, "archive.json")
	require.NoError(t, os.WriteFile(archivePath, data, 0644))

	csvPath := filepath.Join(dir, "policies.csv")
	csvData := "policy_number,carrier_name,line_of_business,expiration_date\n" +
		"PA-100,Acme Mutual,auto," + renewalDate.Format("2006-01-02") + "\n" +
		"PA-200,Beta Insurance,auto," + renewalDate.Format("2006-01-02") + "\n" +
		"PA-300,Beta Insurance,auto," + today.AddDate(1, 0, 0).Format("2006-01-02") + "\n"
	require.NoError(t, os.WriteFile(csvPath, []byte(csvData), 0644))

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.Execute(), "renewals %v", args)
		return out.String()
	}

	run("migrate")
	run("archive-import", "--file", archivePath, "--tenant", "tenant-1")

	var res ingest.Result
	require.NoError(t, json.Unmarshal([]byte(run("ingest", "--csv", csvPath, "--tenant", "tenant-1")), &res))
	assert.Equal(t, ingest.Result{Scanned: 2, Created: 2}, res)

	// Re-running is idempotent.
	require.NoError(t, json.Unmarshal([]byte(run("ingest", "--csv", csvPath, "--tenant", "tenant-1")), &res))
	assert.Equal(t, ingest.Result{Scanned: 2, Existing: 2}, res)

	outPath := filepath.Join(dir, "worklist.xlsx")
	run("export", "--out", outPath, "--tenant", "tenant-1")
	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	st, err := store.NewSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	records, err := st.ListRecords(context.Background(), store.RecordFilter{TenantID: "tenant-1"})
	require.NoError(t, err)
	require.Len(t, records, 2)
	byPolicy := map[string]model.Record{}
	for _, r := range records {
		byPolicy[r.PolicyNumber] = r
	}
	assert.Equal(t, model.StatusPending, byPolicy["PA-100"].Status)
	assert.Equal(t, model.BaselineFound, byPolicy["PA-100"].BaselineStatus)
	assert.Equal(t, model.StatusPendingManualRenewal, byPolicy["PA-200"].Status)
}
