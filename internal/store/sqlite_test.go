package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/reconciler"
	"golang-statement-reconciler/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	st, err := Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	return st
}

func balanceSheet(values map[string]interface{}) *models.Document {
	cells := make(map[string]models.ValueCell, len(values))
	for k, v := range values {
		cells[k] = models.NewValueCell(v)
	}
	return &models.Document{Sections: []*models.Section{{
		Label: "Current assets",
		Items: []*models.Item{{Label: "Cash", Values: cells}},
	}}}
}

func buildResult(t *testing.T, ticker string) *reconciler.AggregateResult {
	t.Helper()
	engine, err := reconciler.NewEngine(nil)
	require.NoError(t, err)

	result := engine.BuildAll(map[string]map[models.StatementType]*models.Document{
		"2024": {models.BalanceSheet: balanceSheet(map[string]interface{}{"2024": 10, "2023": 9})},
		"2023": {models.BalanceSheet: balanceSheet(map[string]interface{}{"2023": 9, "2022": 8})},
	})
	result.Ticker = ticker
	return result
}

func TestSQLite_SaveAndLoadRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	result := buildResult(t, "ACME")

	id, err := st.SaveRun(ctx, result)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Empty(t, result.RunID, "the caller's result is not modified")

	record, err := st.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, record.ID)
	assert.Equal(t, "ACME", record.Ticker)
	assert.Equal(t, 1, record.Entries)
	assert.Equal(t, []string{"2024", "2023", "2022"}, record.Periods)
	assert.WithinDuration(t, result.CreatedAt, record.CreatedAt, time.Millisecond)

	require.Len(t, record.Statements, 3)
	assert.Equal(t, models.IncomeStatement, record.Statements[0].StatementType)
	assert.Equal(t, []string{}, record.Statements[0].Periods)
	assert.Equal(t, models.BalanceSheet, record.Statements[1].StatementType)
	assert.Equal(t, 1, record.Statements[1].Entries)
	assert.Equal(t, models.CashFlowStatement, record.Statements[2].StatementType)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(record.Document, &doc))
	assert.Equal(t, id, doc["run_id"])
	assert.Equal(t, "ACME", doc["ticker"])
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := buildResult(t, "ACME")
	first.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	second := buildResult(t, "XYZ")
	second.CreatedAt = time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	third := buildResult(t, "ACME")
	third.CreatedAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for _, r := range []*reconciler.AggregateResult{first, second, third} {
		id, err := st.SaveRun(ctx, r)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	all, err := st.ListRuns(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[2].ID)

	acme, err := st.ListRuns(ctx, ListOptions{Ticker: "ACME"})
	require.NoError(t, err)
	assert.Len(t, acme, 2)

	limited, err := st.ListRuns(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "ACME", limited[0].Ticker)
}

func TestSQLite_LoadMissingRun(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.LoadRun(context.Background(), "does-not-exist")
	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeRunNotFound, rerr.Code)
	assert.Equal(t, errors.CategoryStorage, rerr.Category)
}

func TestSQLite_DeleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id, err := st.SaveRun(ctx, buildResult(t, "ACME"))
	require.NoError(t, err)

	require.NoError(t, st.DeleteRun(ctx, id))
	_, err = st.LoadRun(ctx, id)
	assert.Error(t, err)

	err = st.DeleteRun(ctx, id)
	rerr, ok := errors.AsReconcilerError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeRunNotFound, rerr.Code)
}

func TestSQLite_SaveNilRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.SaveRun(context.Background(), nil)
	assert.Error(t, err)
}

func TestSQLite_MigrateIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	st, err := Open(ctx, dbPath)
	require.NoError(t, err)
	id, err := st.SaveRun(ctx, buildResult(t, "ACME"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	require.NoError(t, st.Close())

	reopened, err := Open(ctx, dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.LoadRun(ctx, id)
	assert.NoError(t, err)
}

func TestSQLite_SatisfiesRunRecorder(t *testing.T) {
	var _ reconciler.RunRecorder = (*SQLiteStore)(nil)
}
