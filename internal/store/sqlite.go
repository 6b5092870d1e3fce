// Package store keeps a history of reconciliation runs in SQLite so earlier
// merges can be listed and re-exported without re-reading the filings.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"golang-statement-reconciler/internal/models"
	"golang-statement-reconciler/internal/normalize"
	"golang-statement-reconciler/internal/reconciler"
	"golang-statement-reconciler/pkg/errors"
	"golang-statement-reconciler/pkg/logger"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// RunSummary describes one stored run
type RunSummary struct {
	ID          string    `json:"id" yaml:"id"`
	Ticker      string    `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	Entries     int       `json:"entries" yaml:"entries"`
	Corrections int       `json:"corrections" yaml:"corrections"`
	Flagged     int       `json:"flagged" yaml:"flagged"`
	Periods     []string  `json:"periods" yaml:"periods"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// StatementSummary describes one statement of a stored run
type StatementSummary struct {
	StatementType models.StatementType `json:"statement_type" yaml:"statement_type"`
	Entries       int                  `json:"entries" yaml:"entries"`
	Corrections   int                  `json:"corrections" yaml:"corrections"`
	Flagged       int                  `json:"flagged" yaml:"flagged"`
	Periods       []string             `json:"periods" yaml:"periods"`
	Error         string               `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunRecord is a stored run with its per-statement breakdown and the full
// result document as it was saved
type RunRecord struct {
	RunSummary `yaml:",inline"`
	Statements []StatementSummary `json:"statements" yaml:"statements"`
	Document   json.RawMessage    `json:"document" yaml:"-"`
}

// ListOptions filters ListRuns
type ListOptions struct {
	Ticker string
	Limit  int
}

// SQLiteStore persists runs using modernc.org/sqlite
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger logger.Logger
}

// Open opens the database at path, configures WAL mode and applies the schema
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.StorageError(errors.CodeStorageUnavailable, path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, errors.StorageError(errors.CodeStorageUnavailable, path, fmt.Errorf("exec %s: %w", pragma, err))
		}
	}

	s := &SQLiteStore{
		db:     db,
		path:   path,
		logger: logger.GetGlobalLogger().WithComponent("run_store"),
	}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	ticker      TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	entries     INTEGER NOT NULL DEFAULT 0,
	corrections INTEGER NOT NULL DEFAULT 0,
	flagged     INTEGER NOT NULL DEFAULT 0,
	periods     TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	document    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_statements (
	run_id         TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	statement_type TEXT NOT NULL,
	position       INTEGER NOT NULL,
	entries        INTEGER NOT NULL DEFAULT 0,
	corrections    INTEGER NOT NULL DEFAULT 0,
	flagged        INTEGER NOT NULL DEFAULT 0,
	periods        TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, statement_type)
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Migrate creates the schema if it does not exist
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return errors.StorageError(errors.CodeMigrationFailed, s.path, err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores result under a new run ID and returns the ID
func (s *SQLiteStore) SaveRun(ctx context.Context, result *reconciler.AggregateResult) (string, error) {
	if result == nil {
		return "", errors.ValidationError(errors.CodeMissingField, "result", nil, nil)
	}

	id := uuid.New().String()
	op := logger.NewOperationLogger("save_run", s.logger).
		WithField("run_id", id).
		WithField("ticker", result.Ticker)

	if err := s.insertRun(ctx, id, result, op); err != nil {
		op.Error(err, "Failed to store run")
		return "", err
	}
	op.Success("Run stored")
	return id, nil
}

func (s *SQLiteStore) insertRun(ctx context.Context, id string, result *reconciler.AggregateResult, op *logger.OperationLogger) error {
	createdAt := result.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	// The stored document carries its own ID so exports of a loaded run match.
	stored := *result
	stored.RunID = id
	document, err := json.Marshal(&stored)
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "encode run", err)
	}
	op.Step("encoded document", logger.Fields{"bytes": len(document)})

	summary := summarize(result)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StorageError(errors.CodeStorageUnavailable, s.path, err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, ticker, created_at, entries, corrections, flagged, periods, error, document)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Ticker, createdAt.UTC().Format(time.RFC3339Nano),
		summary.Entries, summary.Corrections, summary.Flagged,
		joinPeriods(summary.Periods), result.Error, string(document),
	)
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "insert run", err)
	}

	results := result.Results()
	for i, st := range results {
		ss := summarizeStatement(st)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_statements (run_id, statement_type, position, entries, corrections, flagged, periods, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, string(ss.StatementType), i, ss.Entries, ss.Corrections, ss.Flagged, joinPeriods(ss.Periods), ss.Error,
		)
		if err != nil {
			return errors.StorageError(errors.CodeQueryFailed, "insert run statement", err)
		}
	}
	op.Step("inserted statements", logger.Fields{"statements": len(results), "entries": summary.Entries})

	if err := tx.Commit(); err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "commit run", err)
	}
	return nil
}

// ListRuns returns stored runs, newest first
func (s *SQLiteStore) ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, error) {
	query := `SELECT id, ticker, created_at, entries, corrections, flagged, periods, error FROM runs`
	var args []interface{}
	if opts.Ticker != "" {
		query += ` WHERE ticker = ?`
		args = append(args, opts.Ticker)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "list runs", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *summary)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "list runs", err)
	}
	return out, nil
}

// LoadRun returns the stored run with the given ID
func (s *SQLiteStore) LoadRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, created_at, entries, corrections, flagged, periods, error, document FROM runs WHERE id = ?`,
		id,
	)

	var (
		record    RunRecord
		createdAt string
		periods   string
		document  string
	)
	err := row.Scan(&record.ID, &record.Ticker, &createdAt, &record.Entries, &record.Corrections,
		&record.Flagged, &periods, &record.Error, &document)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.StorageError(errors.CodeRunNotFound, id, nil)
	}
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "load run", err)
	}
	if record.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "parse run timestamp", err)
	}
	record.Periods = splitPeriods(periods)
	record.Document = json.RawMessage(document)

	rows, err := s.db.QueryContext(ctx,
		`SELECT statement_type, entries, corrections, flagged, periods, error
		 FROM run_statements WHERE run_id = ? ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "load run statements", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ss        StatementSummary
			statement string
			periods   string
		)
		if err := rows.Scan(&statement, &ss.Entries, &ss.Corrections, &ss.Flagged, &periods, &ss.Error); err != nil {
			return nil, errors.StorageError(errors.CodeQueryFailed, "scan run statement", err)
		}
		ss.StatementType = models.StatementType(statement)
		ss.Periods = splitPeriods(periods)
		record.Statements = append(record.Statements, ss)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "load run statements", err)
	}
	return &record, nil
}

// DeleteRun removes a stored run
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "delete run", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.StorageError(errors.CodeQueryFailed, "delete run", err)
	}
	if n == 0 {
		return errors.StorageError(errors.CodeRunNotFound, id, nil)
	}
	return nil
}

func scanSummary(rows *sql.Rows) (*RunSummary, error) {
	var (
		summary   RunSummary
		createdAt string
		periods   string
	)
	if err := rows.Scan(&summary.ID, &summary.Ticker, &createdAt, &summary.Entries,
		&summary.Corrections, &summary.Flagged, &periods, &summary.Error); err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "scan run", err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, errors.StorageError(errors.CodeQueryFailed, "parse run timestamp", err)
	}
	summary.CreatedAt = t
	summary.Periods = splitPeriods(periods)
	return &summary, nil
}

func summarize(result *reconciler.AggregateResult) RunSummary {
	summary := RunSummary{Ticker: result.Ticker, Error: result.Error}
	var periods []string
	seen := make(map[string]bool)
	for _, st := range result.Results() {
		ss := summarizeStatement(st)
		summary.Entries += ss.Entries
		summary.Corrections += ss.Corrections
		summary.Flagged += ss.Flagged
		for _, p := range ss.Periods {
			if !seen[p] {
				seen[p] = true
				periods = append(periods, p)
			}
		}
	}
	summary.Periods = normalize.SortPeriodsNewestFirst(periods)
	return summary
}

func summarizeStatement(st *reconciler.StatementResult) StatementSummary {
	ss := StatementSummary{
		StatementType: st.StatementType,
		Entries:       st.Catalog.Len(),
		Corrections:   len(st.Corrections),
		Periods:       st.Periods,
		Error:         st.Error,
	}
	if st.Stats != nil {
		ss.Flagged = st.Stats.Flagged
	}
	return ss
}

func joinPeriods(periods []string) string {
	return strings.Join(periods, ",")
}

func splitPeriods(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
