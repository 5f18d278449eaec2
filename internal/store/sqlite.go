package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach-cli/internal/cost"
	"github.com/sells-group/outreach-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	config      TEXT NOT NULL,
	planned     INTEGER NOT NULL,
	completed   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	total_cost  INTEGER NOT NULL,
	warnings    TEXT
);

CREATE TABLE IF NOT EXISTS cost_entries (
	id            TEXT PRIMARY KEY,
	run_id        TEXT NOT NULL REFERENCES runs(id),
	provider      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	sheet_row     INTEGER NOT NULL,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	requests      INTEGER NOT NULL,
	cost          INTEGER NOT NULL,
	at            DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_cost_entries_run_id ON cost_entries(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes the run summary and its ledger entries in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, rec RunRecord, entries []cost.Entry) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal config")
	}
	warningsJSON, err := json.Marshal(rec.Warnings)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal warnings")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, config, planned, completed, failed, skipped, total_cost, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.FinishedAt.UTC(), string(configJSON),
		rec.Planned, rec.Completed, rec.Failed, rec.Skipped, int64(rec.TotalCost), string(warningsJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert run %s", rec.ID)
	}

	for _, e := range entries {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cost_entries (id, run_id, provider, kind, sheet_row, input_tokens, output_tokens, requests, cost, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), rec.ID, string(e.Provider), string(e.Kind), e.Row,
			e.InputTokens, e.OutputTokens, e.Requests, int64(e.Cost), e.At.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert cost entry for run %s", rec.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, config, planned, completed, failed, skipped, total_cost, warnings
		 FROM runs WHERE id = ?`, runID)
	rec, err := scanRun(row.Scan)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(err, "sqlite: run %s not found", runID)
		}
		return nil, err
	}
	return rec, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, config, planned, completed, failed, skipped, total_cost, warnings
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// RunEntries returns the ledger entries recorded for a run.
func (s *SQLiteStore) RunEntries(ctx context.Context, runID string) ([]cost.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT provider, kind, sheet_row, input_tokens, output_tokens, requests, cost, at
		 FROM cost_entries WHERE run_id = ? ORDER BY at`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: entries for run %s", runID)
	}
	defer rows.Close()

	var entries []cost.Entry
	for rows.Next() {
		var (
			e            cost.Entry
			provider     string
			kind         string
			costMicroUSD int64
			at           time.Time
		)
		if err := rows.Scan(&provider, &kind, &e.Row, &e.InputTokens, &e.OutputTokens, &e.Requests, &costMicroUSD, &at); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cost entry")
		}
		e.Provider = model.Provider(provider)
		e.Kind = model.TaskKind(kind)
		e.Cost = cost.MicroUSD(costMicroUSD)
		e.At = at
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: entries iterate")
}

func scanRun(scan func(dest ...any) error) (*RunRecord, error) {
	var (
		rec          RunRecord
		configJSON   string
		warningsJSON sql.NullString
		costMicroUSD int64
	)
	err := scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &configJSON,
		&rec.Planned, &rec.Completed, &rec.Failed, &rec.Skipped, &costMicroUSD, &warningsJSON)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	rec.TotalCost = cost.MicroUSD(costMicroUSD)
	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal config")
	}
	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &rec.Warnings); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal warnings")
		}
	}
	return &rec, nil
}
