package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based run journal.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trigger_kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		commit_hash TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts a finished run.
func (s *SQLiteStore) Record(ctx context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, trigger_kind, outcome, error, commit_hash, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Trigger, run.Outcome, run.Error, run.CommitHash,
		run.StartedAt.Unix(), run.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, trigger_kind, outcome, error, commit_hash, started_at, finished_at FROM runs ORDER BY started_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// LastSuccess returns the newest successful run, or nil when none exists.
func (s *SQLiteStore) LastSuccess(ctx context.Context) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, trigger_kind, outcome, error, commit_hash, started_at, finished_at FROM runs WHERE outcome = 'success' ORDER BY started_at DESC, id DESC LIMIT 1",
	)
	if err != nil {
		return nil, fmt.Errorf("query last success: %w", err)
	}
	defer rows.Close()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return &runs[0], nil
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var errMsg, commitHash sql.NullString
		var startedUnix, finishedUnix int64

		if err := rows.Scan(&r.ID, &r.Trigger, &r.Outcome, &errMsg, &commitHash, &startedUnix, &finishedUnix); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Error = errMsg.String
		r.CommitHash = commitHash.String
		r.StartedAt = time.Unix(startedUnix, 0)
		r.FinishedAt = time.Unix(finishedUnix, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
