package history

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS node_history (
	run_id      TEXT NOT NULL,
	node_id     TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	status      TEXT NOT NULL,
	attempts    INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	result      BLOB,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	PRIMARY KEY (run_id, node_id)
);
CREATE INDEX IF NOT EXISTS idx_node_history_run ON node_history(run_id, sequence);
CREATE TABLE IF NOT EXISTS run_history (
	run_id      TEXT PRIMARY KEY,
	graph_name  TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	completed   INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	unreached   INTEGER NOT NULL,
	snapshot    BLOB
);
`

// SQLiteStore persists history to SQLite.
// It is suitable for single-process use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a history database.
// path is a file path or ":memory:".
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: each ":memory:" connection would be its own database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// RecordNode implements Store.
func (s *SQLiteStore) RecordNode(rec NodeRecord) error {
	if err := validateNode(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO node_history
			(run_id, node_id, sequence, status, attempts, error, result, started_at, finished_at)
		VALUES (
			?, ?,
			COALESCE((SELECT MAX(sequence) FROM node_history WHERE run_id = ?), 0) + 1,
			?, ?, ?, ?, ?, ?
		)
		ON CONFLICT(run_id, node_id) DO UPDATE SET
			sequence = (SELECT MAX(sequence) FROM node_history WHERE run_id = excluded.run_id) + 1,
			status = excluded.status,
			attempts = excluded.attempts,
			error = excluded.error,
			result = excluded.result,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
	`, rec.RunID, rec.NodeID, rec.RunID,
		rec.Status, rec.Attempts, rec.Error, rec.Result,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt))
	if err != nil {
		return fmt.Errorf("record node: %w", err)
	}
	return nil
}

// RecordRun implements Store.
func (s *SQLiteStore) RecordRun(rec RunRecord) error {
	if err := validateRun(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO run_history
			(run_id, graph_name, started_at, finished_at, completed, failed, skipped, unreached, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			graph_name = excluded.graph_name,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			completed = excluded.completed,
			failed = excluded.failed,
			skipped = excluded.skipped,
			unreached = excluded.unreached,
			snapshot = excluded.snapshot
	`, rec.RunID, rec.GraphName, formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
		rec.Completed, rec.Failed, rec.Skipped, rec.Unreached, rec.Snapshot)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Nodes implements Store.
func (s *SQLiteStore) Nodes(runID string) ([]NodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT node_id, sequence, status, attempts, error, result, started_at, finished_at
		FROM node_history
		WHERE run_id = ?
		ORDER BY sequence
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	out := []NodeRecord{}
	for rows.Next() {
		rec := NodeRecord{RunID: runID}
		var started, finished string
		if err := rows.Scan(&rec.NodeID, &rec.Sequence, &rec.Status, &rec.Attempts,
			&rec.Error, &rec.Result, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan node record: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("node %s: %w", rec.NodeID, err)
		}
		if rec.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("node %s: %w", rec.NodeID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node records: %w", err)
	}
	return out, nil
}

// Run implements Store.
func (s *SQLiteStore) Run(runID string) (RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return RunRecord{}, ErrStoreClosed
	}

	row := s.db.QueryRow(`
		SELECT run_id, graph_name, started_at, finished_at, completed, failed, skipped, unreached, snapshot
		FROM run_history
		WHERE run_id = ?
	`, runID)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, ErrNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("load run: %w", err)
	}
	return rec, nil
}

// Runs implements Store.
func (s *SQLiteStore) Runs() ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT run_id, graph_name, started_at, finished_at, completed, failed, skipped, unreached, snapshot
		FROM run_history
		ORDER BY started_at, run_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run records: %w", err)
	}
	return out, nil
}

// DeleteRun implements Store.
func (s *SQLiteStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM node_history WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete node records: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM run_history WHERE run_id = ?`, runID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete run record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var started, finished string
	err := row.Scan(&rec.RunID, &rec.GraphName, &started, &finished,
		&rec.Completed, &rec.Failed, &rec.Skipped, &rec.Unreached, &rec.Snapshot)
	if err != nil {
		return RunRecord{}, err
	}
	if rec.StartedAt, err = parseTime(started); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: %w", rec.RunID, err)
	}
	if rec.FinishedAt, err = parseTime(finished); err != nil {
		return RunRecord{}, fmt.Errorf("run %s: %w", rec.RunID, err)
	}
	return rec, nil
}

// Timestamps are stored as fixed-width UTC strings so that text ordering
// matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad timestamp %q", ErrInvalidRecord, s)
	}
	return t, nil
}

var _ Store = (*SQLiteStore)(nil)
