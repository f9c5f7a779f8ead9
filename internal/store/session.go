// Package store persists per-run session state in SQLite: which runs have
// completed, failed or been served from cache, plus lifetime counters of
// encode time saved by cache hits. The metrics records themselves live as
// JSON files next to each run's output; this database only tracks session
// progress so interrupted sessions resume cleanly.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Run status values.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	error TEXT DEFAULT '',
	encode_secs REAL DEFAULT 0,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS counters (
	key TEXT PRIMARY KEY,
	value REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

const (
	counterEncodeSeconds = "encode_seconds"
	counterSavedSeconds  = "saved_seconds"
)

// Counters summarizes a session store.
type Counters struct {
	Complete int
	Failed   int
	Skipped  int
	// EncodeSeconds is the total wall time spent encoding.
	EncodeSeconds float64
	// SavedSeconds is the encode time avoided by cache hits.
	SavedSeconds float64
}

// Store is a SQLite-backed session store.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the session database at dbPath.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// ResetRunning moves runs left in the running state by an interrupted
// session back to pending.
func (s *Store) ResetRunning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		"UPDATE runs SET status = ?, updated_at = ? WHERE status = ?",
		StatusPending, now(), StatusRunning)
	if err != nil {
		return fmt.Errorf("reset running runs: %w", err)
	}
	return nil
}

func (s *Store) setStatus(id, status, errMsg string, encodeSecs float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO runs (id, status, error, encode_secs, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			error = excluded.error,
			encode_secs = excluded.encode_secs,
			updated_at = excluded.updated_at`,
		id, status, errMsg, encodeSecs, now())
	if err != nil {
		return fmt.Errorf("update run %s: %w", id, err)
	}
	return nil
}

func (s *Store) addCounter(key string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT INTO counters (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`,
		key, delta)
	if err != nil {
		return fmt.Errorf("update counter %s: %w", key, err)
	}
	return nil
}

// MarkRunning records that a run's encode has started.
func (s *Store) MarkRunning(id string) error {
	return s.setStatus(id, StatusRunning, "", 0)
}

// MarkComplete records a finished encode and its wall time.
func (s *Store) MarkComplete(id string, encodeSecs float64) error {
	if err := s.setStatus(id, StatusComplete, "", encodeSecs); err != nil {
		return err
	}
	return s.addCounter(counterEncodeSeconds, encodeSecs)
}

// MarkFailed records a failed run with its error message.
func (s *Store) MarkFailed(id, errMsg string) error {
	return s.setStatus(id, StatusFailed, errMsg, 0)
}

// MarkSkipped records a cache hit and the encode time it saved.
func (s *Store) MarkSkipped(id string, savedSecs float64) error {
	if err := s.setStatus(id, StatusSkipped, "", 0); err != nil {
		return err
	}
	return s.addCounter(counterSavedSeconds, savedSecs)
}

// Status returns a run's recorded status, StatusPending when unknown.
func (s *Store) Status(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var status string
	err := s.db.QueryRow("SELECT status FROM runs WHERE id = ?", id).Scan(&status)
	if err == sql.ErrNoRows {
		return StatusPending, nil
	}
	if err != nil {
		return "", fmt.Errorf("query run %s: %w", id, err)
	}
	return status, nil
}

// Counters returns the session totals.
func (s *Store) Counters() (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c Counters

	rows, err := s.db.Query("SELECT status, COUNT(*) FROM runs GROUP BY status")
	if err != nil {
		return c, fmt.Errorf("count runs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return c, fmt.Errorf("scan run counts: %w", err)
		}
		switch status {
		case StatusComplete:
			c.Complete = count
		case StatusFailed:
			c.Failed = count
		case StatusSkipped:
			c.Skipped = count
		}
	}
	if err := rows.Err(); err != nil {
		return c, fmt.Errorf("scan run counts: %w", err)
	}

	for key, dst := range map[string]*float64{
		counterEncodeSeconds: &c.EncodeSeconds,
		counterSavedSeconds:  &c.SavedSeconds,
	} {
		err := s.db.QueryRow("SELECT value FROM counters WHERE key = ?", key).Scan(dst)
		if err != nil && err != sql.ErrNoRows {
			return c, fmt.Errorf("query counter %s: %w", key, err)
		}
	}
	return c, nil
}

// Clear drops all run rows, keeping lifetime counters.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("clear runs: %w", err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
