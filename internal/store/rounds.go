// Package store persists per-round refinement artifacts to a local
// sqlite database for audit and resume. The controller works without a
// store; everything here is optional plumbing.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"scribe/internal/logging"
	"scribe/internal/refine"
)

// RoundStore is a sqlite-backed sink for round artifacts.
type RoundStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewRoundStore opens (or creates) the database at path and ensures the
// schema exists.
func NewRoundStore(path string) (*RoundStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open round store: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS rounds (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL,
		round       INTEGER NOT NULL,
		integrated  REAL NOT NULL,
		accepted    INTEGER NOT NULL,
		axis_scores TEXT NOT NULL,
		tasks       TEXT NOT NULL,
		document    TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		UNIQUE(run_id, round)
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_run ON rounds(run_id);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("round store opened at %s", path)
	return &RoundStore{db: db}, nil
}

// SaveRound persists one round artifact. Implements refine.RoundSink.
func (s *RoundStore) SaveRound(runID string, r *refine.RoundResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	axisJSON, err := json.Marshal(r.AxisScores)
	if err != nil {
		return fmt.Errorf("failed to encode axis scores: %w", err)
	}
	tasksJSON, err := json.Marshal(r.Tasks)
	if err != nil {
		return fmt.Errorf("failed to encode tasks: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO rounds (run_id, round, integrated, accepted, axis_scores, tasks, document, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Round, r.Integrated, boolToInt(r.Accepted),
		string(axisJSON), string(tasksJSON), r.Document,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save round %d: %w", r.Round, err)
	}
	return nil
}

// LoadRounds returns all rounds of a run in round order.
func (s *RoundStore) LoadRounds(runID string) ([]*refine.RoundResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT round, integrated, accepted, axis_scores, tasks, document
		 FROM rounds WHERE run_id = ? ORDER BY round ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var out []*refine.RoundResult
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// BestRound returns the highest-scoring accepted round of a run, or nil
// when the run recorded nothing.
func (s *RoundStore) BestRound(runID string) (*refine.RoundResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT round, integrated, accepted, axis_scores, tasks, document
		 FROM rounds WHERE run_id = ? AND accepted = 1
		 ORDER BY integrated DESC, round DESC LIMIT 1`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query best round: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRound(rows)
}

// Runs lists the distinct run IDs present in the store, newest first.
func (s *RoundStore) Runs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT run_id FROM rounds GROUP BY run_id ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *RoundStore) Close() error {
	return s.db.Close()
}

func scanRound(rows *sql.Rows) (*refine.RoundResult, error) {
	var (
		r         refine.RoundResult
		accepted  int
		axisJSON  string
		tasksJSON string
	)
	if err := rows.Scan(&r.Round, &r.Integrated, &accepted, &axisJSON, &tasksJSON, &r.Document); err != nil {
		return nil, fmt.Errorf("failed to scan round: %w", err)
	}
	r.Accepted = accepted != 0

	if err := json.Unmarshal([]byte(axisJSON), &r.AxisScores); err != nil {
		return nil, fmt.Errorf("failed to decode axis scores: %w", err)
	}
	if err := json.Unmarshal([]byte(tasksJSON), &r.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
