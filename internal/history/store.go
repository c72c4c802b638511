// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps an append-only SQLite log of relayed exchanges.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"
)

// Outcomes recorded for an exchange besides the envelope status.
const (
	OutcomeExitError    = "exit_error"
	OutcomeFramingError = "framing_error"
	OutcomeFailed       = "failed"
)

// Exchange is one relayed request and how it ended.
type Exchange struct {
	At          time.Time     `json:"at" yaml:"at"`
	Runner      string        `json:"runner" yaml:"runner"`
	RequestType string        `json:"request_type" yaml:"request_type"`
	ResponseID  string        `json:"response_id,omitempty" yaml:"response_id,omitempty"`
	Outcome     string        `json:"outcome" yaml:"outcome"`
	ExitCode    int           `json:"exit_code" yaml:"exit_code"`
	Duration    time.Duration `json:"duration_ns" yaml:"duration"`
	Error       string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Store manages the history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS exchanges (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			runner TEXT NOT NULL,
			request_type TEXT,
			response_id TEXT,
			outcome TEXT NOT NULL,
			exit_code INTEGER,
			duration_ms INTEGER,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_type ON exchanges(request_type)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_outcome ON exchanges(outcome)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one exchange. A nil store records nothing.
func (s *Store) Record(ctx context.Context, e Exchange) error {
	if s == nil {
		return nil
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exchanges (at, runner, request_type, response_id, outcome, exit_code, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Runner, e.RequestType, e.ResponseID,
		e.Outcome, e.ExitCode, e.Duration.Milliseconds(), e.Error,
	)
	if err != nil {
		return fmt.Errorf("recording exchange: %w", err)
	}
	return nil
}

// Filter narrows Recent.
type Filter struct {
	RequestType string
	Outcome     string
	Limit       int
}

// Recent returns the newest exchanges first.
func (s *Store) Recent(ctx context.Context, f Filter) ([]Exchange, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT at, runner, request_type, response_id, outcome, exit_code, duration_ms, error
		FROM exchanges WHERE 1=1`
	var args []any
	if f.RequestType != "" {
		query += ` AND request_type = ?`
		args = append(args, f.RequestType)
	}
	if f.Outcome != "" {
		query += ` AND outcome = ?`
		args = append(args, f.Outcome)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var (
			e          Exchange
			at         string
			durationMS int64
		)
		if err := rows.Scan(&at, &e.Runner, &e.RequestType, &e.ResponseID, &e.Outcome, &e.ExitCode, &durationMS, &e.Error); err != nil {
			return nil, fmt.Errorf("scanning exchange: %w", err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parsing timestamp %q: %w", at, err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of exchanges per outcome.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT outcome, count(*) FROM exchanges GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("counting exchanges: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			outcome string
			n       int
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// WriteYAML writes exchanges as a YAML sequence.
func WriteYAML(w io.Writer, exchanges []Exchange) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(exchanges); err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return enc.Close()
}
