// Package transcript provides a persistent record of MCP tool
// invocations. Records are append-only and indexed by timestamp and
// server for later inspection and aggregation.
package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Record represents a single tool invocation.
type Record struct {
	ID        string
	Timestamp time.Time
	Server    string
	Tool      string
	Arguments string // JSON text as sent to the server
	Result    string // flattened result text
	IsError   bool
	Duration  time.Duration
}

// Summary holds aggregated invocation counts for one tool.
type Summary struct {
	Calls  int
	Errors int
}

// Store is an append-only SQLite store for tool invocation records. All
// public methods are safe for concurrent use (SQLite serializes writes).
type Store struct {
	db *sql.DB
}

// NewStore creates a transcript store at the given database path. The
// schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open transcript database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate transcript schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invocations (
		id          TEXT PRIMARY KEY,
		timestamp   TEXT NOT NULL,
		server      TEXT NOT NULL,
		tool        TEXT NOT NULL,
		arguments   TEXT,
		result      TEXT,
		is_error    INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invocations_timestamp ON invocations(timestamp);
	CREATE INDEX IF NOT EXISTS idx_invocations_server ON invocations(server);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record persists an invocation record. If rec.ID is empty, a UUIDv7 is
// generated. The context is used for cancellation only.
func (s *Store) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate transcript record ID: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations
			(id, timestamp, server, tool, arguments, result, is_error, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.Server,
		rec.Tool,
		rec.Arguments,
		rec.Result,
		rec.IsError,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert transcript record: %w", err)
	}
	return nil
}

// Recent returns the most recent records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, timestamp, server, tool, arguments, result, is_error, duration_ms
		 FROM invocations
		 ORDER BY timestamp DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent invocations: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var ts string
		var durMS int64
		if err := rows.Scan(&rec.ID, &ts, &rec.Server, &rec.Tool, &rec.Arguments, &rec.Result, &rec.IsError, &durMS); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("parse invocation timestamp: %w", err)
		}
		rec.Timestamp = t
		rec.Duration = time.Duration(durMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SummaryByTool returns per-tool call and error counts for records
// within [start, end).
func (s *Store) SummaryByTool(ctx context.Context, start, end time.Time) (map[string]*Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool, COUNT(*), COALESCE(SUM(is_error), 0)
		 FROM invocations
		 WHERE timestamp >= ? AND timestamp < ?
		 GROUP BY tool
		 ORDER BY COUNT(*) DESC`,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("query invocation summary: %w", err)
	}
	defer rows.Close()

	result := make(map[string]*Summary)
	for rows.Next() {
		var tool string
		var sum Summary
		if err := rows.Scan(&tool, &sum.Calls, &sum.Errors); err != nil {
			return nil, fmt.Errorf("scan invocation summary: %w", err)
		}
		result[tool] = &sum
	}
	return result, rows.Err()
}
