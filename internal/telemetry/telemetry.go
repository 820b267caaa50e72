// Package telemetry records per-run indexing statistics in a small SQLite
// database under the workspace state directory. Recording is best effort:
// a telemetry failure never fails an indexing run.
package telemetry

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"costscope/internal/slogutil"
)

// RunRecord is one indexing run's outcome.
type RunRecord struct {
	ID              string
	StartedAt       time.Time
	DurationMs      int64
	Mode            string
	FilesScanned    int
	FilesChanged    int
	FilesRemoved    int
	UnitsIndexed    int
	ChunksIssued    int
	ErrorsContained int
}

// Store is the run-history database.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	mode TEXT NOT NULL,
	files_scanned INTEGER NOT NULL,
	files_changed INTEGER NOT NULL,
	files_removed INTEGER NOT NULL,
	units_indexed INTEGER NOT NULL,
	chunks_issued INTEGER NOT NULL,
	errors_contained INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Open opens or creates the run-history database in dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, "runs.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open run database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize run schema: %w", err)
	}

	return &Store{conn: conn, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// RecordRun persists one run. Assigns an id if the record has none.
func (s *Store) RecordRun(r RunRecord) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.conn.Exec(`
		INSERT INTO runs (
			id, started_at, duration_ms, mode,
			files_scanned, files_changed, files_removed,
			units_indexed, chunks_issued, errors_contained
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt.UTC().Format(time.RFC3339), r.DurationMs, r.Mode,
		r.FilesScanned, r.FilesChanged, r.FilesRemoved,
		r.UnitsIndexed, r.ChunksIssued, r.ErrorsContained)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.conn.Query(`
		SELECT id, started_at, duration_ms, mode,
			files_scanned, files_changed, files_removed,
			units_indexed, chunks_issued, errors_contained
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started string
		if err := rows.Scan(&r.ID, &started, &r.DurationMs, &r.Mode,
			&r.FilesScanned, &r.FilesChanged, &r.FilesRemoved,
			&r.UnitsIndexed, &r.ChunksIssued, &r.ErrorsContained); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, started); perr == nil {
			r.StartedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
