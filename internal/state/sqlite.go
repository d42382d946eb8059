// Package state persists batch progress in SQLite so an interrupted run can
// be resumed without re-answering rows that already completed.
package state

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hugo-lorenzo-mato/verity-ai/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore implements core.CheckpointStore with SQLite storage.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
	mu     sync.Mutex
}

// NewSQLiteStore opens (or creates) the checkpoint database at dbPath and
// applies pending migrations. WAL mode keeps concurrent worker writes cheap.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, core.ErrState("CHECKPOINT_DIR_FAILED", fmt.Sprintf("creating state directory: %v", err))
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, core.ErrState("CHECKPOINT_OPEN_FAILED", fmt.Sprintf("opening database: %v", err))
	}

	s := &SQLiteStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration.
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return core.ErrState("CHECKPOINT_MIGRATE_FAILED", fmt.Sprintf("applying migration v1: %v", err))
		}
	}
	return nil
}

// BeginRun registers a run. Re-registering an existing run ID is a no-op so
// a resumed run keeps its recorded rows.
func (s *SQLiteStore) BeginRun(ctx context.Context, runID, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, started_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		runID, source, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return core.ErrState("CHECKPOINT_WRITE_FAILED", fmt.Sprintf("registering run: %v", err))
	}
	return nil
}

// RecordRow durably stores one completed row. Re-recording a row replaces
// the earlier checkpoint.
func (s *SQLiteStore) RecordRow(ctx context.Context, runID string, cp core.RowCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	linksJSON, err := json.Marshal(cp.Links)
	if err != nil {
		return core.ErrState("CHECKPOINT_WRITE_FAILED", fmt.Sprintf("encoding links: %v", err))
	}
	completed := cp.CompletedAt
	if completed.IsZero() {
		completed = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO row_checkpoints
		 (run_id, row_index, question, answer, links, status, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, cp.Row, cp.Question, cp.Answer, string(linksJSON),
		string(cp.Status), completed.Format(time.RFC3339))
	if err != nil {
		return core.ErrState("CHECKPOINT_WRITE_FAILED", fmt.Sprintf("recording row %d: %v", cp.Row, err))
	}
	return nil
}

// CompletedRows returns every checkpointed row of a run, keyed by row index.
func (s *SQLiteStore) CompletedRows(ctx context.Context, runID string) (map[int]core.RowCheckpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT row_index, question, answer, links, status, completed_at
		 FROM row_checkpoints WHERE run_id = ?`, runID)
	if err != nil {
		return nil, core.ErrState("CHECKPOINT_READ_FAILED", fmt.Sprintf("loading checkpoints: %v", err))
	}
	defer rows.Close()

	out := make(map[int]core.RowCheckpoint)
	for rows.Next() {
		var cp core.RowCheckpoint
		var linksJSON, status, completedAt string
		if err := rows.Scan(&cp.Row, &cp.Question, &cp.Answer, &linksJSON, &status, &completedAt); err != nil {
			return nil, core.ErrState("CHECKPOINT_READ_FAILED", fmt.Sprintf("scanning checkpoint: %v", err))
		}
		if err := json.Unmarshal([]byte(linksJSON), &cp.Links); err != nil {
			return nil, core.ErrState("CHECKPOINT_READ_FAILED", fmt.Sprintf("decoding links: %v", err))
		}
		cp.Status = core.ValidationStatus(status)
		if t, err := time.Parse(time.RFC3339, completedAt); err == nil {
			cp.CompletedAt = t
		}
		out[cp.Row] = cp
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrState("CHECKPOINT_READ_FAILED", fmt.Sprintf("iterating checkpoints: %v", err))
	}
	return out, nil
}

// FinishRun stamps the run's completion time and final tallies.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, processed, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, processed = ?, failed = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), processed, failed, runID)
	if err != nil {
		return core.ErrState("CHECKPOINT_WRITE_FAILED", fmt.Sprintf("finishing run: %v", err))
	}
	return nil
}

var _ core.CheckpointStore = (*SQLiteStore)(nil)

// NopStore discards all checkpoints; used when resume support is disabled.
type NopStore struct{}

func (NopStore) BeginRun(context.Context, string, string) error { return nil }
func (NopStore) RecordRow(context.Context, string, core.RowCheckpoint) error {
	return nil
}
func (NopStore) CompletedRows(context.Context, string) (map[int]core.RowCheckpoint, error) {
	return map[int]core.RowCheckpoint{}, nil
}
func (NopStore) FinishRun(context.Context, string, int, int) error { return nil }
func (NopStore) Close() error                                      { return nil }

var _ core.CheckpointStore = NopStore{}
