// Package ledger records ingestion runs and serializes them per namespace.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/casechat/casechat/internal/db"
)

// Store provides ledger operations backed by SQLite.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeFormat)
}

// AcquireLock claims namespace for runID. It returns ErrLocked if any run
// already holds it.
func (s *Store) AcquireLock(ctx context.Context, namespace, runID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_locks (namespace, run_id, acquired_at) VALUES (?, ?, ?)`,
		namespace, runID, s.timestamp())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "constraint") {
			return fmt.Errorf("%w: %s", ErrLocked, namespace)
		}
		return fmt.Errorf("acquiring lock: %w", err)
	}
	return nil
}

// ReleaseLock drops the lock if runID still holds it.
func (s *Store) ReleaseLock(ctx context.Context, namespace, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM ingest_locks WHERE namespace = ? AND run_id = ?`, namespace, runID)
	if err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return nil
}

// ForceUnlock removes any lock on namespace and marks its run failed.
// It is meant for recovering after a crashed run.
func (s *Store) ForceUnlock(ctx context.Context, namespace string) (bool, error) {
	lock, err := s.CurrentLock(ctx, namespace)
	if err != nil || lock == nil {
		return false, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ingest_locks WHERE namespace = ?`, namespace); err != nil {
		return false, fmt.Errorf("removing lock: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE ingest_runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ? AND status = ?`,
		StatusFailed, "lock forcibly released", s.timestamp(), lock.RunID, StatusRunning)
	if err != nil {
		return false, fmt.Errorf("marking run failed: %w", err)
	}
	return true, nil
}

// CurrentLock returns the lock on namespace, or nil if it is free.
func (s *Store) CurrentLock(ctx context.Context, namespace string) (*Lock, error) {
	var (
		l  Lock
		ts string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT namespace, run_id, acquired_at FROM ingest_locks WHERE namespace = ?`, namespace).
		Scan(&l.Namespace, &l.RunID, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}
	l.AcquiredAt, _ = time.Parse(timeFormat, ts)
	return &l, nil
}

// StartRun inserts a running record and returns it. An ID is generated.
func (s *Store) StartRun(ctx context.Context, namespace, corpusDir string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Namespace: namespace,
		CorpusDir: corpusDir,
		Status:    StatusRunning,
	}
	ts := s.timestamp()
	run.StartedAt, _ = time.Parse(timeFormat, ts)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, namespace, corpus_dir, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Namespace, run.CorpusDir, run.Status, ts)
	if err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return run, nil
}

// RecordFiles stores the files ingested by a run.
func (s *Store) RecordFiles(ctx context.Context, runID string, files []File) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO ingest_files (run_id, rel_path, content_hash, size, chunks)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, f := range files {
		if _, err := stmt.ExecContext(ctx, runID, f.RelPath, f.ContentHash, f.Size, f.Chunks); err != nil {
			return fmt.Errorf("inserting file %s: %w", f.RelPath, err)
		}
	}
	return tx.Commit()
}

// FinishRun marks a run succeeded, or failed when runErr is non-nil.
func (s *Store) FinishRun(ctx context.Context, runID string, files, chunks int, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE ingest_runs SET status = ?, files = ?, chunks = ?, error = ?, finished_at = ?
		WHERE id = ?`,
		status, files, chunks, msg, s.timestamp(), runID)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, namespace, corpus_dir, status, files, chunks, error, started_at, finished_at
		FROM ingest_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs for namespace, newest first.
func (s *Store) ListRuns(ctx context.Context, namespace string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, namespace, corpus_dir, status, files, chunks, error, started_at, finished_at
		FROM ingest_runs WHERE namespace = ?
		ORDER BY started_at DESC LIMIT ?`, namespace, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// RunFiles returns the files recorded for a run, by path.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rel_path, content_hash, size, chunks FROM ingest_files
		WHERE run_id = ? ORDER BY rel_path`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.RelPath, &f.ContentHash, &f.Size, &f.Chunks); err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r                   Run
		status              string
		started, finishedAt string
	)
	err := sc.Scan(&r.ID, &r.Namespace, &r.CorpusDir, &status, &r.Files, &r.Chunks, &r.Error, &started, &finishedAt)
	if err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	r.StartedAt, _ = time.Parse(timeFormat, started)
	if finishedAt != "" {
		if t, err := time.Parse(timeFormat, finishedAt); err == nil {
			r.FinishedAt = &t
		}
	}
	return &r, nil
}
