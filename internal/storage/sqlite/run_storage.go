package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/models"
)

// RunStorage implements SQLite storage for test runs
type RunStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewRunStorage creates a new run storage instance
func NewRunStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

// SaveRun creates or updates a run. The session ID and creation time are
// written once; later saves only move status, timestamps, recording URL
// and error forward.
func (s *RunStorage) SaveRun(ctx context.Context, run *models.TestRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("test run ID is required")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	var startedAt, completedAt sql.NullInt64
	if run.StartedAt != nil {
		startedAt = sql.NullInt64{Valid: true, Int64: run.StartedAt.UnixMilli()}
	}
	if run.CompletedAt != nil {
		completedAt = sql.NullInt64{Valid: true, Int64: run.CompletedAt.UnixMilli()}
	}

	query := `
		INSERT INTO test_runs (id, url, status, session_id, recording_url, error, created_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			session_id = COALESCE(NULLIF(test_runs.session_id, ''), excluded.session_id),
			recording_url = excluded.recording_url,
			error = excluded.error,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	_, err := s.db.db.ExecContext(ctx, query,
		run.ID,
		run.URL,
		string(run.Status),
		nullString(run.SessionID),
		nullString(run.RecordingURL),
		nullString(run.Error),
		run.CreatedAt.UnixMilli(),
		startedAt,
		completedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save test run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *RunStorage) GetRun(ctx context.Context, id string) (*models.TestRun, error) {
	query := `
		SELECT id, url, status, session_id, recording_url, error, created_at, started_at, completed_at
		FROM test_runs WHERE id = ?
	`
	run, err := scanRun(s.db.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("test run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *RunStorage) ListRuns(ctx context.Context, limit int) ([]*models.TestRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, url, status, session_id, recording_url, error, created_at, started_at, completed_at
		FROM test_runs ORDER BY created_at DESC LIMIT ?
	`
	rows, err := s.db.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list test runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*models.TestRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of runs
func (s *RunStorage) CountRuns(ctx context.Context) (int, error) {
	var count int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM test_runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count test runs: %w", err)
	}
	return count, nil
}

// DeleteRun removes a run. Action log and report rows cascade.
func (s *RunStorage) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.db.ExecContext(ctx, `DELETE FROM test_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete test run: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("test run not found: %s", id)
	}

	s.logger.Debug().Str("test_id", id).Msg("Test run deleted")
	return nil
}

// MarkStaleRunning fails runs stuck in running longer than maxAge.
// Recovers rows orphaned by a crashed process.
func (s *RunStorage) MarkStaleRunning(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge).UnixMilli()
	now := time.Now().UnixMilli()

	query := `
		UPDATE test_runs
		SET status = ?, error = ?, completed_at = ?
		WHERE status = ? AND started_at IS NOT NULL AND started_at < ?
	`
	result, err := s.db.db.ExecContext(ctx, query,
		string(models.TestStatusFailed),
		"run abandoned: exceeded maximum run age",
		now,
		string(models.TestStatusRunning),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale runs: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected > 0 {
		s.logger.Warn().Int64("count", affected).Msg("Marked stale running tests as failed")
	}
	return int(affected), nil
}

// rowScanner matches *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.TestRun, error) {
	var run models.TestRun
	var status string
	var sessionID, recordingURL, errMsg sql.NullString
	var createdAt int64
	var startedAt, completedAt sql.NullInt64

	if err := row.Scan(&run.ID, &run.URL, &status, &sessionID, &recordingURL, &errMsg,
		&createdAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	run.Status = models.TestStatus(status)
	run.SessionID = sessionID.String
	run.RecordingURL = recordingURL.String
	run.Error = errMsg.String
	run.CreatedAt = time.UnixMilli(createdAt)
	if startedAt.Valid {
		t := time.UnixMilli(startedAt.Int64)
		run.StartedAt = &t
	}
	if completedAt.Valid {
		t := time.UnixMilli(completedAt.Int64)
		run.CompletedAt = &t
	}
	return &run, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{Valid: true, String: s}
}
