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

// ActionLogStorage implements SQLite storage for the append-only action log
type ActionLogStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewActionLogStorage creates a new action log storage instance
func NewActionLogStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ActionLogStorage {
	return &ActionLogStorage{
		db:     db,
		logger: logger,
	}
}

// AppendEntry persists one log entry. Each write is an independent atomic
// unit so a crash mid-run leaves a partial, still-useful trail.
func (s *ActionLogStorage) AppendEntry(ctx context.Context, entry *models.ActionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.TestID == "" {
		return fmt.Errorf("action log entry requires a test ID")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	success := 0
	if entry.Success {
		success = 1
	}

	query := `
		INSERT INTO action_log (test_id, timestamp, action, target, value, reasoning, success, error, page_url, page_title)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.db.ExecContext(ctx, query,
		entry.TestID,
		entry.Timestamp.UnixMilli(),
		string(entry.Action),
		nullString(entry.Target),
		nullString(entry.Value),
		nullString(entry.Reasoning),
		success,
		nullString(entry.Error),
		nullString(entry.PageURL),
		nullString(entry.PageTitle),
	)
	if err != nil {
		return fmt.Errorf("failed to append action log entry: %w", err)
	}

	entry.ID, _ = result.LastInsertId()
	return nil
}

// ListEntries returns all entries for a run in timestamp order
func (s *ActionLogStorage) ListEntries(ctx context.Context, testID string) ([]*models.ActionLogEntry, error) {
	query := `
		SELECT id, test_id, timestamp, action, target, value, reasoning, success, error, page_url, page_title
		FROM action_log WHERE test_id = ? ORDER BY timestamp ASC, id ASC
	`
	rows, err := s.db.db.QueryContext(ctx, query, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list action log entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.ActionLogEntry
	for rows.Next() {
		var entry models.ActionLogEntry
		var timestamp int64
		var action string
		var success int
		var target, value, reasoning, errMsg, pageURL, pageTitle sql.NullString

		if err := rows.Scan(&entry.ID, &entry.TestID, &timestamp, &action, &target, &value,
			&reasoning, &success, &errMsg, &pageURL, &pageTitle); err != nil {
			return nil, fmt.Errorf("failed to scan action log entry: %w", err)
		}

		entry.Timestamp = time.UnixMilli(timestamp)
		entry.Action = models.ActionKind(action)
		entry.Target = target.String
		entry.Value = value.String
		entry.Reasoning = reasoning.String
		entry.Success = success == 1
		entry.Error = errMsg.String
		entry.PageURL = pageURL.String
		entry.PageTitle = pageTitle.String
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// CountEntries returns the number of entries for a run
func (s *ActionLogStorage) CountEntries(ctx context.Context, testID string) (int, error) {
	var count int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM action_log WHERE test_id = ?`, testID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count action log entries: %w", err)
	}
	return count, nil
}
