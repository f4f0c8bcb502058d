package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/models"
)

// ReportStorage implements SQLite storage for generated reports
type ReportStorage struct {
	db     *SQLiteDB
	logger arbor.ILogger
	mu     sync.Mutex
}

// NewReportStorage creates a new report storage instance
func NewReportStorage(db *SQLiteDB, logger arbor.ILogger) interfaces.ReportStorage {
	return &ReportStorage{
		db:     db,
		logger: logger,
	}
}

// SaveReport persists a report. The body is serialized to JSON; the store
// retains history and readers take the latest row.
func (s *ReportStorage) SaveReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if report.TestID == "" {
		return fmt.Errorf("report requires a test ID")
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}

	body, err := json.Marshal(report.Body)
	if err != nil {
		return fmt.Errorf("failed to serialize report body: %w", err)
	}

	query := `INSERT INTO reports (test_id, body, summary, created_at) VALUES (?, ?, ?, ?)`
	result, err := s.db.db.ExecContext(ctx, query,
		report.TestID,
		string(body),
		nullString(report.Summary),
		report.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	report.ID, _ = result.LastInsertId()
	return nil
}

// GetLatestReport returns the most recent report for a run
func (s *ReportStorage) GetLatestReport(ctx context.Context, testID string) (*models.Report, error) {
	query := `
		SELECT id, test_id, body, summary, created_at
		FROM reports WHERE test_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1
	`

	var report models.Report
	var body string
	var summary sql.NullString
	var createdAt int64

	err := s.db.db.QueryRowContext(ctx, query, testID).
		Scan(&report.ID, &report.TestID, &body, &summary, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report not found for test: %s", testID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &report.Body); err != nil {
		return nil, fmt.Errorf("failed to deserialize report body: %w", err)
	}
	report.Summary = summary.String
	report.CreatedAt = time.UnixMilli(createdAt)
	return &report, nil
}

// AttachSummary sets the narrative summary on the latest report for a run.
// Called asynchronously after run completion; never blocks it.
func (s *ReportStorage) AttachSummary(ctx context.Context, testID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE reports SET summary = ?
		WHERE id = (SELECT id FROM reports WHERE test_id = ? ORDER BY created_at DESC, id DESC LIMIT 1)
	`
	result, err := s.db.db.ExecContext(ctx, query, summary, testID)
	if err != nil {
		return fmt.Errorf("failed to attach summary: %w", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("report not found for test: %s", testID)
	}
	return nil
}
