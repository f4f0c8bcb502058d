package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/sitetest/internal/models"
)

// RunStorage - interface for test run persistence
type RunStorage interface {
	SaveRun(ctx context.Context, run *models.TestRun) error
	GetRun(ctx context.Context, id string) (*models.TestRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.TestRun, error)
	CountRuns(ctx context.Context) (int, error)
	DeleteRun(ctx context.Context, id string) error

	// MarkStaleRunning fails runs stuck in running longer than maxAge.
	// Returns the number of runs updated.
	MarkStaleRunning(ctx context.Context, maxAge time.Duration) (int, error)
}

// ActionLogStorage - interface for the append-only action log
type ActionLogStorage interface {
	AppendEntry(ctx context.Context, entry *models.ActionLogEntry) error
	ListEntries(ctx context.Context, testID string) ([]*models.ActionLogEntry, error)
	CountEntries(ctx context.Context, testID string) (int, error)
}

// ReportStorage - interface for generated report persistence
type ReportStorage interface {
	SaveReport(ctx context.Context, report *models.Report) error
	GetLatestReport(ctx context.Context, testID string) (*models.Report, error)
	AttachSummary(ctx context.Context, testID string, summary string) error
}

// ScreenshotStorage - interface for binary screenshot artifacts
type ScreenshotStorage interface {
	SaveScreenshot(shot *models.Screenshot) error
	GetScreenshots(testID string) ([]*models.Screenshot, error)
	DeleteScreenshots(testID string) error
}

// StorageManager provides access to all storage interfaces
type StorageManager interface {
	Runs() RunStorage
	ActionLog() ActionLogStorage
	Reports() ReportStorage
	Screenshots() ScreenshotStorage
	Close() error
}
