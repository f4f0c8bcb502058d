package badger

import (
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ScreenshotStorage implements the ScreenshotStorage interface for Badger.
// Binary captures stay out of the relational store; they are only read
// back by the narrative-summary step.
type ScreenshotStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewScreenshotStorage creates a new ScreenshotStorage instance
func NewScreenshotStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ScreenshotStorage {
	return &ScreenshotStorage{
		db:     db,
		logger: logger,
	}
}

// SaveScreenshot stores a capture keyed by run ID and position tag.
// Re-capturing the same position overwrites the previous shot.
func (s *ScreenshotStorage) SaveScreenshot(shot *models.Screenshot) error {
	if shot.TestID == "" {
		return fmt.Errorf("screenshot requires a test ID")
	}
	if shot.Position == "" {
		return fmt.Errorf("screenshot requires a position tag")
	}
	if shot.CapturedAt.IsZero() {
		shot.CapturedAt = time.Now()
	}

	key := shot.TestID + "/" + shot.Position
	if err := s.db.Store().Upsert(key, shot); err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}
	return nil
}

// GetScreenshots returns all captures for a run in capture order
func (s *ScreenshotStorage) GetScreenshots(testID string) ([]*models.Screenshot, error) {
	var shots []models.Screenshot
	if err := s.db.Store().Find(&shots, badgerhold.Where("TestID").Eq(testID)); err != nil {
		return nil, fmt.Errorf("failed to find screenshots: %w", err)
	}

	sort.Slice(shots, func(i, j int) bool {
		return shots[i].CapturedAt.Before(shots[j].CapturedAt)
	})

	result := make([]*models.Screenshot, len(shots))
	for i := range shots {
		result[i] = &shots[i]
	}
	return result, nil
}

// DeleteScreenshots removes all captures for a run
func (s *ScreenshotStorage) DeleteScreenshots(testID string) error {
	if err := s.db.Store().DeleteMatching(&models.Screenshot{}, badgerhold.Where("TestID").Eq(testID)); err != nil {
		return fmt.Errorf("failed to delete screenshots: %w", err)
	}
	return nil
}
