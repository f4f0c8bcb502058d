package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/models"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(common.GetLogger(), &common.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "sitetest.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunStorage_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	store := NewRunStorage(db, common.GetLogger())
	ctx := context.Background()

	started := time.Now().Truncate(time.Millisecond)
	run := &models.TestRun{
		ID:        "test_abc",
		URL:       "https://example.com",
		Status:    models.TestStatusRunning,
		SessionID: "sess_1",
		CreatedAt: started.Add(-time.Second),
		StartedAt: &started,
	}
	require.NoError(t, store.SaveRun(ctx, run))

	loaded, err := store.GetRun(ctx, "test_abc")
	require.NoError(t, err)
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.URL, loaded.URL)
	assert.Equal(t, models.TestStatusRunning, loaded.Status)
	assert.Equal(t, "sess_1", loaded.SessionID)
	require.NotNil(t, loaded.StartedAt)
	assert.True(t, loaded.StartedAt.Equal(started))
	assert.Nil(t, loaded.CompletedAt)
}

func TestRunStorage_GetMissingRun(t *testing.T) {
	db := newTestDB(t)
	store := NewRunStorage(db, common.GetLogger())

	_, err := store.GetRun(context.Background(), "test_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStorage_SessionIDIsWriteOnce(t *testing.T) {
	db := newTestDB(t)
	store := NewRunStorage(db, common.GetLogger())
	ctx := context.Background()

	run := &models.TestRun{
		ID:        "test_abc",
		URL:       "https://example.com",
		Status:    models.TestStatusRunning,
		SessionID: "sess_original",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.SaveRun(ctx, run))

	// A later save must not overwrite the assigned session.
	run.SessionID = "sess_other"
	run.Status = models.TestStatusCompleted
	require.NoError(t, store.SaveRun(ctx, run))

	loaded, err := store.GetRun(ctx, "test_abc")
	require.NoError(t, err)
	assert.Equal(t, "sess_original", loaded.SessionID)
	assert.Equal(t, models.TestStatusCompleted, loaded.Status)
}

func TestRunStorage_ListNewestFirst(t *testing.T) {
	db := newTestDB(t)
	store := NewRunStorage(db, common.GetLogger())
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"test_old", "test_mid", "test_new"} {
		require.NoError(t, store.SaveRun(ctx, &models.TestRun{
			ID:        id,
			URL:       "https://example.com",
			Status:    models.TestStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "test_new", runs[0].ID)
	assert.Equal(t, "test_mid", runs[1].ID)

	count, err := store.CountRuns(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestRunStorage_DeleteCascadesToLogAndReports(t *testing.T) {
	db := newTestDB(t)
	logger := common.GetLogger()
	runs := NewRunStorage(db, logger)
	log := NewActionLogStorage(db, logger)
	reports := NewReportStorage(db, logger)
	ctx := context.Background()

	require.NoError(t, runs.SaveRun(ctx, &models.TestRun{
		ID: "test_abc", URL: "https://example.com",
		Status: models.TestStatusCompleted, CreatedAt: time.Now(),
	}))
	require.NoError(t, log.AppendEntry(ctx, &models.ActionLogEntry{
		TestID: "test_abc", Timestamp: time.Now(),
		Action: models.ActionNavigate, Success: true,
	}))
	require.NoError(t, reports.SaveReport(ctx, &models.Report{
		TestID: "test_abc", CreatedAt: time.Now(),
	}))

	require.NoError(t, runs.DeleteRun(ctx, "test_abc"))

	count, err := log.CountEntries(ctx, "test_abc")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = reports.GetLatestReport(ctx, "test_abc")
	require.Error(t, err)
}

func TestRunStorage_DeleteMissingRun(t *testing.T) {
	db := newTestDB(t)
	store := NewRunStorage(db, common.GetLogger())

	err := store.DeleteRun(context.Background(), "test_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRunStorage_MarkStaleRunning(t *testing.T) {
	db := newTestDB(t)
	store := NewRunStorage(db, common.GetLogger())
	ctx := context.Background()

	staleStart := time.Now().Add(-time.Hour)
	freshStart := time.Now()

	require.NoError(t, store.SaveRun(ctx, &models.TestRun{
		ID: "test_stale", URL: "https://example.com",
		Status: models.TestStatusRunning, CreatedAt: staleStart, StartedAt: &staleStart,
	}))
	require.NoError(t, store.SaveRun(ctx, &models.TestRun{
		ID: "test_fresh", URL: "https://example.com",
		Status: models.TestStatusRunning, CreatedAt: freshStart, StartedAt: &freshStart,
	}))
	require.NoError(t, store.SaveRun(ctx, &models.TestRun{
		ID: "test_done", URL: "https://example.com",
		Status: models.TestStatusCompleted, CreatedAt: staleStart, StartedAt: &staleStart,
	}))

	count, err := store.MarkStaleRunning(ctx, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stale, err := store.GetRun(ctx, "test_stale")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusFailed, stale.Status)
	assert.NotEmpty(t, stale.Error)

	fresh, err := store.GetRun(ctx, "test_fresh")
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusRunning, fresh.Status)
}

func TestActionLogStorage_AppendAndListOrdered(t *testing.T) {
	db := newTestDB(t)
	logger := common.GetLogger()
	runs := NewRunStorage(db, logger)
	log := NewActionLogStorage(db, logger)
	ctx := context.Background()

	require.NoError(t, runs.SaveRun(ctx, &models.TestRun{
		ID: "test_abc", URL: "https://example.com",
		Status: models.TestStatusRunning, CreatedAt: time.Now(),
	}))

	base := time.Now().Truncate(time.Millisecond)
	actions := []models.ActionKind{models.ActionNavigate, models.ActionScreenshot, models.ActionScroll}
	for i, action := range actions {
		entry := &models.ActionLogEntry{
			TestID:    "test_abc",
			Timestamp: base.Add(time.Duration(i) * 100 * time.Millisecond),
			Action:    action,
			Success:   true,
			PageURL:   "https://example.com",
		}
		require.NoError(t, log.AppendEntry(ctx, entry))
		assert.NotZero(t, entry.ID, "append should assign the row id")
	}

	entries, err := log.ListEntries(ctx, "test_abc")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, action := range actions {
		assert.Equal(t, action, entries[i].Action)
	}
	assert.True(t, entries[0].Timestamp.Before(entries[2].Timestamp))
}

func TestReportStorage_LatestAndSummary(t *testing.T) {
	db := newTestDB(t)
	logger := common.GetLogger()
	runs := NewRunStorage(db, logger)
	reports := NewReportStorage(db, logger)
	ctx := context.Background()

	require.NoError(t, runs.SaveRun(ctx, &models.TestRun{
		ID: "test_abc", URL: "https://example.com",
		Status: models.TestStatusCompleted, CreatedAt: time.Now(),
	}))

	first := &models.Report{
		TestID:    "test_abc",
		Body:      models.ReportBody{TestID: "test_abc", URL: "https://example.com"},
		CreatedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, reports.SaveReport(ctx, first))

	second := &models.Report{
		TestID: "test_abc",
		Body: models.ReportBody{
			TestID:  "test_abc",
			URL:     "https://example.com",
			Summary: models.ReportSummary{ActionsPerformed: 5},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, reports.SaveReport(ctx, second))

	latest, err := reports.GetLatestReport(ctx, "test_abc")
	require.NoError(t, err)
	assert.Equal(t, 5, latest.Body.Summary.ActionsPerformed)

	require.NoError(t, reports.AttachSummary(ctx, "test_abc", "All good."))
	latest, err = reports.GetLatestReport(ctx, "test_abc")
	require.NoError(t, err)
	assert.Equal(t, "All good.", latest.Summary)

	require.Error(t, reports.AttachSummary(ctx, "test_missing", "nope"))
}
