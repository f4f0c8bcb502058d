package badger

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/models"
)

func newTestStore(t *testing.T) *ScreenshotStorage {
	t.Helper()
	db, err := NewBadgerDB(common.GetLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "screenshots"),
	})
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewScreenshotStorage(db, common.GetLogger()).(*ScreenshotStorage)
}

func TestScreenshotStorage_SaveAndGetInCaptureOrder(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	positions := []string{"top", "middle", "bottom"}
	for i, pos := range positions {
		err := store.SaveScreenshot(&models.Screenshot{
			TestID:     "test_abc",
			Position:   pos,
			Data:       []byte{0x89, 0x50, 0x4E, 0x47, byte(i)},
			CapturedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("SaveScreenshot(%s) failed: %v", pos, err)
		}
	}

	shots, err := store.GetScreenshots("test_abc")
	if err != nil {
		t.Fatalf("GetScreenshots failed: %v", err)
	}
	if len(shots) != 3 {
		t.Fatalf("got %d screenshots, want 3", len(shots))
	}
	for i, pos := range positions {
		if shots[i].Position != pos {
			t.Errorf("shots[%d].Position = %s, want %s", i, shots[i].Position, pos)
		}
	}
	if !bytes.Equal(shots[1].Data, []byte{0x89, 0x50, 0x4E, 0x47, 1}) {
		t.Error("screenshot data did not round-trip")
	}
}

func TestScreenshotStorage_RecaptureOverwritesPosition(t *testing.T) {
	store := newTestStore(t)

	first := &models.Screenshot{TestID: "test_abc", Position: "top", Data: []byte{1}, CapturedAt: time.Now()}
	if err := store.SaveScreenshot(first); err != nil {
		t.Fatalf("SaveScreenshot failed: %v", err)
	}
	second := &models.Screenshot{TestID: "test_abc", Position: "top", Data: []byte{2}, CapturedAt: time.Now().Add(time.Second)}
	if err := store.SaveScreenshot(second); err != nil {
		t.Fatalf("SaveScreenshot failed: %v", err)
	}

	shots, err := store.GetScreenshots("test_abc")
	if err != nil {
		t.Fatalf("GetScreenshots failed: %v", err)
	}
	if len(shots) != 1 {
		t.Fatalf("got %d screenshots, want 1 after overwrite", len(shots))
	}
	if !bytes.Equal(shots[0].Data, []byte{2}) {
		t.Error("re-capture should replace the stored data")
	}
}

func TestScreenshotStorage_ValidatesRequiredFields(t *testing.T) {
	store := newTestStore(t)

	if err := store.SaveScreenshot(&models.Screenshot{Position: "top", Data: []byte{1}}); err == nil {
		t.Error("expected error for missing test ID")
	}
	if err := store.SaveScreenshot(&models.Screenshot{TestID: "test_abc", Data: []byte{1}}); err == nil {
		t.Error("expected error for missing position")
	}
}

func TestScreenshotStorage_DeleteScopedToRun(t *testing.T) {
	store := newTestStore(t)

	for _, testID := range []string{"test_a", "test_b"} {
		err := store.SaveScreenshot(&models.Screenshot{
			TestID: testID, Position: "top", Data: []byte{1}, CapturedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("SaveScreenshot failed: %v", err)
		}
	}

	if err := store.DeleteScreenshots("test_a"); err != nil {
		t.Fatalf("DeleteScreenshots failed: %v", err)
	}

	shots, err := store.GetScreenshots("test_a")
	if err != nil {
		t.Fatalf("GetScreenshots failed: %v", err)
	}
	if len(shots) != 0 {
		t.Errorf("test_a still has %d screenshots after delete", len(shots))
	}

	shots, err = store.GetScreenshots("test_b")
	if err != nil {
		t.Fatalf("GetScreenshots failed: %v", err)
	}
	if len(shots) != 1 {
		t.Errorf("test_b screenshots affected by unrelated delete, got %d", len(shots))
	}
}
