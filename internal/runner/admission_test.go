package runner

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/sitetest/internal/common"
)

// launchRecorder captures queue launches in order
type launchRecorder struct {
	mu       sync.Mutex
	launched []string
	rejected []string
	failFor  map[string]bool
	notify   chan string
}

func newLaunchRecorder() *launchRecorder {
	return &launchRecorder{
		failFor: make(map[string]bool),
		notify:  make(chan string, 16),
	}
}

func (r *launchRecorder) launch(testID string) error {
	r.mu.Lock()
	fail := r.failFor[testID]
	if !fail {
		r.launched = append(r.launched, testID)
	}
	r.mu.Unlock()
	if fail {
		return fmt.Errorf("launch refused for %s", testID)
	}
	r.notify <- testID
	return nil
}

func (r *launchRecorder) reject(testID string, err error) {
	r.mu.Lock()
	r.rejected = append(r.rejected, testID)
	r.mu.Unlock()
	r.notify <- "rejected:" + testID
}

func (r *launchRecorder) wait(t *testing.T) string {
	t.Helper()
	select {
	case id := <-r.notify:
		return id
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for queue activity")
		return ""
	}
}

func TestAdmissionQueue_ImmediateStartUnderLimit(t *testing.T) {
	rec := newLaunchRecorder()
	q := NewAdmissionQueue(1, 0, rec.launch, rec.reject, common.GetLogger())

	started, position, err := q.Submit("test_a")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !started || position != 0 {
		t.Fatalf("Submit = (%v, %d), want (true, 0)", started, position)
	}
	if got := rec.wait(t); got != "test_a" {
		t.Fatalf("launched %s, want test_a", got)
	}
	if q.ActiveCount() != 1 {
		t.Errorf("active = %d, want 1", q.ActiveCount())
	}
}

func TestAdmissionQueue_QueuesBeyondLimitWithPositions(t *testing.T) {
	rec := newLaunchRecorder()
	q := NewAdmissionQueue(1, 0, rec.launch, rec.reject, common.GetLogger())

	q.Submit("test_a")
	rec.wait(t)

	started, pos, _ := q.Submit("test_b")
	if started || pos != 1 {
		t.Errorf("Submit(test_b) = (%v, %d), want (false, 1)", started, pos)
	}
	started, pos, _ = q.Submit("test_c")
	if started || pos != 2 {
		t.Errorf("Submit(test_c) = (%v, %d), want (false, 2)", started, pos)
	}

	if q.Position("test_b") != 1 || q.Position("test_c") != 2 {
		t.Errorf("positions = %d, %d, want 1, 2", q.Position("test_b"), q.Position("test_c"))
	}
	if q.Position("test_a") != 0 {
		t.Errorf("active run should have no queue position")
	}
}

func TestAdmissionQueue_DrainsInFIFOOrder(t *testing.T) {
	rec := newLaunchRecorder()
	q := NewAdmissionQueue(1, 0, rec.launch, rec.reject, common.GetLogger())

	q.Submit("test_a")
	rec.wait(t)
	q.Submit("test_b")
	q.Submit("test_c")

	q.OnRunFinished("test_a")
	if got := rec.wait(t); got != "test_b" {
		t.Fatalf("first drained run = %s, want test_b", got)
	}

	q.OnRunFinished("test_b")
	if got := rec.wait(t); got != "test_c" {
		t.Fatalf("second drained run = %s, want test_c", got)
	}
}

func TestAdmissionQueue_ImmediateLaunchFailureIsReturned(t *testing.T) {
	rec := newLaunchRecorder()
	rec.failFor["test_a"] = true
	q := NewAdmissionQueue(1, 0, rec.launch, rec.reject, common.GetLogger())

	started, _, err := q.Submit("test_a")
	if started {
		t.Error("a failed launch must not report the run as started")
	}
	if err == nil {
		t.Fatal("Submit should surface the launch error")
	}
	if got := rec.wait(t); got != "rejected:test_a" {
		t.Fatalf("expected test_a rejection, got %s", got)
	}
	// The slot is released, so the next run starts immediately.
	started, _, err = q.Submit("test_b")
	if err != nil || !started {
		t.Fatalf("Submit(test_b) = (%v, %v), want immediate start", started, err)
	}
	if got := rec.wait(t); got != "test_b" {
		t.Fatalf("launched %s, want test_b", got)
	}
}

func TestAdmissionQueue_LaunchFailureDoesNotWedgeQueue(t *testing.T) {
	rec := newLaunchRecorder()
	rec.failFor["test_b"] = true
	q := NewAdmissionQueue(1, 0, rec.launch, rec.reject, common.GetLogger())

	q.Submit("test_a")
	rec.wait(t)
	q.Submit("test_b")
	q.Submit("test_c")

	q.OnRunFinished("test_a")
	if got := rec.wait(t); got != "rejected:test_b" {
		t.Fatalf("expected test_b rejection, got %s", got)
	}
	// The drain must move on to test_c after rejecting test_b.
	if got := rec.wait(t); got != "test_c" {
		t.Fatalf("expected test_c launch after rejection, got %s", got)
	}
}

func TestAdmissionQueue_Withdraw(t *testing.T) {
	rec := newLaunchRecorder()
	q := NewAdmissionQueue(1, 0, rec.launch, rec.reject, common.GetLogger())

	q.Submit("test_a")
	rec.wait(t)
	q.Submit("test_b")

	if !q.Withdraw("test_b") {
		t.Fatal("Withdraw should succeed for a waiting run")
	}
	if q.Withdraw("test_b") {
		t.Fatal("Withdraw should fail once the run is gone")
	}
	if q.PendingCount() != 0 {
		t.Errorf("pending = %d, want 0", q.PendingCount())
	}
}
