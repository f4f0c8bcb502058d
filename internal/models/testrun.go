package models

import (
	"time"
)

// TestStatus represents the lifecycle state of a test run
type TestStatus string

const (
	TestStatusPending   TestStatus = "pending"
	TestStatusQueued    TestStatus = "queued"
	TestStatusRunning   TestStatus = "running"
	TestStatusCompleted TestStatus = "completed"
	TestStatusFailed    TestStatus = "failed"
	TestStatusStopped   TestStatus = "stopped"
)

// Terminal reports whether the status is final. Terminal runs never
// transition again.
func (s TestStatus) Terminal() bool {
	switch s {
	case TestStatusCompleted, TestStatusFailed, TestStatusStopped:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor state.
// Legal paths: pending -> queued -> running -> {completed, failed, stopped},
// with queued optional and failure possible from any non-terminal state.
func (s TestStatus) CanTransitionTo(next TestStatus) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case TestStatusPending:
		return next == TestStatusQueued || next == TestStatusRunning ||
			next == TestStatusFailed || next == TestStatusStopped
	case TestStatusQueued:
		return next == TestStatusRunning || next == TestStatusFailed || next == TestStatusStopped
	case TestStatusRunning:
		return next.Terminal()
	}
	return false
}

// TestRun represents one end-to-end test execution against a target URL.
// The remote session ID is set at most once and never changes after
// assignment.
type TestRun struct {
	ID           string     `json:"testId"`
	URL          string     `json:"url"`
	Status       TestStatus `json:"status"`
	SessionID    string     `json:"sessionId,omitempty"`
	RecordingURL string     `json:"recordingUrl,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// ActionLogEntry is one decision+execution step within a run. Entries are
// append-only and read back in timestamp order to reconstruct behavior.
type ActionLogEntry struct {
	ID        int64      `json:"id"`
	TestID    string     `json:"testId"`
	Timestamp time.Time  `json:"timestamp"`
	Action    ActionKind `json:"action"`
	Target    string     `json:"target,omitempty"`
	Value     string     `json:"value,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	PageURL   string     `json:"pageUrl,omitempty"`
	PageTitle string     `json:"pageTitle,omitempty"`
}

// Screenshot position tags
const (
	ScreenshotTop    = "top"
	ScreenshotMiddle = "middle"
	ScreenshotBottom = "bottom"
)

// Screenshot is a binary page capture written during a run and read back
// only by the narrative-summary step.
type Screenshot struct {
	TestID     string    `badgerhold:"index"`
	Position   string    // top, middle or bottom
	Data       []byte
	CapturedAt time.Time
}
