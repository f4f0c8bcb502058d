package runner

import (
	"sync"
	"time"

	"github.com/ternarybob/sitetest/internal/models"
)

// ProgressEvent is pushed to subscribers (the dashboard websocket) as a
// run advances.
type ProgressEvent struct {
	TestID    string            `json:"testId"`
	Status    models.TestStatus `json:"status"`
	Message   string            `json:"message"`
	Timestamp time.Time         `json:"timestamp"`
}

// ProgressPublisher receives progress events for live consumers
type ProgressPublisher interface {
	PublishProgress(event ProgressEvent)
}

// runState is the in-memory mirror of one active run, kept for
// low-latency status polling. Discarded once the run leaves the active
// set; durable state lives in storage.
type runState struct {
	mu          sync.Mutex
	status      models.TestStatus
	progress    []string
	liveViewURL string
	stop        bool
}

// Tracker owns the in-memory mirrors for all active runs
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]*runState
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{
		runs: make(map[string]*runState),
	}
}

// Add registers a run in the active set
func (t *Tracker) Add(testID string, status models.TestStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[testID] = &runState{status: status}
}

// Remove discards the mirror once a run leaves the active set
func (t *Tracker) Remove(testID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, testID)
}

// Active reports whether the run is in the active set
func (t *Tracker) Active(testID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.runs[testID]
	return ok
}

func (t *Tracker) get(testID string) *runState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runs[testID]
}

// SetStatus updates the mirrored status
func (t *Tracker) SetStatus(testID string, status models.TestStatus) {
	if state := t.get(testID); state != nil {
		state.mu.Lock()
		state.status = status
		state.mu.Unlock()
	}
}

// Status returns the mirrored status, if the run is active
func (t *Tracker) Status(testID string) (models.TestStatus, bool) {
	state := t.get(testID)
	if state == nil {
		return "", false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.status, true
}

// AddProgress appends one progress message to the mirror
func (t *Tracker) AddProgress(testID, message string) {
	if state := t.get(testID); state != nil {
		state.mu.Lock()
		state.progress = append(state.progress, message)
		state.mu.Unlock()
	}
}

// Progress returns a copy of the mirrored progress messages
func (t *Tracker) Progress(testID string) []string {
	state := t.get(testID)
	if state == nil {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	progress := make([]string, len(state.progress))
	copy(progress, state.progress)
	return progress
}

// SetLiveViewURL records the provider's live debugger URL
func (t *Tracker) SetLiveViewURL(testID, url string) {
	if state := t.get(testID); state != nil {
		state.mu.Lock()
		state.liveViewURL = url
		state.mu.Unlock()
	}
}

// LiveViewURL returns the live debugger URL, if known
func (t *Tracker) LiveViewURL(testID string) string {
	state := t.get(testID)
	if state == nil {
		return ""
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.liveViewURL
}

// RequestStop marks the run for advisory cancellation. Returns false if
// the run is not active.
func (t *Tracker) RequestStop(testID string) bool {
	state := t.get(testID)
	if state == nil {
		return false
	}
	state.mu.Lock()
	state.stop = true
	state.mu.Unlock()
	return true
}

// StopRequested reports whether a stop has been requested. Polled by the
// execution job between steps.
func (t *Tracker) StopRequested(testID string) bool {
	state := t.get(testID)
	if state == nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.stop
}
