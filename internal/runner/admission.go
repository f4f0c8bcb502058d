package runner

import (
	"sync"
	"time"

	"github.com/ternarybob/arbor"
)

// AdmissionQueue serializes run admission against a concurrency limit.
// Runs over the limit wait in FIFO order; as active runs finish, waiting
// runs are drained one at a time with a settle delay between launches so
// provider sessions are not opened back to back.
type AdmissionQueue struct {
	mu       sync.Mutex
	limit    int
	settle   time.Duration
	active   map[string]struct{}
	pending  []string
	draining bool

	launch func(testID string) error
	reject func(testID string, err error)
	logger arbor.ILogger
}

// NewAdmissionQueue creates an admission queue. launch must validate the
// run and hand it to an execution goroutine, returning quickly; reject is
// called when a launch fails so the run can be marked failed.
func NewAdmissionQueue(limit int, settle time.Duration, launch func(testID string) error, reject func(testID string, err error), logger arbor.ILogger) *AdmissionQueue {
	if limit < 1 {
		limit = 1
	}
	return &AdmissionQueue{
		limit:  limit,
		settle: settle,
		active: make(map[string]struct{}),
		launch: launch,
		reject: reject,
		logger: logger,
	}
}

// Submit admits the run immediately when capacity allows, otherwise
// appends it to the waiting list. Returns whether the run was started
// and, if queued, its 1-based position. A failed immediate launch is
// rejected and reported back to the caller, so a start request never
// claims a run is starting when it already failed.
func (q *AdmissionQueue) Submit(testID string) (started bool, position int, err error) {
	q.mu.Lock()
	if len(q.active) < q.limit {
		q.active[testID] = struct{}{}
		q.mu.Unlock()

		q.logger.Debug().Str("test_id", testID).Msg("Run admitted immediately")
		if err := q.launch(testID); err != nil {
			q.release(testID)
			q.reject(testID, err)
			return false, 0, err
		}
		return true, 0, nil
	}

	q.pending = append(q.pending, testID)
	position = len(q.pending)
	q.mu.Unlock()

	q.logger.Info().
		Str("test_id", testID).
		Int("position", position).
		Msg("Run queued, capacity in use")
	return false, position, nil
}

// Position returns the 1-based waiting position of a queued run, or 0 if
// the run is not waiting.
func (q *AdmissionQueue) Position(testID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, id := range q.pending {
		if id == testID {
			return i + 1
		}
	}
	return 0
}

// Withdraw removes a run from the waiting list before it is admitted.
// Returns false if the run was not waiting.
func (q *AdmissionQueue) Withdraw(testID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, id := range q.pending {
		if id == testID {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// OnRunFinished releases the run's capacity slot and drains the waiting
// list. Must be called exactly once per admitted run, on every outcome.
func (q *AdmissionQueue) OnRunFinished(testID string) {
	q.release(testID)
	go q.drain()
}

func (q *AdmissionQueue) release(testID string) {
	q.mu.Lock()
	delete(q.active, testID)
	q.mu.Unlock()
}

// drain launches waiting runs while capacity allows. Only one drain runs
// at a time; a failed launch marks that run rejected and moves on to the
// next so one bad run cannot wedge the queue.
func (q *AdmissionQueue) drain() {
	q.mu.Lock()
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.draining = false
		q.mu.Unlock()
	}()

	for {
		q.mu.Lock()
		if len(q.pending) == 0 || len(q.active) >= q.limit {
			q.mu.Unlock()
			return
		}
		testID := q.pending[0]
		q.pending = q.pending[1:]
		q.active[testID] = struct{}{}
		q.mu.Unlock()

		q.logger.Info().Str("test_id", testID).Msg("Draining queued run")
		if err := q.launch(testID); err != nil {
			q.logger.Warn().Err(err).Str("test_id", testID).Msg("Queued run failed to launch")
			q.release(testID)
			q.reject(testID, err)
			continue
		}

		if q.settle > 0 {
			time.Sleep(q.settle)
		}
	}
}

// ActiveCount returns the number of admitted runs
func (q *AdmissionQueue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.active)
}

// PendingCount returns the number of waiting runs
func (q *AdmissionQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
