package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/models"
)

// StartResult is returned to the caller of Start. Status is "starting"
// when the run was admitted immediately, "queued" when it is waiting for
// capacity.
type StartResult struct {
	TestID        string `json:"testId"`
	Status        string `json:"status"`
	QueuePosition int    `json:"queuePosition,omitempty"`
}

// StatusResult is the polled view of one run
type StatusResult struct {
	TestID        string            `json:"testId"`
	URL           string            `json:"url"`
	Status        models.TestStatus `json:"status"`
	QueuePosition int               `json:"queuePosition,omitempty"`
	Progress      []string          `json:"progress,omitempty"`
	LiveViewURL   string            `json:"liveViewUrl,omitempty"`
	RecordingURL  string            `json:"recordingUrl,omitempty"`
	Error         string            `json:"error,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	StartedAt     *time.Time        `json:"startedAt,omitempty"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
}

// Service owns the run lifecycle: admission, execution, stop requests and
// status queries. One Service instance exists per process.
type Service struct {
	config    *common.Config
	logger    arbor.ILogger
	storage   interfaces.StorageManager
	provider  interfaces.SessionProvider
	decider   interfaces.DecisionService
	newDriver interfaces.DriverFactory
	builder   ReportBuilder
	publisher ProgressPublisher

	tracker *Tracker
	queue   *AdmissionQueue
}

// ReportBuilder persists the structured report for a finished run
type ReportBuilder interface {
	Build(ctx context.Context, run *models.TestRun, entries []*models.ActionLogEntry) (*models.Report, error)
}

// NewService wires the runner from its collaborators. publisher may be
// nil when no live consumer is attached.
func NewService(
	config *common.Config,
	logger arbor.ILogger,
	storage interfaces.StorageManager,
	provider interfaces.SessionProvider,
	decider interfaces.DecisionService,
	newDriver interfaces.DriverFactory,
	builder ReportBuilder,
	publisher ProgressPublisher,
) *Service {
	s := &Service{
		config:    config,
		logger:    logger,
		storage:   storage,
		provider:  provider,
		decider:   decider,
		newDriver: newDriver,
		builder:   builder,
		publisher: publisher,
		tracker:   NewTracker(),
	}

	settle := common.Duration(config.Runner.QueueSettleDelay, 2*time.Second)
	s.queue = NewAdmissionQueue(config.Runner.QueueLimit, settle, s.launch, s.rejectLaunch, logger)
	return s
}

// Start creates a new run for the target URL and submits it for
// admission. Returns immediately; execution happens on a background
// goroutine.
func (s *Service) Start(ctx context.Context, url string) (*StartResult, error) {
	run := &models.TestRun{
		ID:        common.NewTestID(),
		URL:       url,
		Status:    models.TestStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to persist run: %w", err)
	}

	s.tracker.Add(run.ID, run.Status)

	started, position, err := s.queue.Submit(run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to launch test: %w", err)
	}
	if started {
		return &StartResult{TestID: run.ID, Status: "starting"}, nil
	}

	run.Status = models.TestStatusQueued
	s.tracker.SetStatus(run.ID, run.Status)
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Failed to persist queued status")
	}
	s.publish(run.ID, run.Status, fmt.Sprintf("Queued at position %d", position))

	return &StartResult{TestID: run.ID, Status: "queued", QueuePosition: position}, nil
}

// Stop requests cancellation of a run. Queued runs are withdrawn and
// finalized immediately; running runs finish their current step first.
// Returns an error for runs that are not active.
func (s *Service) Stop(ctx context.Context, testID string) error {
	status, active := s.tracker.Status(testID)
	if !active {
		return fmt.Errorf("test %s is not running", testID)
	}

	if status == models.TestStatusQueued && s.queue.Withdraw(testID) {
		s.finalizeStopped(testID)
		return nil
	}

	if !s.tracker.RequestStop(testID) {
		return fmt.Errorf("test %s is not running", testID)
	}

	s.logger.Info().Str("test_id", testID).Msg("Stop requested")
	return nil
}

// Status returns the current view of a run, merging the in-memory mirror
// with durable state.
func (s *Service) Status(ctx context.Context, testID string) (*StatusResult, error) {
	run, err := s.storage.Runs().GetRun(ctx, testID)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{
		TestID:       run.ID,
		URL:          run.URL,
		Status:       run.Status,
		RecordingURL: run.RecordingURL,
		Error:        run.Error,
		CreatedAt:    run.CreatedAt,
		StartedAt:    run.StartedAt,
		CompletedAt:  run.CompletedAt,
	}

	if status, active := s.tracker.Status(testID); active {
		result.Status = status
		result.Progress = s.tracker.Progress(testID)
		result.LiveViewURL = s.tracker.LiveViewURL(testID)
		if status == models.TestStatusQueued {
			result.QueuePosition = s.queue.Position(testID)
		}
	}

	return result, nil
}

// Report returns the latest report generated for a run
func (s *Service) Report(ctx context.Context, testID string) (*models.Report, error) {
	return s.storage.Reports().GetLatestReport(ctx, testID)
}

// Recording returns the session replay URL for a run. The provider
// produces recordings asynchronously, so a late fetch is attempted and
// persisted once it succeeds; an empty result means not ready.
func (s *Service) Recording(ctx context.Context, testID string) (string, error) {
	run, err := s.storage.Runs().GetRun(ctx, testID)
	if err != nil {
		return "", err
	}
	if run.RecordingURL != "" {
		return run.RecordingURL, nil
	}
	if run.SessionID == "" || !run.Status.Terminal() {
		return "", nil
	}

	recordingURL, err := s.provider.RecordingURL(ctx, run.SessionID)
	if err != nil {
		s.logger.Debug().Err(err).Str("test_id", testID).Msg("Recording still unavailable")
		return "", nil
	}

	run.RecordingURL = recordingURL
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("test_id", testID).Msg("Failed to persist recording URL")
	}
	return recordingURL, nil
}

// List returns recent runs, newest first
func (s *Service) List(ctx context.Context, limit int) ([]*models.TestRun, error) {
	return s.storage.Runs().ListRuns(ctx, limit)
}

// Delete removes a run and all of its artifacts. Active runs must be
// stopped first.
func (s *Service) Delete(ctx context.Context, testID string) error {
	if s.tracker.Active(testID) {
		return fmt.Errorf("test %s is still active", testID)
	}
	if err := s.storage.Screenshots().DeleteScreenshots(testID); err != nil {
		s.logger.Warn().Err(err).Str("test_id", testID).Msg("Failed to delete screenshots")
	}
	return s.storage.Runs().DeleteRun(ctx, testID)
}

// Active reports whether the run is currently admitted or queued
func (s *Service) Active(testID string) bool {
	return s.tracker.Active(testID)
}

// launch validates the run and hands it to the execution goroutine.
// Called by the admission queue with a capacity slot already held.
func (s *Service) launch(testID string) error {
	ctx := context.Background()
	run, err := s.storage.Runs().GetRun(ctx, testID)
	if err != nil {
		return fmt.Errorf("failed to load run for launch: %w", err)
	}
	if run.Status.Terminal() {
		return fmt.Errorf("run %s already finished with status %s", testID, run.Status)
	}

	go s.execute(run)
	return nil
}

// rejectLaunch marks a run failed when it could not be launched from the
// queue. Keeps the drain moving past the bad run.
func (s *Service) rejectLaunch(testID string, err error) {
	s.logger.Error().Err(err).Str("test_id", testID).Msg("Run launch rejected")

	ctx := context.Background()
	run, loadErr := s.storage.Runs().GetRun(ctx, testID)
	if loadErr != nil {
		s.tracker.Remove(testID)
		return
	}
	now := time.Now()
	run.Status = models.TestStatusFailed
	run.Error = err.Error()
	run.CompletedAt = &now
	if saveErr := s.storage.Runs().SaveRun(ctx, run); saveErr != nil {
		s.logger.Error().Err(saveErr).Str("test_id", testID).Msg("Failed to persist rejected run")
	}
	s.publish(testID, run.Status, run.Error)
	s.tracker.Remove(testID)
}

// finalizeStopped records the stopped outcome for a run that never ran
func (s *Service) finalizeStopped(testID string) {
	ctx := context.Background()
	run, err := s.storage.Runs().GetRun(ctx, testID)
	if err != nil {
		s.tracker.Remove(testID)
		return
	}
	now := time.Now()
	run.Status = models.TestStatusStopped
	run.CompletedAt = &now
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("test_id", testID).Msg("Failed to persist stopped run")
	}
	s.publish(testID, run.Status, "Stopped before execution")
	s.tracker.Remove(testID)
}

// publish records a progress message in the mirror and pushes it to the
// live publisher, if one is attached.
func (s *Service) publish(testID string, status models.TestStatus, message string) {
	s.tracker.AddProgress(testID, message)
	if s.publisher != nil {
		s.publisher.PublishProgress(ProgressEvent{
			TestID:    testID,
			Status:    status,
			Message:   message,
			Timestamp: time.Now(),
		})
	}
}
