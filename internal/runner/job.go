package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/models"
	"github.com/ternarybob/sitetest/internal/services/pagecontext"
)

// errStopRequested is returned by the protocol loops when a stop request
// is observed at a step boundary.
var errStopRequested = errors.New("stop requested")

// execute runs one admitted test end to end: session acquisition, driver
// attach, the configured protocol, cleanup, report generation and the
// terminal state transition. Runs on its own goroutine; the capacity slot
// is released on every exit path.
func (s *Service) execute(run *models.TestRun) {
	ctx := context.Background()

	defer func() {
		s.queue.OnRunFinished(run.ID)
		s.tracker.Remove(run.ID)
	}()

	started := time.Now()
	run.Status = models.TestStatusRunning
	run.StartedAt = &started
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("test_id", run.ID).Msg("Failed to persist running status")
	}
	s.tracker.SetStatus(run.ID, models.TestStatusRunning)
	s.publish(run.ID, models.TestStatusRunning, "Test started")

	var driver interfaces.AutomationDriver
	var cleanupOnce sync.Once
	cleanup := func() {
		cleanupOnce.Do(func() {
			if driver != nil {
				if err := driver.Close(); err != nil {
					s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Driver close failed")
				}
			}
			if run.SessionID != "" {
				if err := s.provider.EndSession(ctx, run.SessionID); err != nil {
					s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Session release failed")
				}
			}
		})
	}

	session, err := s.provider.CreateSession(ctx)
	if err != nil {
		s.failRun(ctx, run, cleanup, fmt.Errorf("failed to create browser session: %w", err))
		return
	}
	run.SessionID = session.ID
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Failed to persist session id")
	}
	s.publish(run.ID, models.TestStatusRunning, "Browser session created")

	if liveURL, err := s.provider.LiveViewURL(ctx, session.ID); err == nil {
		s.tracker.SetLiveViewURL(run.ID, liveURL)
	}

	connectURL := session.ConnectURL
	if connectURL == "" {
		connectURL, err = s.provider.ConnectURL(ctx, session.ID)
		if err != nil {
			s.failRun(ctx, run, cleanup, fmt.Errorf("failed to resolve connect URL: %w", err))
			return
		}
	}

	driver = s.newDriver()
	if err := s.connectDriver(ctx, driver, connectURL); err != nil {
		s.failRun(ctx, run, cleanup, err)
		return
	}
	s.publish(run.ID, models.TestStatusRunning, "Browser connected")

	cfg := &s.config.Runner
	if err := driver.SetViewport(ctx, cfg.ViewportWidth, cfg.ViewportHeight); err != nil {
		s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Failed to set viewport")
	}

	if s.tracker.StopRequested(run.ID) {
		s.stopRun(ctx, run, cleanup)
		return
	}

	// Navigation failure is fatal: nothing meaningful can run against a
	// page that never loaded. The failed attempt is still logged.
	navErr := driver.Navigate(ctx, run.URL)
	s.logStep(ctx, run, driver, &models.ActionLogEntry{
		Action:  models.ActionNavigate,
		Target:  run.URL,
		Success: navErr == nil,
		Error:   errString(navErr),
	})
	if navErr != nil {
		s.failRun(ctx, run, cleanup, fmt.Errorf("failed to load %s: %w", run.URL, navErr))
		return
	}
	s.publish(run.ID, models.TestStatusRunning, "Page loaded")

	var protoErr error
	switch cfg.Protocol {
	case "ai":
		protoErr = s.runModelLoop(ctx, run, driver)
	default:
		protoErr = s.runScripted(ctx, run, driver)
	}

	cleanup()

	if errors.Is(protoErr, errStopRequested) || s.tracker.StopRequested(run.ID) {
		s.stopRun(ctx, run, cleanup)
		return
	}
	if protoErr != nil {
		s.failRun(ctx, run, cleanup, protoErr)
		return
	}

	entries, err := s.storage.ActionLog().ListEntries(ctx, run.ID)
	if err != nil {
		s.failRun(ctx, run, cleanup, fmt.Errorf("failed to read action log: %w", err))
		return
	}
	report, err := s.builder.Build(ctx, run, entries)
	if err != nil {
		s.failRun(ctx, run, cleanup, err)
		return
	}

	completed := time.Now()
	run.Status = models.TestStatusCompleted
	run.CompletedAt = &completed
	run.RecordingURL = report.Body.RecordingURL
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("test_id", run.ID).Msg("Failed to persist completed status")
	}
	s.tracker.SetStatus(run.ID, models.TestStatusCompleted)
	s.publish(run.ID, models.TestStatusCompleted, "Test completed")

	s.logger.Info().
		Str("test_id", run.ID).
		Str("url", run.URL).
		Int("actions", len(entries)).
		Msg("Test run completed")

	// Narrative summary is additive; it runs after the terminal
	// transition and its failure never changes the run outcome.
	go s.summarize(run)
}

// connectDriver attaches the driver with a bounded retry budget. Remote
// sessions are sometimes not immediately ready to accept the websocket.
func (s *Service) connectDriver(ctx context.Context, driver interfaces.AutomationDriver, connectURL string) error {
	cfg := &s.config.Runner
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := common.Duration(cfg.ConnectRetryDelay, 2*time.Second)

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = driver.Connect(ctx, connectURL)
		if err == nil {
			return nil
		}
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Msg("Driver connect attempt failed")
		if attempt < attempts {
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("failed to connect to browser after %d attempts: %w", attempts, err)
}

// runScripted executes the fixed smoke-test protocol: capture the top of
// the page, scroll through the middle, finish at the bottom. Step
// failures are logged as issues and do not abort the run.
func (s *Service) runScripted(ctx context.Context, run *models.TestRun, driver interfaces.AutomationDriver) error {
	cfg := &s.config.Runner
	stepDelay := common.Duration(cfg.ScrollStepDelay, 500*time.Millisecond)
	steps := cfg.ScrollSteps
	if steps < 1 {
		steps = 1
	}

	s.captureScreenshot(ctx, run, driver, models.ScreenshotTop)
	if s.tracker.StopRequested(run.ID) {
		return errStopRequested
	}

	// Middle of the page: one viewport height, scrolled in increments so
	// lazy-loaded content has a chance to render.
	var scrollErr error
	for i := 0; i < steps; i++ {
		if err := driver.ScrollBy(ctx, cfg.ViewportHeight/steps); err != nil {
			scrollErr = err
			break
		}
		time.Sleep(stepDelay)
	}
	s.logStep(ctx, run, driver, &models.ActionLogEntry{
		Action:  models.ActionScroll,
		Target:  models.ScreenshotMiddle,
		Success: scrollErr == nil,
		Error:   errString(scrollErr),
	})
	s.captureScreenshot(ctx, run, driver, models.ScreenshotMiddle)
	if s.tracker.StopRequested(run.ID) {
		return errStopRequested
	}

	scrollErr = driver.ScrollToBottom(ctx)
	if scrollErr == nil {
		time.Sleep(stepDelay)
	}
	s.logStep(ctx, run, driver, &models.ActionLogEntry{
		Action:  models.ActionScroll,
		Target:  models.ScreenshotBottom,
		Success: scrollErr == nil,
		Error:   errString(scrollErr),
	})
	s.captureScreenshot(ctx, run, driver, models.ScreenshotBottom)

	return nil
}

// runModelLoop executes the model-guided protocol: screenshot, ask the
// vision model for the next action, execute it, log it, repeat until the
// model completes or the step cap is reached. Individual action failures
// are logged as issues; only infrastructure failures abort the run.
func (s *Service) runModelLoop(ctx context.Context, run *models.TestRun, driver interfaces.AutomationDriver) error {
	cfg := &s.config.Runner
	var recent []string

	s.captureScreenshot(ctx, run, driver, models.ScreenshotTop)

	for step := 0; step < cfg.MaxActions; step++ {
		if s.tracker.StopRequested(run.ID) {
			return errStopRequested
		}

		shot, err := driver.Screenshot(ctx)
		if err != nil {
			return fmt.Errorf("failed to capture screenshot for decision: %w", err)
		}
		if step == cfg.MaxActions/2 {
			s.saveScreenshot(run.ID, models.ScreenshotMiddle, shot)
		}

		info, err := driver.PageInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to read page state: %w", err)
		}

		pageCtx := &models.PageContext{
			URL:            info.URL,
			Title:          info.Title,
			ViewportWidth:  info.ViewportWidth,
			ViewportHeight: info.ViewportHeight,
			RecentActions:  tail(recent, cfg.RecentActionCount),
		}
		if html, err := driver.PageHTML(ctx); err == nil {
			outline := pagecontext.Extract(html)
			pageCtx.Links = outline.Links
			pageCtx.Headings = outline.Headings
		}

		decision, err := s.decider.Decide(ctx, shot, pageCtx)
		if err != nil {
			return fmt.Errorf("decision request failed: %w", err)
		}

		entry := &models.ActionLogEntry{
			Action:    decision.Action,
			Target:    decision.Target,
			Value:     decision.Value,
			Reasoning: decision.Reasoning,
			PageURL:   info.URL,
			PageTitle: info.Title,
		}

		if decision.Action == models.ActionComplete {
			entry.Success = true
			s.logStep(ctx, run, driver, entry)
			break
		}

		actErr := s.performAction(ctx, driver, decision)
		entry.Success = actErr == nil
		entry.Error = errString(actErr)
		s.logStep(ctx, run, driver, entry)

		recent = append(recent, string(decision.Action))
	}

	if shot, err := driver.Screenshot(ctx); err == nil {
		s.saveScreenshot(run.ID, models.ScreenshotBottom, shot)
	}

	return nil
}

// performAction executes one model decision against the driver
func (s *Service) performAction(ctx context.Context, driver interfaces.AutomationDriver, decision *models.Decision) error {
	switch decision.Action {
	case models.ActionClick:
		return driver.Click(ctx, decision.Target)
	case models.ActionType:
		return driver.Type(ctx, decision.Target, decision.Value)
	case models.ActionScroll:
		if decision.Target == "bottom" {
			return driver.ScrollToBottom(ctx)
		}
		return driver.ScrollBy(ctx, s.config.Runner.ViewportHeight)
	case models.ActionNavigate:
		target := decision.Value
		if target == "" {
			target = decision.Target
		}
		return driver.Navigate(ctx, target)
	case models.ActionWait:
		time.Sleep(time.Second)
		return nil
	}
	return fmt.Errorf("unknown action %q", decision.Action)
}

// captureScreenshot takes and persists one tagged screenshot, logging the
// step either way.
func (s *Service) captureScreenshot(ctx context.Context, run *models.TestRun, driver interfaces.AutomationDriver, position string) {
	data, err := driver.Screenshot(ctx)
	if err == nil {
		s.saveScreenshot(run.ID, position, data)
	}
	s.logStep(ctx, run, driver, &models.ActionLogEntry{
		Action:  models.ActionScreenshot,
		Target:  position,
		Success: err == nil,
		Error:   errString(err),
	})
}

func (s *Service) saveScreenshot(testID, position string, data []byte) {
	shot := &models.Screenshot{
		TestID:     testID,
		Position:   position,
		Data:       data,
		CapturedAt: time.Now(),
	}
	if err := s.storage.Screenshots().SaveScreenshot(shot); err != nil {
		s.logger.Warn().
			Err(err).
			Str("test_id", testID).
			Str("position", position).
			Msg("Failed to persist screenshot")
	}
}

// logStep persists one action log entry immediately, so a crashed run
// still leaves its partial history behind.
func (s *Service) logStep(ctx context.Context, run *models.TestRun, driver interfaces.AutomationDriver, entry *models.ActionLogEntry) {
	entry.TestID = run.ID
	entry.Timestamp = time.Now()

	if entry.PageURL == "" && driver != nil {
		if info, err := driver.PageInfo(ctx); err == nil {
			entry.PageURL = info.URL
			entry.PageTitle = info.Title
		}
	}

	if err := s.storage.ActionLog().AppendEntry(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Failed to persist action log entry")
	}

	message := string(entry.Action)
	if entry.Target != "" {
		message += " " + entry.Target
	}
	if !entry.Success {
		message += " (failed)"
	}
	s.publish(run.ID, models.TestStatusRunning, message)
}

// failRun records the failed outcome after best-effort cleanup
func (s *Service) failRun(ctx context.Context, run *models.TestRun, cleanup func(), cause error) {
	s.logger.Error().Err(cause).Str("test_id", run.ID).Str("url", run.URL).Msg("Test run failed")
	cleanup()

	now := time.Now()
	run.Status = models.TestStatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("test_id", run.ID).Msg("Failed to persist failed status")
	}
	s.tracker.SetStatus(run.ID, models.TestStatusFailed)
	s.publish(run.ID, models.TestStatusFailed, cause.Error())
}

// stopRun records the stopped outcome. No report is generated for a
// stopped run.
func (s *Service) stopRun(ctx context.Context, run *models.TestRun, cleanup func()) {
	cleanup()

	now := time.Now()
	run.Status = models.TestStatusStopped
	run.CompletedAt = &now
	if err := s.storage.Runs().SaveRun(ctx, run); err != nil {
		s.logger.Error().Err(err).Str("test_id", run.ID).Msg("Failed to persist stopped status")
	}
	s.tracker.SetStatus(run.ID, models.TestStatusStopped)
	s.publish(run.ID, models.TestStatusStopped, "Test stopped")

	s.logger.Info().Str("test_id", run.ID).Msg("Test run stopped")
}

// summarize asks the vision model for a narrative summary of the captured
// screenshots and attaches it to the run's report. Best effort.
func (s *Service) summarize(run *models.TestRun) {
	ctx := context.Background()

	shots, err := s.storage.Screenshots().GetScreenshots(run.ID)
	if err != nil || len(shots) == 0 {
		return
	}

	summary, err := s.decider.Summarize(ctx, run.URL, shots)
	if err != nil {
		s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Summary generation failed")
		return
	}

	if err := s.storage.Reports().AttachSummary(ctx, run.ID, summary); err != nil {
		s.logger.Warn().Err(err).Str("test_id", run.ID).Msg("Failed to attach summary to report")
	}
}

// tail returns the last n elements of values
func tail(values []string, n int) []string {
	if n <= 0 || len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
