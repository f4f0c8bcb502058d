package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"github.com/ternarybob/sitetest/internal/models"
)

// Builder turns a completed run's action log into a structured report and
// persists it. Apart from the recording-URL fetch, Build is a
// deterministic function of its inputs.
type Builder struct {
	reports  interfaces.ReportStorage
	provider interfaces.SessionProvider
	logger   arbor.ILogger
}

// NewBuilder creates a new report builder
func NewBuilder(reports interfaces.ReportStorage, provider interfaces.SessionProvider, logger arbor.ILogger) *Builder {
	return &Builder{
		reports:  reports,
		provider: provider,
		logger:   logger,
	}
}

// Build computes the report for a run and persists it before returning.
// An unavailable recording is not an error: the URL is left empty and the
// recording endpoint reports not-ready instead of serving a dead link.
func (b *Builder) Build(ctx context.Context, run *models.TestRun, entries []*models.ActionLogEntry) (*models.Report, error) {
	body := Compute(run, entries)

	if run.SessionID != "" {
		recordingURL, err := b.provider.RecordingURL(ctx, run.SessionID)
		if err != nil {
			b.logger.Warn().
				Err(err).
				Str("test_id", run.ID).
				Str("session_id", run.SessionID).
				Msg("Recording not available for report")
		} else {
			body.RecordingURL = recordingURL
		}
	}

	report := &models.Report{
		TestID:    run.ID,
		Body:      *body,
		CreatedAt: time.Now(),
	}
	if err := b.reports.SaveReport(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to persist report: %w", err)
	}

	b.logger.Info().
		Str("test_id", run.ID).
		Int("actions", body.Summary.ActionsPerformed).
		Int("issues", body.Summary.IssuesFound).
		Msg("Report generated")

	return report, nil
}

// Compute derives the report body from the run and its ordered action log.
// Pure function; exported so it can be exercised without storage.
func Compute(run *models.TestRun, entries []*models.ActionLogEntry) *models.ReportBody {
	body := &models.ReportBody{
		TestID:         run.ID,
		URL:            run.URL,
		PagesVisited:   []string{},
		NavigationPath: []models.NavigationStep{},
		Actions:        []models.ActionRecord{},
		Issues:         []models.Issue{},
		GeneratedAt:    time.Now(),
	}

	seenPages := make(map[string]bool)
	successes := 0
	navStep := 0

	for i, entry := range entries {
		if entry.PageURL != "" && !seenPages[entry.PageURL] {
			seenPages[entry.PageURL] = true
			body.PagesVisited = append(body.PagesVisited, entry.PageURL)
		}

		if entry.PageURL != "" {
			navStep++
			body.NavigationPath = append(body.NavigationPath, models.NavigationStep{
				Step:      navStep,
				URL:       entry.PageURL,
				Title:     entry.PageTitle,
				Timestamp: entry.Timestamp,
			})
		}

		body.Actions = append(body.Actions, models.ActionRecord{
			Step:      i + 1,
			Action:    entry.Action,
			Target:    entry.Target,
			Value:     entry.Value,
			Reasoning: entry.Reasoning,
			Success:   entry.Success,
			Error:     entry.Error,
			PageURL:   entry.PageURL,
			Timestamp: entry.Timestamp,
		})

		if entry.Success {
			successes++
		} else {
			body.Issues = append(body.Issues, models.Issue{
				Action:    entry.Action,
				Target:    entry.Target,
				Message:   entry.Error,
				PageURL:   entry.PageURL,
				Timestamp: entry.Timestamp,
			})
		}
	}

	var duration float64
	if len(entries) >= 2 {
		duration = entries[len(entries)-1].Timestamp.Sub(entries[0].Timestamp).Seconds()
	}

	var successRate float64
	if len(entries) > 0 {
		successRate = float64(successes) / float64(len(entries)) * 100
	}

	body.Summary = models.ReportSummary{
		PagesVisited:     len(body.PagesVisited),
		ActionsPerformed: len(entries),
		IssuesFound:      len(body.Issues),
		DurationSeconds:  duration,
		SuccessRate:      successRate,
	}

	return body
}
