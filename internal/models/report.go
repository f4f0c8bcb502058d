package models

import (
	"time"
)

// Report is the derived, persisted summary of a completed run. The store
// may retain history; readers take the most recent by creation time.
type Report struct {
	ID        int64      `json:"id"`
	TestID    string     `json:"testId"`
	Body      ReportBody `json:"report"`
	Summary   string     `json:"summary,omitempty"` // AI-generated narrative, attached asynchronously
	CreatedAt time.Time  `json:"createdAt"`
}

// ReportBody is the structured report content
type ReportBody struct {
	TestID         string           `json:"testId"`
	URL            string           `json:"url"`
	Summary        ReportSummary    `json:"summary"`
	PagesVisited   []string         `json:"pagesVisited"`
	NavigationPath []NavigationStep `json:"navigationPath"`
	Actions        []ActionRecord   `json:"actions"`
	Issues         []Issue          `json:"issues"`
	RecordingURL   string           `json:"recordingUrl,omitempty"`
	GeneratedAt    time.Time        `json:"generatedAt"`
}

// ReportSummary aggregates run metrics
type ReportSummary struct {
	PagesVisited     int     `json:"pagesVisited"`
	ActionsPerformed int     `json:"actionsPerformed"`
	IssuesFound      int     `json:"issuesFound"`
	DurationSeconds  float64 `json:"durationSeconds"`
	SuccessRate      float64 `json:"successRate"` // 0-100, 0 when no actions
}

// NavigationStep is one numbered entry in the navigation path
type NavigationStep struct {
	Step      int       `json:"step"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ActionRecord is one entry in the actions timeline
type ActionRecord struct {
	Step      int        `json:"step"`
	Action    ActionKind `json:"action"`
	Target    string     `json:"target,omitempty"`
	Value     string     `json:"value,omitempty"`
	Reasoning string     `json:"reasoning,omitempty"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	PageURL   string     `json:"pageUrl,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Issue is one failed action surfaced in the report
type Issue struct {
	Action    ActionKind `json:"action"`
	Target    string     `json:"target,omitempty"`
	Message   string     `json:"message"`
	PageURL   string     `json:"pageUrl,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
