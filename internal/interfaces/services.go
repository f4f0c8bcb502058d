package interfaces

import (
	"context"

	"github.com/ternarybob/sitetest/internal/models"
)

// Session is a remote browser instance hosted by the session provider
type Session struct {
	ID         string
	ConnectURL string // CDP websocket URL for the automation driver
}

// SessionProvider wraps the remote-browser vendor API. Implementations
// handle bounded retries for resources that become available
// asynchronously (connect URL, recording).
type SessionProvider interface {
	// CreateSession provisions a new remote browser session
	CreateSession(ctx context.Context) (*Session, error)

	// ConnectURL returns the CDP websocket URL for an existing session,
	// retrying with a fixed delay until it is reachable
	ConnectURL(ctx context.Context, sessionID string) (string, error)

	// LiveViewURL returns a URL the dashboard can embed to watch the
	// session live
	LiveViewURL(ctx context.Context, sessionID string) (string, error)

	// SessionStatus returns the provider-side session state
	SessionStatus(ctx context.Context, sessionID string) (string, error)

	// EndSession requests release of the remote session
	EndSession(ctx context.Context, sessionID string) error

	// RecordingURL fetches the session replay URL. The recording is
	// produced asynchronously after session end, so this retries with a
	// fixed delay and returns an error once the budget is exhausted.
	RecordingURL(ctx context.Context, sessionID string) (string, error)
}

// PageInfo is the current page state read from the automation driver
type PageInfo struct {
	URL            string
	Title          string
	ViewportWidth  int
	ViewportHeight int
}

// AutomationDriver wraps the local browser-automation library attached to
// one remote session. Drivers are single-use: Connect once, Close once.
// Not safe for concurrent use; runs execute steps sequentially.
type AutomationDriver interface {
	Connect(ctx context.Context, connectURL string) error
	SetViewport(ctx context.Context, width, height int) error
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	ScrollBy(ctx context.Context, pixels int) error
	ScrollToBottom(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	PageInfo(ctx context.Context) (*PageInfo, error)
	PageHTML(ctx context.Context) (string, error)
	Close() error
}

// DriverFactory creates a fresh automation driver for each run
type DriverFactory func() AutomationDriver

// DecisionService wraps the vision-model call. Decide never fails on
// malformed model output; parse failures degrade to a "complete" decision
// carrying a diagnostic so the caller's loop terminates.
type DecisionService interface {
	Decide(ctx context.Context, screenshot []byte, pageCtx *models.PageContext) (*models.Decision, error)
	Summarize(ctx context.Context, url string, screenshots []*models.Screenshot) (string, error)
	Close() error
}
