package browserbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
	"golang.org/x/time/rate"
)

// Client implements the SessionProvider interface against the
// Browserbase REST API.
type Client struct {
	config       *common.BrowserbaseConfig
	logger       arbor.ILogger
	httpClient   *http.Client
	limiter      *rate.Limiter
	connectTries int
	connectDelay time.Duration
	recordTries  int
	recordDelay  time.Duration
}

type sessionResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	ConnectURL string `json:"connectUrl"`
}

type debugResponse struct {
	DebuggerURL           string `json:"debuggerUrl"`
	DebuggerFullscreenURL string `json:"debuggerFullscreenUrl"`
	WSURL                 string `json:"wsUrl"`
}

// NewClient creates a new session provider client
func NewClient(config *common.BrowserbaseConfig, logger arbor.ILogger) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Browserbase API key is required (set BROWSERBASE_API_KEY or browserbase.api_key in config)")
	}
	if config.ProjectID == "" {
		return nil, fmt.Errorf("Browserbase project ID is required (set BROWSERBASE_PROJECT_ID or browserbase.project_id in config)")
	}

	timeout := common.Duration(config.Timeout, 30*time.Second)
	rps := config.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	connectTries := config.ConnectAttempts
	if connectTries <= 0 {
		connectTries = 5
	}
	recordTries := config.RecordingAttempts
	if recordTries <= 0 {
		recordTries = 5
	}

	client := &Client{
		config:       config,
		logger:       logger,
		httpClient:   &http.Client{Timeout: timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		connectTries: connectTries,
		connectDelay: common.Duration(config.ConnectRetryDelay, 2*time.Second),
		recordTries:  recordTries,
		recordDelay:  common.Duration(config.RecordingDelay, 2*time.Second),
	}

	logger.Debug().
		Str("base_url", config.BaseURL).
		Dur("timeout", timeout).
		Msg("Browserbase client initialized")

	return client, nil
}

// CreateSession provisions a new remote browser session
func (c *Client) CreateSession(ctx context.Context) (*interfaces.Session, error) {
	body := map[string]interface{}{
		"projectId": c.config.ProjectID,
	}

	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("session provider returned no session ID")
	}

	c.logger.Info().
		Str("session_id", resp.ID).
		Str("status", resp.Status).
		Msg("Remote browser session created")

	return &interfaces.Session{ID: resp.ID, ConnectURL: resp.ConnectURL}, nil
}

// ConnectURL returns the CDP websocket URL for a session. The session can
// take a moment to become reachable after creation, so this polls with a
// fixed delay up to the configured budget.
func (c *Client) ConnectURL(ctx context.Context, sessionID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.connectTries; attempt++ {
		var resp sessionResponse
		err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &resp)
		if err == nil && resp.ConnectURL != "" {
			return resp.ConnectURL, nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("session %s has no connect URL yet (status %s)", sessionID, resp.Status)
		}

		c.logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", c.connectTries).
			Str("session_id", sessionID).
			Msg("Connect URL not ready, retrying")

		if attempt < c.connectTries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.connectDelay):
			}
		}
	}
	return "", fmt.Errorf("connect URL unavailable after %d attempts: %w", c.connectTries, lastErr)
}

// LiveViewURL returns the debugger URL the dashboard embeds for the live view
func (c *Client) LiveViewURL(ctx context.Context, sessionID string) (string, error) {
	var resp debugResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/debug", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to get live view URL: %w", err)
	}
	if resp.DebuggerFullscreenURL != "" {
		return resp.DebuggerFullscreenURL, nil
	}
	if resp.DebuggerURL != "" {
		return resp.DebuggerURL, nil
	}
	return "", fmt.Errorf("no live view URL available for session %s", sessionID)
}

// SessionStatus returns the provider-side session state
func (c *Client) SessionStatus(ctx context.Context, sessionID string) (string, error) {
	var resp sessionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to get session status: %w", err)
	}
	return resp.Status, nil
}

// EndSession requests release of the remote session
func (c *Client) EndSession(ctx context.Context, sessionID string) error {
	body := map[string]interface{}{
		"projectId": c.config.ProjectID,
		"status":    "REQUEST_RELEASE",
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/sessions/"+sessionID, body, nil); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	c.logger.Info().Str("session_id", sessionID).Msg("Remote browser session released")
	return nil
}

// RecordingURL returns the session replay URL once the recording exists.
// The recording is produced asynchronously after session end; when the
// retry budget is exhausted the caller gets an error, never a dead link.
func (c *Client) RecordingURL(ctx context.Context, sessionID string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.recordTries; attempt++ {
		var events []json.RawMessage
		err := c.doJSON(ctx, http.MethodGet, "/v1/sessions/"+sessionID+"/recording", nil, &events)
		if err == nil && len(events) > 0 {
			return fmt.Sprintf("https://browserbase.com/sessions/%s", sessionID), nil
		}
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("recording for session %s is empty", sessionID)
		}

		c.logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", c.recordTries).
			Str("session_id", sessionID).
			Msg("Recording not ready, retrying")

		if attempt < c.recordTries {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.recordDelay):
			}
		}
	}
	return "", fmt.Errorf("recording unavailable after %d attempts: %w", c.recordTries, lastErr)
}

// doJSON performs one rate-limited API request with JSON encoding on both
// sides. A nil out discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-BB-API-Key", c.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s returned %d: %s", method, path, resp.StatusCode, string(data))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
