package decision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/models"
)

// ClaudeService implements the DecisionService interface using the
// Anthropic Claude API with vision input.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    *anthropic.Client
	timeout   time.Duration
	maxTokens int
}

// NewClaudeService creates a new Claude decision service instance
func NewClaudeService(claudeConfig *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	if claudeConfig.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for Claude decision service (set ANTHROPIC_API_KEY or claude.api_key in config)")
	}

	if claudeConfig.Model == "" {
		claudeConfig.Model = "claude-sonnet-4-20250514"
	}

	timeout, err := time.ParseDuration(claudeConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", claudeConfig.Timeout, err)
	}

	maxTokens := claudeConfig.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client := anthropic.NewClient(
		option.WithAPIKey(claudeConfig.APIKey),
	)

	service := &ClaudeService{
		config:    claudeConfig,
		logger:    logger,
		client:    &client,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", claudeConfig.Model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude decision service initialized")

	return service, nil
}

// Decide asks the model for the next action given a screenshot and page
// context. Malformed model output never surfaces as an error: the parse
// failure arm maps to a safe "complete" decision carrying the diagnostic,
// so the caller's loop terminates instead of spinning on garbage.
func (s *ClaudeService) Decide(ctx context.Context, screenshot []byte, pageCtx *models.PageContext) (*models.Decision, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	text, err := s.generate(timeoutCtx, []anthropic.ContentBlockParamUnion{
		anthropic.NewImageBlockBase64("image/png", base64.StdEncoding.EncodeToString(screenshot)),
		anthropic.NewTextBlock(buildDecisionPrompt(pageCtx)),
	}, decisionSystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("decision request failed: %w", err)
	}

	decision, parseErr := ExtractDecision(text)
	if parseErr != nil {
		s.logger.Warn().
			Str("reason", parseErr.Reason).
			Str("url", pageCtx.URL).
			Msg("Model response was not parseable, completing run")
		return &models.Decision{
			Action:    models.ActionComplete,
			Reasoning: fmt.Sprintf("unparseable model response: %s", parseErr.Reason),
		}, nil
	}

	s.logger.Debug().
		Str("action", string(decision.Action)).
		Str("target", decision.Target).
		Dur("duration", time.Since(startTime)).
		Msg("Decision received")

	return decision, nil
}

// Summarize derives a narrative summary from the captured screenshots
func (s *ClaudeService) Summarize(ctx context.Context, url string, screenshots []*models.Screenshot) (string, error) {
	if len(screenshots) == 0 {
		return "", fmt.Errorf("no screenshots to summarize")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(screenshots)+1)
	for _, shot := range screenshots {
		blocks = append(blocks, anthropic.NewImageBlockBase64("image/png",
			base64.StdEncoding.EncodeToString(shot.Data)))
	}
	blocks = append(blocks, anthropic.NewTextBlock(buildSummaryPrompt(url, len(screenshots))))

	text, err := s.generate(timeoutCtx, blocks, "")
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases resources
func (s *ClaudeService) Close() error {
	s.client = nil
	return nil
}

// generate performs one vision message call and returns the response text
func (s *ClaudeService) generate(ctx context.Context, blocks []anthropic.ContentBlockParamUnion, system string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: system},
		}
	}

	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}
	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}
	return response.String(), nil
}
