package decision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/models"
	"google.golang.org/genai"
)

// GeminiService implements the DecisionService interface using the
// Google Gemini API with vision input.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// NewGeminiService creates a new Gemini decision service instance
func NewGeminiService(geminiConfig *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	if geminiConfig.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for Gemini decision service (set GEMINI_API_KEY or gemini.api_key in config)")
	}

	if geminiConfig.Model == "" {
		geminiConfig.Model = "gemini-2.0-flash"
	}

	timeout, err := time.ParseDuration(geminiConfig.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", geminiConfig.Timeout, err)
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  geminiConfig.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}

	service := &GeminiService{
		config:  geminiConfig,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}

	logger.Debug().
		Str("model", geminiConfig.Model).
		Dur("timeout", timeout).
		Msg("Gemini decision service initialized")

	return service, nil
}

// Decide asks the model for the next action given a screenshot and page
// context. As with the Claude implementation, a parse failure degrades to
// a safe "complete" decision rather than an error.
func (s *GeminiService) Decide(ctx context.Context, screenshot []byte, pageCtx *models.PageContext) (*models.Decision, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parts := []*genai.Part{
		genai.NewPartFromBytes(screenshot, "image/png"),
		genai.NewPartFromText(buildDecisionPrompt(pageCtx)),
	}

	text, err := s.generate(timeoutCtx, parts, decisionSystemPrompt)
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

	return decision, nil
}

// Summarize derives a narrative summary from the captured screenshots
func (s *GeminiService) Summarize(ctx context.Context, url string, screenshots []*models.Screenshot) (string, error) {
	if len(screenshots) == 0 {
		return "", fmt.Errorf("no screenshots to summarize")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parts := make([]*genai.Part, 0, len(screenshots)+1)
	for _, shot := range screenshots {
		parts = append(parts, genai.NewPartFromBytes(shot.Data, "image/png"))
	}
	parts = append(parts, genai.NewPartFromText(buildSummaryPrompt(url, len(screenshots))))

	text, err := s.generate(timeoutCtx, parts, "")
	if err != nil {
		return "", fmt.Errorf("summary request failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// Close releases resources. The genai.Client doesn't require explicit cleanup.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

// generate performs one vision content call and returns the response text
func (s *GeminiService) generate(ctx context.Context, parts []*genai.Part, system string) (string, error) {
	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: parts},
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	text := collectCandidateText(resp)
	if text == "" {
		return "", fmt.Errorf("no response generated from Gemini API")
	}
	return text, nil
}

// collectCandidateText returns the text of the first candidate that has
// any. Candidates can arrive with nil content, for example when blocked
// by a safety filter.
func collectCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var response strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				response.WriteString(part.Text)
			}
		}
		if response.Len() > 0 {
			break
		}
	}
	return response.String()
}
