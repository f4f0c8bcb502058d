package decision

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
)

// NewDecisionService creates the appropriate decision service
// implementation based on configuration
func NewDecisionService(cfg *common.Config, logger arbor.ILogger) (interfaces.DecisionService, error) {
	logger.Info().Str("provider", cfg.LLM.Provider).Msg("Initializing decision service")

	switch cfg.LLM.Provider {
	case "claude":
		return NewClaudeService(&cfg.Claude, logger)
	case "gemini":
		return NewGeminiService(&cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("invalid decision provider '%s': must be 'claude' or 'gemini'", cfg.LLM.Provider)
	}
}
