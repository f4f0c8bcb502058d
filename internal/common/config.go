package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production"
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Logging     LoggingConfig     `toml:"logging"`
	Browserbase BrowserbaseConfig `toml:"browserbase"`
	Claude      ClaudeConfig      `toml:"claude"`
	Gemini      GeminiConfig      `toml:"gemini"`
	LLM         LLMConfig         `toml:"llm"`
	Runner      RunnerConfig      `toml:"runner"`
	Watchdog    WatchdogConfig    `toml:"watchdog"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	SQLite SQLiteConfig `toml:"sqlite"`
	Badger BadgerConfig `toml:"badger"`
}

// SQLiteConfig holds settings for the relational store (runs, logs, reports)
type SQLiteConfig struct {
	Path string `toml:"path"` // Database file path
}

// BadgerConfig holds settings for the screenshot artifact store
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// BrowserbaseConfig holds settings for the remote browser session provider
type BrowserbaseConfig struct {
	APIKey            string  `toml:"api_key"`
	ProjectID         string  `toml:"project_id"`
	BaseURL           string  `toml:"base_url"`            // API base URL
	Timeout           string  `toml:"timeout"`             // Per-request timeout, e.g. "30s"
	ConnectAttempts   int     `toml:"connect_attempts"`    // Retries while waiting for the connect URL
	ConnectRetryDelay string  `toml:"connect_retry_delay"` // Fixed delay between connect retries
	RecordingAttempts int     `toml:"recording_attempts"`  // Retries while waiting for the recording
	RecordingDelay    string  `toml:"recording_delay"`     // Fixed delay between recording retries
	RequestsPerSecond float64 `toml:"requests_per_second"` // Client-side rate limit on API calls
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// LLMConfig selects the decision provider
type LLMConfig struct {
	Provider string `toml:"provider"` // "claude" or "gemini"
}

// RunnerConfig holds the test execution policy constants.
// Defaults mirror the original fixed values; they are configuration so
// deployments can tune them without a rebuild.
type RunnerConfig struct {
	Protocol          string `toml:"protocol"`            // "scripted" or "ai"
	MaxActions        int    `toml:"max_actions"`         // AI loop step cap
	ConnectAttempts   int    `toml:"connect_attempts"`    // Driver reconnection budget
	ConnectRetryDelay string `toml:"connect_retry_delay"` // Fixed delay between driver attempts
	NavigationTimeout string `toml:"navigation_timeout"`  // Page-load cutoff
	ActionTimeout     string `toml:"action_timeout"`      // Per-interaction cutoff
	QueueLimit        int    `toml:"queue_limit"`         // Max concurrently running tests
	QueueSettleDelay  string `toml:"queue_settle_delay"`  // Pause between queue drain steps
	ViewportWidth     int    `toml:"viewport_width"`
	ViewportHeight    int    `toml:"viewport_height"`
	ScrollSteps       int    `toml:"scroll_steps"`       // Increments per smooth scroll
	ScrollStepDelay   string `toml:"scroll_step_delay"`  // Pause between scroll increments
	RecentActionCount int    `toml:"recent_action_count"` // Prior action kinds sent to the model
}

// WatchdogConfig controls the stale-run sweep
type WatchdogConfig struct {
	Enabled   bool   `toml:"enabled"`
	Schedule  string `toml:"schedule"`    // Cron schedule, e.g. "@every 1m"
	MaxRunAge string `toml:"max_run_age"` // Runs stuck in running longer than this are failed
}

// DefaultConfig returns the configuration defaults
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 3001,
			Host: "localhost",
		},
		Storage: StorageConfig{
			SQLite: SQLiteConfig{Path: "./data/sitetest.db"},
			Badger: BadgerConfig{Path: "./data/screenshots"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Browserbase: BrowserbaseConfig{
			BaseURL:           "https://api.browserbase.com",
			Timeout:           "30s",
			ConnectAttempts:   5,
			ConnectRetryDelay: "2s",
			RecordingAttempts: 5,
			RecordingDelay:    "2s",
			RequestsPerSecond: 5,
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
			Timeout:   "60s",
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "60s",
		},
		LLM: LLMConfig{
			Provider: "claude",
		},
		Runner: RunnerConfig{
			Protocol:          "scripted",
			MaxActions:        10,
			ConnectAttempts:   5,
			ConnectRetryDelay: "2s",
			NavigationTimeout: "30s",
			ActionTimeout:     "10s",
			QueueLimit:        1,
			QueueSettleDelay:  "2s",
			ViewportWidth:     1280,
			ViewportHeight:    800,
			ScrollSteps:       4,
			ScrollStepDelay:   "500ms",
			RecentActionCount: 5,
		},
		Watchdog: WatchdogConfig{
			Enabled:   true,
			Schedule:  "@every 1m",
			MaxRunAge: "15m",
		},
	}
}

// LoadConfig loads configuration with the order:
// defaults -> config files (in order given) -> environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies SITETEST_* environment variables plus the
// conventional provider key variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SITETEST_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SITETEST_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SITETEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SITETEST_LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}

	if v := os.Getenv("BROWSERBASE_API_KEY"); v != "" {
		cfg.Browserbase.APIKey = v
	}
	if v := os.Getenv("BROWSERBASE_PROJECT_ID"); v != "" {
		cfg.Browserbase.ProjectID = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.Gemini.APIKey = v
	}
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.LLM.Provider != "claude" && c.LLM.Provider != "gemini" {
		return fmt.Errorf("invalid llm provider '%s': must be 'claude' or 'gemini'", c.LLM.Provider)
	}
	if c.Runner.Protocol != "scripted" && c.Runner.Protocol != "ai" {
		return fmt.Errorf("invalid runner protocol '%s': must be 'scripted' or 'ai'", c.Runner.Protocol)
	}
	if c.Runner.QueueLimit <= 0 {
		return fmt.Errorf("runner queue_limit must be greater than 0, got %d", c.Runner.QueueLimit)
	}
	if c.Runner.MaxActions <= 0 {
		return fmt.Errorf("runner max_actions must be greater than 0, got %d", c.Runner.MaxActions)
	}
	for _, d := range []struct{ name, value string }{
		{"browserbase.timeout", c.Browserbase.Timeout},
		{"browserbase.connect_retry_delay", c.Browserbase.ConnectRetryDelay},
		{"browserbase.recording_delay", c.Browserbase.RecordingDelay},
		{"runner.connect_retry_delay", c.Runner.ConnectRetryDelay},
		{"runner.navigation_timeout", c.Runner.NavigationTimeout},
		{"runner.action_timeout", c.Runner.ActionTimeout},
		{"runner.queue_settle_delay", c.Runner.QueueSettleDelay},
		{"runner.scroll_step_delay", c.Runner.ScrollStepDelay},
		{"watchdog.max_run_age", c.Watchdog.MaxRunAge},
	} {
		if _, err := time.ParseDuration(d.value); err != nil {
			return fmt.Errorf("invalid duration for %s: %w", d.name, err)
		}
	}
	return nil
}

// Duration parses a duration string that has already passed Validate.
// Falls back to the given default if the value is empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
