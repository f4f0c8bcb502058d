package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitetest.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 3001 {
		t.Errorf("default port = %d, want 3001", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "claude" {
		t.Errorf("default provider = %s, want claude", cfg.LLM.Provider)
	}
	if cfg.Runner.Protocol != "scripted" {
		t.Errorf("default protocol = %s, want scripted", cfg.Runner.Protocol)
	}
	if cfg.Runner.QueueLimit != 1 {
		t.Errorf("default queue_limit = %d, want 1", cfg.Runner.QueueLimit)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate cleanly: %v", err)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 8080
host = "0.0.0.0"

[runner]
protocol = "ai"
max_actions = 3
recent_action_count = 7

[llm]
provider = "gemini"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 8080 || cfg.Server.Host != "0.0.0.0" {
		t.Errorf("server = %s:%d, want 0.0.0.0:8080", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Runner.Protocol != "ai" || cfg.Runner.MaxActions != 3 {
		t.Errorf("runner = %s/%d, want ai/3", cfg.Runner.Protocol, cfg.Runner.MaxActions)
	}
	if cfg.Runner.RecentActionCount != 7 {
		t.Errorf("recent_action_count = %d, want 7", cfg.Runner.RecentActionCount)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %s, want gemini", cfg.LLM.Provider)
	}
	// Untouched sections keep their defaults.
	if cfg.Runner.ViewportWidth != 1280 {
		t.Errorf("viewport_width = %d, want default 1280", cfg.Runner.ViewportWidth)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[server]
port = 8080
`)

	t.Setenv("SITETEST_SERVER_PORT", "9090")
	t.Setenv("SITETEST_LLM_PROVIDER", "gemini")
	t.Setenv("BROWSERBASE_API_KEY", "bb_key")
	t.Setenv("ANTHROPIC_API_KEY", "claude_key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Errorf("provider = %s, want gemini", cfg.LLM.Provider)
	}
	if cfg.Browserbase.APIKey != "bb_key" || cfg.Claude.APIKey != "claude_key" {
		t.Error("provider keys should come from the environment")
	}
}

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, true},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "gpt" }, true},
		{"unknown protocol", func(c *Config) { c.Runner.Protocol = "manual" }, true},
		{"queue limit zero", func(c *Config) { c.Runner.QueueLimit = 0 }, true},
		{"max actions zero", func(c *Config) { c.Runner.MaxActions = 0 }, true},
		{"bad duration", func(c *Config) { c.Runner.NavigationTimeout = "soon" }, true},
		{"bad watchdog age", func(c *Config) { c.Watchdog.MaxRunAge = "never" }, true},
		{"gemini provider", func(c *Config) { c.LLM.Provider = "gemini" }, false},
		{"ai protocol", func(c *Config) { c.Runner.Protocol = "ai" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("2s", time.Second); got != 2*time.Second {
		t.Errorf("Duration(2s) = %v, want 2s", got)
	}
	if got := Duration("", 5*time.Second); got != 5*time.Second {
		t.Errorf("Duration(empty) = %v, want fallback 5s", got)
	}
	if got := Duration("garbage", 3*time.Second); got != 3*time.Second {
		t.Errorf("Duration(garbage) = %v, want fallback 3s", got)
	}
}
