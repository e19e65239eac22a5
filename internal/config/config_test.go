package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, 0, cfg.Session.HumanizeLevel)
	assert.True(t, cfg.Session.Stealth)
	assert.Equal(t, 3*time.Second, cfg.Session.AutoWaitVisible)
	assert.Equal(t, 5*time.Second, cfg.Session.NetworkIdleTimeout)
	assert.Equal(t, 3*time.Second, cfg.Session.TacticTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.SemanticTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Session.VerifyTimeout)
	assert.Equal(t, 150*time.Millisecond, cfg.Session.VerifyInterval)
	assert.True(t, cfg.Session.DeepThink)

	assert.Equal(t, DriverRod, cfg.Browser.Driver)
	assert.Equal(t, 1280, cfg.Browser.Width)
	assert.Equal(t, ProviderNone, cfg.AI.Provider)
	assert.Equal(t, "info", cfg.Logger.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	path := filepath.Join(t.TempDir(), "formpilot.yaml")
	yaml := `
session:
  humanize_level: 2
  tactic_timeout: 500ms
browser:
  driver: playwright
  headless: false
ai:
  provider: claude
  model: claude-sonnet-4-20250514
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Session.HumanizeLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Session.TacticTimeout)
	assert.Equal(t, 30*time.Second, cfg.Session.SemanticTimeout)
	assert.Equal(t, DriverPlaywright, cfg.Browser.Driver)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, ProviderClaude, cfg.AI.Provider)
	assert.Equal(t, "sk-test", cfg.AI.AnthropicKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLegacyEnvironment(t *testing.T) {
	t.Setenv("HUMANIZE_LEVEL", "3")
	t.Setenv("STEALTH_MODE", "false")
	t.Setenv("AUTO_WAIT_VISIBLE_MS", "1200")
	t.Setenv("NETWORK_IDLE_TIMEOUT_MS", "800")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Session.HumanizeLevel)
	assert.False(t, cfg.Session.Stealth)
	assert.Equal(t, 1200*time.Millisecond, cfg.Session.AutoWaitVisible)
	assert.Equal(t, 800*time.Millisecond, cfg.Session.NetworkIdleTimeout)
}

func TestPrefixedEnvironmentWins(t *testing.T) {
	t.Setenv("HUMANIZE_LEVEL", "3")
	t.Setenv("FORMPILOT_SESSION_HUMANIZE_LEVEL", "1")
	t.Setenv("AUTO_WAIT_VISIBLE_MS", "1200")
	t.Setenv("FORMPILOT_SESSION_AUTO_WAIT_VISIBLE", "2s")
	t.Setenv("FORMPILOT_BROWSER_DRIVER", "playwright")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Session.HumanizeLevel)
	assert.Equal(t, 2*time.Second, cfg.Session.AutoWaitVisible)
	assert.Equal(t, DriverPlaywright, cfg.Browser.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Browser.Driver = "chromedp" }, "browser.driver"},
		{"unknown provider", func(c *Config) { c.AI.Provider = "gemini" }, "ai.provider"},
		{"missing key", func(c *Config) { c.AI.Provider = ProviderOpenAI }, "OPENAI_API_KEY"},
		{"negative humanize", func(c *Config) { c.Session.HumanizeLevel = -1 }, "humanize_level"},
		{"zero tactic timeout", func(c *Config) { c.Session.TacticTimeout = 0 }, "tactic_timeout"},
		{"zero viewport", func(c *Config) { c.Browser.Width = 0 }, "browser.width"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
