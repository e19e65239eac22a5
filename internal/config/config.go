// Package config loads formpilot settings from defaults, an optional YAML
// file and the environment. The result is read once and passed explicitly;
// nothing in the core reads the environment on its own.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FORMPILOT_BROWSER_HEADLESS
const EnvPrefix = "FORMPILOT"

// Config is the full application configuration
type Config struct {
	Session Session       `mapstructure:"session"`
	Browser BrowserConfig `mapstructure:"browser"`
	AI      AIConfig      `mapstructure:"ai"`
	Logger  LoggerConfig  `mapstructure:"logger"`
}

// Session holds the settings that shape one executor session
type Session struct {
	// HumanizeLevel 0 disables pacing; higher levels add longer pauses.
	HumanizeLevel      int           `mapstructure:"humanize_level"`
	Stealth            bool          `mapstructure:"stealth"`
	AutoWaitVisible    time.Duration `mapstructure:"auto_wait_visible"`
	NetworkIdleTimeout time.Duration `mapstructure:"network_idle_timeout"`
	TacticTimeout      time.Duration `mapstructure:"tactic_timeout"`
	SemanticTimeout    time.Duration `mapstructure:"semantic_timeout"`
	VerifyTimeout      time.Duration `mapstructure:"verify_timeout"`
	VerifyInterval     time.Duration `mapstructure:"verify_interval"`
	DeepThink          bool          `mapstructure:"deep_think"`
	// Seed fixes the humanizer's random source; 0 seeds from the clock.
	Seed int64 `mapstructure:"seed"`
}

// BrowserConfig selects and sizes the browser backend
type BrowserConfig struct {
	Driver     string `mapstructure:"driver"`
	Headless   bool   `mapstructure:"headless"`
	Width      int    `mapstructure:"width"`
	Height     int    `mapstructure:"height"`
	ProfileDir string `mapstructure:"profile_dir"`
	// Bin overrides browser discovery.
	Bin string `mapstructure:"bin"`
}

// AIConfig selects the semantic resolver
type AIConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	DeepModel string `mapstructure:"deep_model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	// Keys are read from ANTHROPIC_API_KEY / OPENAI_API_KEY when unset.
	AnthropicKey string `mapstructure:"anthropic_key"`
	OpenAIKey    string `mapstructure:"openai_key"`
}

// LoggerConfig controls log output and rotation
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	Colors      bool   `mapstructure:"colors"`
	ServiceName string `mapstructure:"service_name"`
	File        string `mapstructure:"file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// Driver names
const (
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// Provider names
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// legacyMillis maps the short millisecond variables to their session keys
var legacyMillis = map[string]string{
	"AUTO_WAIT_VISIBLE_MS":    "session.auto_wait_visible",
	"NETWORK_IDLE_TIMEOUT_MS": "session.network_idle_timeout",
}

// SetDefaults initializes default values for every key
func SetDefaults(v *viper.Viper) {
	// -- Session --
	v.SetDefault("session.humanize_level", 0)
	v.SetDefault("session.stealth", true)
	v.SetDefault("session.auto_wait_visible", "3s")
	v.SetDefault("session.network_idle_timeout", "5s")
	v.SetDefault("session.tactic_timeout", "3s")
	v.SetDefault("session.semantic_timeout", "30s")
	v.SetDefault("session.verify_timeout", "1500ms")
	v.SetDefault("session.verify_interval", "150ms")
	v.SetDefault("session.deep_think", true)
	v.SetDefault("session.seed", 0)

	// -- Browser --
	v.SetDefault("browser.driver", DriverRod)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 720)
	v.SetDefault("browser.profile_dir", "")
	v.SetDefault("browser.bin", "")

	// -- AI --
	v.SetDefault("ai.provider", ProviderNone)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.deep_model", "")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.anthropic_key", "")
	v.SetDefault("ai.openai_key", "")

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.colors", true)
	v.SetDefault("logger.service_name", "formpilot")
	v.SetDefault("logger.file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
}

// BindEnv wires the FORMPILOT_ prefix and the short legacy names. A
// prefixed variable wins over its legacy alias.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.BindEnv("session.humanize_level", EnvPrefix+"_SESSION_HUMANIZE_LEVEL", "HUMANIZE_LEVEL")
	v.BindEnv("session.stealth", EnvPrefix+"_SESSION_STEALTH", "STEALTH_MODE")
	v.BindEnv("ai.anthropic_key", EnvPrefix+"_AI_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	v.BindEnv("ai.openai_key", EnvPrefix+"_AI_OPENAI_KEY", "OPENAI_API_KEY")
	for env := range legacyMillis {
		v.BindEnv("legacy."+strings.ToLower(env), env)
	}
}

// NewDefaultConfig returns the configuration with only defaults applied
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Load reads defaults, the optional file at path and the environment
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return NewConfigFromViper(v)
}

// NewConfigFromViper decodes and validates the settings held by v
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Millisecond aliases only apply when the prefixed variable is absent
	for env, key := range legacyMillis {
		legacy := "legacy." + strings.ToLower(env)
		if !v.IsSet(legacy) || envSet(key) {
			continue
		}
		ms := v.GetInt64(legacy)
		d := time.Duration(ms) * time.Millisecond
		switch key {
		case "session.auto_wait_visible":
			cfg.Session.AutoWaitVisible = d
		case "session.network_idle_timeout":
			cfg.Session.NetworkIdleTimeout = d
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// envSet reports whether the prefixed variable for key is present
func envSet(key string) bool {
	_, ok := os.LookupEnv(EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}

// Validate checks the configuration for sane values
func (c *Config) Validate() error {
	var errs []error
	if err := c.Session.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Browser.Driver {
	case DriverRod, DriverPlaywright:
	default:
		errs = append(errs, fmt.Errorf("browser.driver must be %q or %q, got %q", DriverRod, DriverPlaywright, c.Browser.Driver))
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		errs = append(errs, fmt.Errorf("browser.width and browser.height must be positive"))
	}
	switch c.AI.Provider {
	case ProviderClaude, ProviderOpenAI, ProviderNone:
	default:
		errs = append(errs, fmt.Errorf("ai.provider must be one of claude, openai, none, got %q", c.AI.Provider))
	}
	if c.AI.Provider == ProviderClaude && c.AI.AnthropicKey == "" {
		errs = append(errs, fmt.Errorf("ai.provider claude needs ANTHROPIC_API_KEY"))
	}
	if c.AI.Provider == ProviderOpenAI && c.AI.OpenAIKey == "" {
		errs = append(errs, fmt.Errorf("ai.provider openai needs OPENAI_API_KEY"))
	}
	return errors.Join(errs...)
}

// Validate checks the session timings
func (s *Session) Validate() error {
	if s.HumanizeLevel < 0 {
		return fmt.Errorf("session.humanize_level must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"session.tactic_timeout":       s.TacticTimeout,
		"session.semantic_timeout":     s.SemanticTimeout,
		"session.network_idle_timeout": s.NetworkIdleTimeout,
		"session.verify_timeout":       s.VerifyTimeout,
		"session.verify_interval":      s.VerifyInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if s.AutoWaitVisible < 0 {
		return fmt.Errorf("session.auto_wait_visible must not be negative")
	}
	return nil
}
