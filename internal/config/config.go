// Package config loads gish configuration from YAML with environment
// overrides. The config is constructed once at process start and passed
// into the components that need it; core logic never reads settings
// ambiently.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rashkov/gish/internal/pathutil"
)

// Config holds all gish settings.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Chat    ChatConfig    `yaml:"chat"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the model provider connection.
type APIConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

// ChatConfig configures models, the conversation log, and the
// post-exchange tools.
type ChatConfig struct {
	// DefaultModel is also the only model cost estimates apply to.
	DefaultModel string  `yaml:"default_model"`
	CostPerToken float64 `yaml:"cost_per_token"`
	LogPath      string  `yaml:"log_path"`
	SaveDir      string  `yaml:"save_dir"`
	// DiffCommand is the external diff tool ("vimdiff", "code --diff").
	// Empty selects the in-terminal unified diff.
	DiffCommand string `yaml:"diff_command"`
}

// LoggingConfig configures diagnostic logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "120s",
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Chat: ChatConfig{
			DefaultModel: "gpt-4o-mini",
			CostPerToken: 0.00000015,
			LogPath:      "~/.gish/chat_log.json",
			SaveDir:      "~/.gish/responses",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gish", "config.yaml")
	}
	return filepath.Join(home, ".gish", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file returns the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.API.APIKey = key
	}
	if url := os.Getenv("GISH_BASE_URL"); url != "" {
		c.API.BaseURL = url
	}
	if model := os.Getenv("GISH_MODEL"); model != "" {
		c.Chat.DefaultModel = model
	}
	if path := os.Getenv("GISH_LOG"); path != "" {
		c.Chat.LogPath = path
	}
}

// GetTimeout returns the API timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// ResolvedLogPath returns the conversation log path with the home
// directory expanded.
func (c *Config) ResolvedLogPath() string {
	return pathutil.Normalize(c.Chat.LogPath)
}

// ResolvedSaveDir returns the response save directory with the home
// directory expanded.
func (c *Config) ResolvedSaveDir() string {
	return pathutil.Normalize(c.Chat.SaveDir)
}

// Validate validates the configuration for a real exchange. Dry runs
// never contact the backend and skip this.
func (c *Config) Validate() error {
	if c.API.APIKey == "" {
		return fmt.Errorf("API key not configured (set OPENAI_API_KEY or api.api_key in %s)", DefaultPath())
	}
	if c.Chat.DefaultModel == "" {
		return fmt.Errorf("default model not configured")
	}
	if c.Chat.LogPath == "" {
		return fmt.Errorf("conversation log path not configured")
	}
	return nil
}
