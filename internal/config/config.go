// Package config holds the application configuration. The YAML file
// (chiefkit.yaml) carries deployment-style settings; per-user state
// such as the session token lives in .chief/config.json (user_config.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all chiefkit configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backend REST API
	API APIConfig `yaml:"api"`

	// Local SQLite cache
	Cache CacheConfig `yaml:"cache"`

	// Advisor settings
	Advisor AdvisorConfig `yaml:"advisor"`

	// Game-data editing
	GameData GameDataConfig `yaml:"game_data"`

	// Demo mode
	Demo DemoConfig `yaml:"demo"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the backend REST client.
type APIConfig struct {
	BaseURL       string `yaml:"base_url"`
	Timeout       string `yaml:"timeout"`
	HealthTimeout string `yaml:"health_timeout"`
}

// CacheConfig configures the local catalog cache.
type CacheConfig struct {
	DatabasePath string `yaml:"database_path"`
	CatalogTTL   string `yaml:"catalog_ttl"` // staleness warning threshold
}

// AdvisorConfig configures the AI advisor surface.
type AdvisorConfig struct {
	// Answers route through the backend to an LLM, so their timeout is
	// separate from ordinary CRUD calls.
	Timeout      string `yaml:"timeout"`
	HistoryLimit int    `yaml:"history_limit"`
}

// GameDataConfig configures raw game-data editing.
type GameDataConfig struct {
	DraftsDir   string `yaml:"drafts_dir"`
	WatchDrafts bool   `yaml:"watch_drafts"`
}

// DemoConfig configures the in-process demo service.
type DemoConfig struct {
	// Enabled forces demo mode even when a backend is configured.
	Enabled bool `yaml:"enabled"`
	// Fallback switches to the demo service when the backend health
	// probe fails at boot.
	Fallback bool `yaml:"fallback"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "chiefkit",
		Version: "0.4.0",

		API: APIConfig{
			BaseURL:       "https://api.chiefkit.app",
			Timeout:       "15s",
			HealthTimeout: "3s",
		},

		Cache: CacheConfig{
			DatabasePath: ".chief/chief.db",
			CatalogTTL:   "24h",
		},

		Advisor: AdvisorConfig{
			Timeout:      "90s",
			HistoryLimit: 50,
		},

		GameData: GameDataConfig{
			DraftsDir:   ".chief/drafts",
			WatchDrafts: true,
		},

		Demo: DemoConfig{
			Enabled:  false,
			Fallback: true,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
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
	if url := os.Getenv("CHIEF_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if path := os.Getenv("CHIEF_DB"); path != "" {
		c.Cache.DatabasePath = path
	}
	if dir := os.Getenv("CHIEF_DRAFTS_DIR"); dir != "" {
		c.GameData.DraftsDir = dir
	}
	if mode := os.Getenv("CHIEF_DEMO"); mode == "1" || mode == "true" {
		c.Demo.Enabled = true
	}
	if level := os.Getenv("CHIEF_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// GetRequestTimeout returns the API request timeout as a duration.
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetHealthTimeout returns the boot health-probe timeout as a duration.
func (c *Config) GetHealthTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.HealthTimeout)
	if err != nil {
		return 3 * time.Second
	}
	return d
}

// GetAdvisorTimeout returns the advisor request timeout as a duration.
func (c *Config) GetAdvisorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Advisor.Timeout)
	if err != nil {
		return 90 * time.Second
	}
	return d
}

// GetCatalogTTL returns the catalog staleness threshold as a duration.
func (c *Config) GetCatalogTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.CatalogTTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Demo.Enabled && c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url not configured (set CHIEF_API_URL or enable demo mode)")
	}
	if _, err := time.ParseDuration(c.API.Timeout); err != nil {
		return fmt.Errorf("invalid api.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Advisor.Timeout); err != nil {
		return fmt.Errorf("invalid advisor.timeout: %w", err)
	}
	if c.Advisor.HistoryLimit < 0 {
		return fmt.Errorf("advisor.history_limit must not be negative")
	}
	return nil
}
