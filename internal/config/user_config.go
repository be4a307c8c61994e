package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// UserConfig holds per-user state from .chief/config.json: the stored
// session token, display preferences, and the debug logging gate the
// logging package reads from the same file.
type UserConfig struct {
	// Last successful login. The token is what `chief login` persists;
	// the in-memory session remains authoritative while running.
	Token string `json:"token,omitempty"`
	Email string `json:"email,omitempty"`

	// Backend override; takes precedence over the YAML config when set.
	APIBaseURL string `json:"api_base_url,omitempty"`

	// UI settings
	Theme string `json:"theme,omitempty"` // dark, light, auto

	// Logging gate (read independently by the logging package)
	Logging *UserLoggingConfig `json:"logging,omitempty"`
}

// UserLoggingConfig mirrors the logging section consumed by the
// logging package. Field names must stay in sync with it.
type UserLoggingConfig struct {
	DebugMode  bool            `json:"debug_mode,omitempty"`
	Categories map[string]bool `json:"categories,omitempty"`
	Level      string          `json:"level,omitempty"`
}

// UserConfigDir returns the directory for per-user state. A .chief
// directory in the working directory wins; otherwise the home
// directory is used so the token survives across projects.
func UserConfigDir() string {
	if info, err := os.Stat(".chief"); err == nil && info.IsDir() {
		return ".chief"
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chief"
	}
	return filepath.Join(home, ".chief")
}

// DefaultUserConfigPath returns the default path to .chief/config.json.
func DefaultUserConfigPath() string {
	return filepath.Join(UserConfigDir(), "config.json")
}

// LoadUserConfig loads configuration from .chief/config.json.
func LoadUserConfig(path string) (*UserConfig, error) {
	cfg := &UserConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return empty config if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read user config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse user config: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to .chief/config.json.
func (c *UserConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	return nil
}

// ClearToken drops the stored session and persists the change.
func (c *UserConfig) ClearToken(path string) error {
	c.Token = ""
	c.Email = ""
	return c.Save(path)
}
