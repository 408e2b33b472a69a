// Package config provides configuration loading and management for quickjot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete quickjot configuration.
type Config struct {
	Model    ModelConfig           `yaml:"model"`
	Database DatabaseConfig        `yaml:"database"`
	Server   ServerConfig          `yaml:"server"`
	Pricing  map[string]ModelPrice `yaml:"pricing"`
	Enhance  EnhanceConfig         `yaml:"enhance"`
}

// ModelConfig configures the LLM endpoint.
type ModelConfig struct {
	// Provider is the registered provider name ("openai", "ollama", "anthropic").
	Provider string `yaml:"provider"`
	// Endpoint is the provider base URL (empty = provider default).
	Endpoint string `yaml:"endpoint"`
	// Name is the model to use (e.g., "gpt-4o").
	Name string `yaml:"name"`
	// Temperature controls randomness (0 = deterministic, the default for
	// classification).
	Temperature float64 `yaml:"temperature"`
	// Timeout is the wall-clock budget for one provider call.
	Timeout time.Duration `yaml:"timeout"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite file path.
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address (e.g., ":8080").
	Addr string `yaml:"addr"`
	// Version is reported by /api/health.
	Version string `yaml:"version"`
	// RateLimits overrides the per-endpoint requests-per-minute budgets.
	RateLimits map[string]int `yaml:"rate_limits"`
	// AllowedEmails restricts access when fronted by an authenticating
	// proxy that forwards the user's email. Empty allows everyone.
	AllowedEmails []string `yaml:"allowed_emails"`
}

// ModelPrice is the per-1K-token USD price for one model.
type ModelPrice struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// EnhanceConfig configures the reading-enhancement fallback.
type EnhanceConfig struct {
	// FetchTitles enables fetching the page with readability when the
	// LLM enhancement call fails.
	FetchTitles bool `yaml:"fetch_titles"`
	// FetchTimeout bounds the page fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o",
			Temperature: 0,
			Timeout:     30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "quickjot.db",
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Version: "development",
		},
		Pricing: map[string]ModelPrice{},
		Enhance: EnhanceConfig{
			FetchTitles:  false,
			FetchTimeout: 10 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return nil
}

// Merge merges another config into this one (other takes precedence for
// non-zero values).
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Model
	if other.Model.Provider != "" {
		c.Model.Provider = other.Model.Provider
	}
	if other.Model.Endpoint != "" {
		c.Model.Endpoint = other.Model.Endpoint
	}
	if other.Model.Name != "" {
		c.Model.Name = other.Model.Name
	}
	if other.Model.Temperature != 0 {
		c.Model.Temperature = other.Model.Temperature
	}
	if other.Model.Timeout != 0 {
		c.Model.Timeout = other.Model.Timeout
	}

	// Database
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.Version != "" {
		c.Server.Version = other.Server.Version
	}
	if len(other.Server.RateLimits) > 0 {
		c.Server.RateLimits = other.Server.RateLimits
	}
	if len(other.Server.AllowedEmails) > 0 {
		c.Server.AllowedEmails = other.Server.AllowedEmails
	}

	// Pricing
	for model, price := range other.Pricing {
		c.Pricing[model] = price
	}

	// Enhance
	if other.Enhance.FetchTitles {
		c.Enhance.FetchTitles = true
	}
	if other.Enhance.FetchTimeout != 0 {
		c.Enhance.FetchTimeout = other.Enhance.FetchTimeout
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
