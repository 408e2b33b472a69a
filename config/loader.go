package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file.
	ProjectConfigFile = "quickjot.yaml"
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/quickjot"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/quickjot/config.yaml)
// 3. Project config (quickjot.yaml in the working directory)
// 4. Environment variables (QUICKJOT_DB, QUICKJOT_ADDR)
//
// Provider API keys are not part of the file config; the providers read
// OPENAI_API_KEY / ANTHROPIC_API_KEY directly.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !errors.Is(err, os.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	if _, err := os.Stat(ProjectConfigFile); err == nil {
		if projectConfig, err := LoadFromFile(ProjectConfigFile); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", ProjectConfigFile))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", ProjectConfigFile), slog.String("error", err.Error()))
		}
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overrides config values from environment variables.
func (l *Loader) applyEnv(config *Config) {
	if db := os.Getenv("QUICKJOT_DB"); db != "" {
		config.Database.Path = db
	}
	if addr := os.Getenv("QUICKJOT_ADDR"); addr != "" {
		config.Server.Addr = addr
	}
	if endpoint := os.Getenv("QUICKJOT_MODEL_ENDPOINT"); endpoint != "" {
		config.Model.Endpoint = endpoint
	}
	if model := os.Getenv("QUICKJOT_MODEL"); model != "" {
		config.Model.Name = model
	}
	if provider := os.Getenv("QUICKJOT_PROVIDER"); provider != "" {
		config.Model.Provider = provider
	}
}

// userConfigPath returns the user-level config file path.
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}
