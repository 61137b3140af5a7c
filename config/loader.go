package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the working-directory config file
	ProjectConfigFile = "treespora.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/treespora"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	lookup func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, lookup: os.LookupEnv}
}

// WithLookup replaces the environment lookup used for overrides.
func (l *Loader) WithLookup(lookup func(string) (string, bool)) *Loader {
	l.lookup = lookup
	return l
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/treespora/config.yaml)
// 3. Project config (treespora.yaml in current or parent directories), or the explicit path
// 4. Environment variables
//
// An explicit path that cannot be read is an error; missing implicit files are skipped.
func (l *Loader) Load(explicitPath string) (*Config, error) {
	config := DefaultConfig()

	if explicitPath != "" {
		if err := config.overlayFile(explicitPath); err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", explicitPath))
	} else {
		l.overlayIfPresent(config, l.userConfigPath(), "user")
		if projectConfigPath := l.findProjectConfig(); projectConfigPath != "" {
			l.overlayIfPresent(config, projectConfigPath, "project")
		} else {
			l.logger.Debug("No project config found")
		}
	}

	config.ApplyEnv(l.lookup)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func (l *Loader) overlayIfPresent(config *Config, path, layer string) {
	if path == "" {
		return
	}
	err := config.overlayFile(path)
	switch {
	case err == nil:
		l.logger.Debug("Loaded "+layer+" config", slog.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
	default:
		l.logger.Warn("Failed to load "+layer+" config", slog.String("path", path), slog.String("error", err.Error()))
	}
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()
	if userConfigPath == "" {
		return "", fmt.Errorf("cannot determine home directory")
	}

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	if err := DefaultConfig().SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for treespora.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
