package planningapi

import (
	"fmt"
	"strings"

	"github.com/treespora/planner/config"
)

// Config holds configuration for the planning HTTP API.
type Config struct {
	// APIPrefix is prepended to the goal routes, e.g. "/v1". Empty mounts them at the root.
	APIPrefix string

	// ServiceName and Environment are reported by /health.
	ServiceName string
	Environment string
}

// ConfigFrom extracts the API settings from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		APIPrefix:   cfg.HTTP.APIPrefix,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix must start with '/', got %q", c.APIPrefix)
	}
	return nil
}

func (c *Config) prefix() string {
	return strings.TrimSuffix(c.APIPrefix, "/")
}
