package plansummarizer

import (
	"fmt"

	"github.com/treespora/planner/config"
	"github.com/treespora/planner/planning"
)

// Config holds configuration for the plan summarizer.
type Config struct {
	// DefaultDurationDays sets the target date when the LLM gives no estimate.
	DefaultDurationDays int
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{DefaultDurationDays: planning.DefaultDurationDays}
}

// ConfigFrom extracts the summarizer settings from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{DefaultDurationDays: cfg.Planning.DefaultDurationDays}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DefaultDurationDays < 1 {
		return fmt.Errorf("default_duration_days must be at least 1")
	}
	return nil
}
