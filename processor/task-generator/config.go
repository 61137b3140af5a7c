package taskgenerator

import (
	"fmt"
	"time"

	"github.com/treespora/planner/config"
	"github.com/treespora/planner/planning"
)

// Config holds configuration for the task plan generator and its trigger.
type Config struct {
	// DefaultDurationDays sizes the plan when neither a target date nor a horizon is known.
	DefaultDurationDays int

	// DefaultDailyMinutes is the daily budget when the plan payload has none.
	DefaultDailyMinutes int

	// Async runs best-effort generation on the Dispatcher instead of inline.
	Async bool

	// QueueSize bounds pending background generations.
	QueueSize int

	// Timeout bounds one background generation.
	Timeout time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		DefaultDurationDays: planning.DefaultDurationDays,
		DefaultDailyMinutes: planning.DefaultDailyMinutes,
		QueueSize:           16,
		Timeout:             2 * time.Minute,
	}
}

// ConfigFrom extracts the generator settings from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		DefaultDurationDays: cfg.Planning.DefaultDurationDays,
		DefaultDailyMinutes: cfg.TaskPlan.DefaultDailyMinutes,
		Async:               cfg.TaskPlan.Async,
		QueueSize:           cfg.TaskPlan.QueueSize,
		Timeout:             cfg.TaskPlan.Timeout,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DefaultDurationDays < 1 {
		return fmt.Errorf("default_duration_days must be at least 1")
	}
	if c.DefaultDailyMinutes < planning.MinDailyMinutes || c.DefaultDailyMinutes > planning.MaxDailyMinutes {
		return fmt.Errorf("default_daily_minutes must be between %d and %d",
			planning.MinDailyMinutes, planning.MaxDailyMinutes)
	}
	if c.Async && c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be positive when async is enabled")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
