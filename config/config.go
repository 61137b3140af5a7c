// Package config provides configuration loading and management for the planner service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/treespora/planner/model"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config represents the complete service configuration.
type Config struct {
	App      AppConfig            `yaml:"app"`
	HTTP     HTTPConfig           `yaml:"http"`
	Database DatabaseConfig       `yaml:"database"`
	LLM      model.RegistryConfig `yaml:"llm"`
	Planning PlanningConfig       `yaml:"planning"`
	TaskPlan TaskPlanConfig       `yaml:"task_plan"`
	NATS     NATSConfig           `yaml:"nats"`
	Log      LogConfig            `yaml:"log"`
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`

	// APIPrefix is prepended to goal routes. /health and /metrics stay at the root.
	APIPrefix string `yaml:"api_prefix"`

	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	// Driver is postgres or sqlite.
	Driver       string `yaml:"driver"`
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// PlanningConfig holds domain defaults.
type PlanningConfig struct {
	DefaultDurationDays int `yaml:"default_duration_days"`
}

// TaskPlanConfig configures the best-effort generation that follows a new summary.
type TaskPlanConfig struct {
	// Async hands generation to a background worker instead of running it inline.
	Async     bool `yaml:"async"`
	QueueSize int  `yaml:"queue_size"`

	// Timeout bounds one background generation, LLM call included.
	Timeout time.Duration `yaml:"timeout"`

	DefaultDailyMinutes int `yaml:"default_daily_minutes"`
}

// NATSConfig configures the optional event publisher.
type NATSConfig struct {
	// URL is the NATS server URL (empty = events disabled)
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "Treespora Backend",
			Environment: "development",
		},
		HTTP: HTTPConfig{
			Addr:            ":8000",
			APIPrefix:       "/v1",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    3 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			URL:          "file:treespora.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
			MaxOpenConns: 10,
		},
		LLM: model.DefaultRegistryConfig(),
		Planning: PlanningConfig{
			DefaultDurationDays: 30,
		},
		TaskPlan: TaskPlanConfig{
			Async:               false,
			QueueSize:           16,
			Timeout:             2 * time.Minute,
			DefaultDailyMinutes: 30,
		},
		NATS: NATSConfig{
			SubjectPrefix: "treespora",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Registry builds the model registry described by the llm section.
func (c *Config) Registry() *model.Registry {
	return model.FromConfig(c.LLM)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Planning.DefaultDurationDays < 1 {
		return fmt.Errorf("planning.default_duration_days must be at least 1")
	}
	if c.TaskPlan.DefaultDailyMinutes < 5 || c.TaskPlan.DefaultDailyMinutes > 300 {
		return fmt.Errorf("task_plan.default_daily_minutes must be between 5 and 300")
	}
	if c.TaskPlan.Async && c.TaskPlan.QueueSize < 1 {
		return fmt.Errorf("task_plan.queue_size must be positive when async is enabled")
	}

	registry := c.Registry()
	if err := registry.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	var inline time.Duration
	for _, capability := range []model.Capability{model.CapabilitySummary, model.CapabilityTaskPlan} {
		res, _ := registry.Resolve(capability)
		if c.HTTP.WriteTimeout > 0 && c.HTTP.WriteTimeout < res.Timeout {
			return fmt.Errorf("http.write_timeout (%s) must cover the %s timeout (%s)", c.HTTP.WriteTimeout, capability, res.Timeout)
		}
		inline += res.Timeout
	}
	// Inline task generation runs inside the summary request.
	if !c.TaskPlan.Async && c.HTTP.WriteTimeout > 0 && c.HTTP.WriteTimeout < inline {
		return fmt.Errorf("http.write_timeout (%s) must cover the summary and task_plan timeouts combined (%s) unless task_plan.async is set",
			c.HTTP.WriteTimeout, inline)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := config.overlayFile(path); err != nil {
		return nil, err
	}
	return config, nil
}

// overlayFile decodes a YAML file onto the receiver; keys absent from the file keep their values.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(ExpandEnv(data), c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
