package config

import (
	"os"
	"strings"

	"github.com/treespora/planner/model"
)

// Environment variables honoured on top of the file configuration.
const (
	EnvDatabaseURL     = "DATABASE_URL"
	EnvDatabaseDriver  = "DATABASE_DRIVER"
	EnvDeepSeekBaseURL = "DEEPSEEK_BASE_URL"
	EnvDeepSeekAPIKey  = "DEEPSEEK_API_KEY"
	EnvDeepSeekModel   = "DEEPSEEK_MODEL"
	EnvEnvironment     = "ENVIRONMENT"
	EnvAppName         = "APP_NAME"
	EnvNATSURL         = "NATS_URL"
	EnvHTTPAddr        = "HTTP_ADDR"
)

// deepSeekEndpoint is the endpoint name the DEEPSEEK_* variables write into.
const deepSeekEndpoint = "deepseek"

// ExpandEnv replaces ${VAR} and ${VAR:-default} references in raw config data.
func ExpandEnv(data []byte) []byte {
	return []byte(os.Expand(string(data), func(ref string) string {
		name, def, hasDefault := strings.Cut(ref, ":-")
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	}))
}

// ApplyEnv overlays environment variables onto the configuration.
// lookup is usually os.LookupEnv; tests pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get(EnvEnvironment); ok {
		c.App.Environment = v
	}
	if v, ok := get(EnvAppName); ok {
		c.App.Name = v
	}
	if v, ok := get(EnvHTTPAddr); ok {
		c.HTTP.Addr = v
	}
	if v, ok := get(EnvNATSURL); ok {
		c.NATS.URL = v
	}

	if v, ok := get(EnvDatabaseURL); ok {
		driver, url := NormalizeDatabaseURL(v)
		c.Database.URL = url
		if driver != "" {
			c.Database.Driver = driver
		}
	}
	if v, ok := get(EnvDatabaseDriver); ok {
		c.Database.Driver = v
	}

	baseURL, hasURL := get(EnvDeepSeekBaseURL)
	apiKey, hasKey := get(EnvDeepSeekAPIKey)
	modelName, hasModel := get(EnvDeepSeekModel)
	if !hasURL && !hasKey && !hasModel {
		return
	}
	ep := c.LLM.Endpoints[deepSeekEndpoint]
	if ep == nil {
		if c.LLM.Endpoints == nil {
			c.LLM.Endpoints = make(map[string]*model.EndpointConfig)
		}
		ep = &model.EndpointConfig{Provider: "openai"}
		c.LLM.Endpoints[deepSeekEndpoint] = ep
	}
	if hasURL {
		ep.URL = baseURL
	}
	if hasKey {
		ep.APIKey = apiKey
	}
	if hasModel {
		ep.Model = modelName
	}
}

// NormalizeDatabaseURL infers the driver from a connection URL and strips
// SQLAlchemy-style driver suffixes such as "postgresql+asyncpg://".
func NormalizeDatabaseURL(raw string) (driver, url string) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		if strings.HasPrefix(raw, "file:") || strings.HasSuffix(raw, ".db") {
			return DriverSQLite, raw
		}
		return "", raw
	}
	base, _, _ := strings.Cut(strings.ToLower(scheme), "+")
	switch base {
	case "postgres", "postgresql":
		return DriverPostgres, "postgres://" + rest
	case "sqlite", "sqlite3":
		// sqlite:///relative.db and sqlite:////absolute.db
		return DriverSQLite, strings.TrimPrefix(rest, "/")
	}
	return "", raw
}
