package model

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUnknownCapability is returned when no configuration exists for a capability.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrUnknownEndpoint is returned when a capability references a missing endpoint.
	ErrUnknownEndpoint = errors.New("unknown endpoint")
)

// Registry maps capabilities to endpoints.
// A Registry is built once at startup and handed to the LLM client.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
}

// CapabilityConfig binds a capability to an endpoint and its call budget.
type CapabilityConfig struct {
	// Endpoint names the entry in the endpoints map.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Timeout bounds a single call. Zero means the capability default.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Temperature is passed through when set.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// MaxTokens caps the completion length when positive.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the provider implementation (openai, gemini).
	Provider string `yaml:"provider" json:"provider"`

	// URL is the API base URL. Empty uses the provider default.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model" json:"model"`

	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key,omitempty" json:"-"`
}

// Resolved is the effective configuration for one call.
type Resolved struct {
	Capability   Capability
	EndpointName string
	Endpoint     EndpointConfig
	Timeout      time.Duration
	Temperature  *float64
	MaxTokens    int
}

// NewRegistry creates a new model registry with the given configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{capabilities: caps, endpoints: endpoints}
}

// NewDefaultRegistry creates a registry pointing both capabilities at DeepSeek.
func NewDefaultRegistry() *Registry {
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilitySummary:  {Endpoint: "deepseek", Timeout: DefaultSummaryTimeout},
			CapabilityTaskPlan: {Endpoint: "deepseek", Timeout: DefaultTaskPlanTimeout},
		},
		map[string]*EndpointConfig{
			"deepseek": {
				Provider: "openai",
				URL:      "https://api.deepseek.com",
				Model:    "deepseek-chat",
			},
		},
	)
}

// Resolve returns the endpoint and budget for a capability.
func (r *Registry) Resolve(c Capability) (*Resolved, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok || cfg == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, c)
	}
	ep, ok := r.endpoints[cfg.Endpoint]
	if !ok || ep == nil {
		return nil, fmt.Errorf("%w: %q (capability %s)", ErrUnknownEndpoint, cfg.Endpoint, c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = c.DefaultTimeout()
	}
	return &Resolved{
		Capability:   c,
		EndpointName: cfg.Endpoint,
		Endpoint:     *ep,
		Timeout:      timeout,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
	}, nil
}

// ModelName returns the model identifier used for a capability, or empty if unresolvable.
func (r *Registry) ModelName(c Capability) string {
	res, err := r.Resolve(c)
	if err != nil {
		return ""
	}
	return res.Endpoint.Model
}

// Validate checks that every known capability resolves to a usable endpoint.
func (r *Registry) Validate() error {
	for _, c := range []Capability{CapabilitySummary, CapabilityTaskPlan} {
		res, err := r.Resolve(c)
		if err != nil {
			return err
		}
		if res.Endpoint.Provider == "" {
			return fmt.Errorf("endpoint %q: provider is required", res.EndpointName)
		}
		if res.Endpoint.Model == "" {
			return fmt.Errorf("endpoint %q: model is required", res.EndpointName)
		}
	}
	return nil
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = cfg
}

// ListCapabilities returns all configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
