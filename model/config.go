package model

// RegistryConfig is the serialized form of the registry, found under the
// "llm" key of the service configuration file.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `yaml:"capabilities" json:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `yaml:"endpoints" json:"endpoints"`
}

// DefaultRegistryConfig returns the configuration behind NewDefaultRegistry.
func DefaultRegistryConfig() RegistryConfig {
	return NewDefaultRegistry().ToConfig()
}

// FromConfig converts a RegistryConfig to a Registry.
// Unknown capability keys are kept as-is so they can be reported by Validate callers.
func FromConfig(cfg RegistryConfig) *Registry {
	caps := make(map[Capability]*CapabilityConfig, len(cfg.Capabilities))
	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" {
			c = Capability(k)
		}
		caps[c] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(cfg.Endpoints))
	for k, v := range cfg.Endpoints {
		endpoints[k] = v
	}
	return NewRegistry(caps, endpoints)
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		cp := *v
		caps[string(k)] = &cp
	}
	endpoints := make(map[string]*EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		cp := *v
		endpoints[k] = &cp
	}
	return RegistryConfig{Capabilities: caps, Endpoints: endpoints}
}
