package model

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestFromConfigYAML(t *testing.T) {
	data := []byte(`
endpoints:
  gemini-flash:
    provider: gemini
    model: gemini-2.0-flash
    api_key: secret
capabilities:
  summary:
    endpoint: gemini-flash
    timeout: 20s
  task_plan:
    endpoint: gemini-flash
    timeout: 2m
`)
	var cfg RegistryConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	r := FromConfig(cfg)
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	res, err := r.Resolve(CapabilityTaskPlan)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Timeout != 2*time.Minute {
		t.Errorf("timeout = %v, want 2m", res.Timeout)
	}
	if res.Endpoint.APIKey != "secret" || res.Endpoint.Provider != "gemini" {
		t.Errorf("endpoint = %+v", res.Endpoint)
	}
}

func TestToConfigCopies(t *testing.T) {
	r := NewDefaultRegistry()
	cfg := r.ToConfig()
	cfg.Endpoints["deepseek"].Model = "changed"

	if got := r.ModelName(CapabilitySummary); got != "deepseek-chat" {
		t.Errorf("ToConfig should not alias registry state, model = %q", got)
	}

	again := FromConfig(DefaultRegistryConfig())
	if again.ModelName(CapabilityTaskPlan) != "deepseek-chat" {
		t.Error("round trip through DefaultRegistryConfig lost the endpoint")
	}
}
