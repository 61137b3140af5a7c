package testutil

import (
	"time"

	"github.com/treespora/planner/model"
)

// MockModel is the model name reported for calls routed through Registry.
const MockModel = "mock-chat"

// Registry returns a registry routing both capabilities to the mock provider.
// A zero timeout keeps the capability defaults.
func Registry(timeout time.Duration) *model.Registry {
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilitySummary:  {Endpoint: "mock", Timeout: timeout},
			model.CapabilityTaskPlan: {Endpoint: "mock", Timeout: timeout},
		},
		map[string]*model.EndpointConfig{
			"mock": {Provider: ProviderName, Model: MockModel},
		},
	)
}
