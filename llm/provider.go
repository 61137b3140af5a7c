package llm

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/treespora/planner/model"
)

// Provider performs chat completions against one configured endpoint.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Complete executes a single call. Implementations map SDK failures onto
	// NewHTTPError/NewTimeoutError/NewRequestError where they can tell them apart.
	Complete(ctx context.Context, call Call) (*Response, error)
}

// Call is a request resolved against an endpoint.
type Call struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   int

	// JSONMode asks the provider to constrain output to a JSON object.
	JSONMode bool
}

// ProviderFactory builds a Provider bound to one endpoint.
type ProviderFactory func(ep model.EndpointConfig, httpClient *http.Client) (Provider, error)

// providerRegistry holds registered provider factories.
var (
	providerRegistry = make(map[string]ProviderFactory)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider factory to the registry.
func RegisterProvider(name string, factory ProviderFactory) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[name] = factory
}

// GetProvider retrieves a provider factory by name.
func GetProvider(name string) ProviderFactory {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
