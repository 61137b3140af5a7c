// Package llm provides a provider-agnostic LLM client.
// It resolves capabilities through model.Registry, enforces the per-capability
// timeout, classifies failures and records every call. It never retries.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/treespora/planner/model"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client is a provider-agnostic LLM client.
type Client struct {
	registry   *model.Registry
	httpClient *http.Client
	logger     *slog.Logger

	// recorder optionally persists call metadata. If nil, recording is disabled.
	recorder CallRecorder
	observer Observer

	mu        sync.Mutex
	providers map[string]Provider // built providers, keyed by endpoint name
	pinned    map[string]Provider // fixed instances, keyed by provider name
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system", "user", or "assistant"
	Content string `json:"content"` // Message content
}

// Request defines an LLM completion request.
type Request struct {
	// Capability selects the endpoint and timeout budget.
	Capability model.Capability

	// Messages is the chat history to send to the LLM.
	Messages []Message

	// JSONMode asks the provider for a JSON object response.
	JSONMode bool
}

// TokenUsage represents token consumption details for an LLM call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the LLM completion result.
type Response struct {
	// RequestID uniquely identifies this LLM call. Set by Complete().
	RequestID string

	// Content is the first textual content block, trimmed.
	Content string

	// Model is the actual model that was used.
	Model string

	// Usage contains detailed token consumption metrics.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// Observer receives the outcome of every call, typically for metrics.
// outcome is "ok" or an ErrorKind.
type Observer interface {
	ObserveLLMCall(capability, outcome string, duration time.Duration)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client handed to provider factories.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// WithCallRecorder records metadata for every call.
func WithCallRecorder(r CallRecorder) ClientOption {
	return func(client *Client) {
		client.recorder = r
	}
}

// WithObserver reports call outcomes.
func WithObserver(o Observer) ClientOption {
	return func(client *Client) {
		client.observer = o
	}
}

// WithProvider pins a provider instance for every endpoint using the given provider name.
// The registered factory for that name is bypassed.
func WithProvider(name string, p Provider) ClientOption {
	return func(client *Client) {
		client.pinned[name] = p
	}
}

// NewClient creates a new LLM client with the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry: registry,
		// Per-call deadlines come from the capability timeout, not the HTTP client.
		httpClient: &http.Client{},
		logger:     slog.Default(),
		providers:  make(map[string]Provider),
		pinned:     make(map[string]Provider),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ModelName returns the model configured for a capability.
func (c *Client) ModelName(capability model.Capability) string {
	return c.registry.ModelName(capability)
}

// Complete sends one completion request. Failures are returned as *Error.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	capability := string(req.Capability)
	if len(req.Messages) == 0 {
		return nil, &Error{Kind: KindRequestFailed, Capability: capability, Message: "at least one message is required"}
	}

	resolved, err := c.registry.Resolve(req.Capability)
	if err != nil {
		return nil, &Error{Kind: KindRequestFailed, Capability: capability, Message: "resolve capability", Err: err}
	}

	provider, err := c.providerFor(resolved)
	if err != nil {
		return nil, &Error{Kind: KindRequestFailed, Capability: capability, Message: "build provider", Err: err}
	}

	requestID := uuid.New().String()
	startedAt := time.Now()

	callCtx, cancel := context.WithTimeout(ctx, resolved.Timeout)
	defer cancel()

	c.logger.Debug("Sending LLM request",
		"request_id", requestID,
		"capability", capability,
		"provider", resolved.Endpoint.Provider,
		"model", resolved.Endpoint.Model,
		"timeout", resolved.Timeout,
		"messages", len(req.Messages))

	resp, err := provider.Complete(callCtx, Call{
		Model:       resolved.Endpoint.Model,
		Messages:    req.Messages,
		Temperature: resolved.Temperature,
		MaxTokens:   resolved.MaxTokens,
		JSONMode:    req.JSONMode,
	})
	duration := time.Since(startedAt)

	record := &CallRecord{
		RequestID:  requestID,
		Capability: capability,
		Endpoint:   resolved.EndpointName,
		Provider:   resolved.Endpoint.Provider,
		Model:      resolved.Endpoint.Model,
		StartedAt:  startedAt,
		Duration:   duration,
	}

	if err != nil {
		err = classify(err, capability)
		record.ErrorKind = string(KindOf(err))
		record.Error = err.Error()
		c.logger.Warn("LLM call failed",
			"request_id", requestID,
			"capability", capability,
			"model", resolved.Endpoint.Model,
			"kind", record.ErrorKind,
			"duration", duration,
			"error", err)
		c.finish(ctx, record)
		return nil, err
	}

	resp.RequestID = requestID
	if resp.Model == "" {
		resp.Model = resolved.Endpoint.Model
	}
	record.Model = resp.Model
	record.Usage = resp.Usage
	record.FinishReason = resp.FinishReason
	c.finish(ctx, record)

	return resp, nil
}

// finish reports a completed call to the observer and recorder.
// Recording failures are logged but don't affect the call itself.
func (c *Client) finish(ctx context.Context, record *CallRecord) {
	if c.observer != nil {
		outcome := "ok"
		if record.ErrorKind != "" {
			outcome = record.ErrorKind
		}
		c.observer.ObserveLLMCall(record.Capability, outcome, record.Duration)
	}
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordCall(context.WithoutCancel(ctx), record); err != nil {
		c.logger.Warn("Failed to record LLM call",
			"request_id", record.RequestID,
			"capability", record.Capability,
			"error", err)
	}
}

// providerFor returns the provider for an endpoint, building it on first use.
func (c *Client) providerFor(res *model.Resolved) (Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pinned[res.Endpoint.Provider]; ok {
		return p, nil
	}
	if p, ok := c.providers[res.EndpointName]; ok {
		return p, nil
	}

	factory := GetProvider(res.Endpoint.Provider)
	if factory == nil {
		return nil, fmt.Errorf("unknown provider: %s", res.Endpoint.Provider)
	}
	p, err := factory(res.Endpoint, c.httpClient)
	if err != nil {
		return nil, fmt.Errorf("endpoint %s: %w", res.EndpointName, err)
	}
	c.providers[res.EndpointName] = p
	return p, nil
}
