// Package providers contains llm.Provider implementations. Importing it
// registers every provider with the llm package.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/model"
)

// OpenAIName is the provider name for OpenAI-compatible endpoints (DeepSeek, OpenAI, OpenRouter).
const OpenAIName = "openai"

// DefaultOpenAIURL is used when the endpoint has no URL.
const DefaultOpenAIURL = "https://api.openai.com/v1"

func init() {
	llm.RegisterProvider(OpenAIName, NewOpenAIProvider)
}

// OpenAIProvider talks to any OpenAI-compatible chat completions API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider builds a provider for one endpoint.
func NewOpenAIProvider(ep model.EndpointConfig, httpClient *http.Client) (llm.Provider, error) {
	if ep.APIKey == "" {
		return nil, fmt.Errorf("openai provider: API key is missing")
	}

	cfg := openai.DefaultConfig(ep.APIKey)
	cfg.BaseURL = BuildBaseURL(ep.URL)
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}, nil
}

// BuildBaseURL normalizes a configured URL into the SDK base URL.
// A trailing slash or a full /chat/completions path is tolerated.
func BuildBaseURL(baseURL string) string {
	if baseURL == "" {
		return DefaultOpenAIURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return strings.TrimSuffix(baseURL, "/chat/completions")
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return OpenAIName
}

// Complete sends one chat completion request.
func (p *OpenAIProvider) Complete(ctx context.Context, call llm.Call) (*llm.Response, error) {
	req := openai.ChatCompletionRequest{
		Model:     call.Model,
		Messages:  make([]openai.ChatCompletionMessage, 0, len(call.Messages)),
		MaxTokens: call.MaxTokens,
	}
	for _, m := range call.Messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}
	if call.Temperature != nil {
		req.Temperature = float32(*call.Temperature)
	}
	if call.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	out := &llm.Response{
		Model: resp.Model,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = strings.TrimSpace(resp.Choices[0].Message.Content)
		out.FinishReason = string(resp.Choices[0].FinishReason)
	}
	return out, nil
}

func chatRole(role string) string {
	switch role {
	case llm.RoleSystem:
		return openai.ChatMessageRoleSystem
	case llm.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// mapOpenAIError tags non-2xx responses with their status code.
// Everything else is left for the client to classify.
func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return llm.NewHTTPError(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return llm.NewHTTPError(reqErr.HTTPStatusCode, err)
	}
	return err
}
