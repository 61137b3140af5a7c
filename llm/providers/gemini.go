package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/model"
)

// GeminiName is the provider name for the Gemini API.
const GeminiName = "gemini"

func init() {
	llm.RegisterProvider(GeminiName, NewGeminiProvider)
}

// GeminiProvider calls Models.GenerateContent on the Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider builds a provider for one endpoint. A non-empty URL overrides the API base URL.
func NewGeminiProvider(ep model.EndpointConfig, httpClient *http.Client) (llm.Provider, error) {
	if ep.APIKey == "" {
		return nil, fmt.Errorf("gemini provider: API key is missing")
	}

	cfg := &genai.ClientConfig{
		APIKey:     ep.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if ep.URL != "" {
		cfg.HTTPOptions.BaseURL = ep.URL
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return GeminiName
}

// Complete sends one GenerateContent request. System messages become the system instruction.
func (p *GeminiProvider) Complete(ctx context.Context, call llm.Call) (*llm.Response, error) {
	cfg := &genai.GenerateContentConfig{}
	var system []string
	var contents []*genai.Content
	for _, m := range call.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if call.Temperature != nil {
		t := float32(*call.Temperature)
		cfg.Temperature = &t
	}
	if call.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(call.MaxTokens)
	}
	if call.JSONMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := p.client.Models.GenerateContent(ctx, call.Model, contents, cfg)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	out := &llm.Response{
		Content: strings.TrimSpace(resp.Text()),
		Model:   call.Model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func mapGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return llm.NewHTTPError(apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code != 0 {
		return llm.NewHTTPError(apiErrPtr.Code, err)
	}
	return err
}
