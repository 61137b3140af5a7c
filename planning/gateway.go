package planning

import (
	"context"
	"errors"
	"log/slog"

	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/model"
	"github.com/treespora/planner/planning/prompts"
)

// Completer is the part of llm.Client the gateway needs.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
	ModelName(capability model.Capability) string
}

// Gateway turns planning prompts into typed results. Every failure is an
// *llm.Error: transport kinds come from the client, KindNotJSON and
// KindInvalidPayload from parsing here. It never retries.
type Gateway struct {
	client Completer
	logger *slog.Logger
}

// NewGateway creates a gateway over an LLM client.
func NewGateway(client Completer, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{client: client, logger: logger}
}

// SummaryModel returns the model name recorded on new plan versions.
func (g *Gateway) SummaryModel() string {
	return g.client.ModelName(model.CapabilitySummary)
}

// GenerateSummary asks for overview, phases and an estimated duration.
func (g *Gateway) GenerateSummary(ctx context.Context, in prompts.SummaryInput) (*SummaryResult, error) {
	obj, err := g.completeObject(ctx, model.CapabilitySummary, prompts.SummarySystemPrompt, prompts.SummaryUserPrompt(in))
	if err != nil {
		return nil, err
	}
	result, err := DecodeSummary(obj)
	if err != nil {
		return nil, invalidPayload(model.CapabilitySummary, "LLM response payload is invalid", err)
	}
	return result, nil
}

// GenerateTaskPlan asks for the day-by-day plan. Task durations are repaired
// before validation so out-of-range minutes never fail the call.
func (g *Gateway) GenerateTaskPlan(ctx context.Context, in prompts.TaskPlanInput) (*TaskPlanResult, error) {
	user, err := prompts.TaskPlanUserPrompt(in)
	if err != nil {
		return nil, &llm.Error{Kind: llm.KindRequestFailed, Capability: string(model.CapabilityTaskPlan), Message: "build task plan prompt", Err: err}
	}
	obj, err := g.completeObject(ctx, model.CapabilityTaskPlan, prompts.TaskPlanSystemPrompt, user)
	if err != nil {
		return nil, err
	}
	result, err := DecodeTaskPlan(RepairTaskPlan(obj))
	if err != nil {
		g.logger.Warn("Task plan payload rejected",
			"goal_id", in.GoalID,
			"plan_id", in.PlanID,
			"error", err)
		return nil, invalidPayload(model.CapabilityTaskPlan, "Task plan payload is invalid", err)
	}
	return result, nil
}

func (g *Gateway) completeObject(ctx context.Context, capability model.Capability, system, user string) (map[string]any, error) {
	resp, err := g.client.Complete(ctx, llm.Request{
		Capability: capability,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	obj, err := llm.ParseObject(resp.Content)
	if err != nil {
		var llmErr *llm.Error
		if errors.As(err, &llmErr) {
			llmErr.Capability = string(capability)
		}
		g.logger.Warn("LLM response was not JSON",
			"request_id", resp.RequestID,
			"capability", capability,
			"model", resp.Model)
		return nil, err
	}
	return obj, nil
}

func invalidPayload(capability model.Capability, msg string, err error) error {
	return &llm.Error{Kind: llm.KindInvalidPayload, Capability: string(capability), Message: msg, Err: err}
}
