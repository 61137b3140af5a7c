package planning_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/llm/testutil"
	"github.com/treespora/planner/planning"
	"github.com/treespora/planner/planning/prompts"
)

func newGateway(mock *testutil.MockProvider) *planning.Gateway {
	client := llm.NewClient(testutil.Registry(0), llm.WithProvider(testutil.ProviderName, mock))
	return planning.NewGateway(client, nil)
}

func TestGateway_GenerateSummary(t *testing.T) {
	mock := &testutil.MockProvider{Contents: []string{
		"Sure! Here is the plan:\n```json\n{\"overview\": \"Run 5k\", \"estimated_duration_days\": 21, \"phases\": [{\"name\": \"Base\", \"focus\": \"Walk-run\", \"days_range\": \"1-7\"}]}\n```",
	}}
	gw := newGateway(mock)

	got, err := gw.GenerateSummary(context.Background(), prompts.SummaryInput{GoalTitle: "Run 5k", Language: "en"})
	require.NoError(t, err)
	assert.Equal(t, "Run 5k", got.Overview)
	assert.Equal(t, 21, *got.EstimatedDurationDays)
	require.Len(t, got.Phases, 1)

	call := mock.LastCall()
	require.Len(t, call.Messages, 2)
	assert.Equal(t, llm.RoleSystem, call.Messages[0].Role)
	assert.Equal(t, prompts.SummarySystemPrompt, call.Messages[0].Content)
	assert.Contains(t, call.Messages[1].Content, "Goal title: Run 5k")
	assert.True(t, call.JSONMode)
	assert.Equal(t, testutil.MockModel, gw.SummaryModel())
}

func TestGateway_GenerateSummary_NotJSON(t *testing.T) {
	gw := newGateway(&testutil.MockProvider{Contents: []string{"I cannot help with that."}})

	_, err := gw.GenerateSummary(context.Background(), prompts.SummaryInput{GoalTitle: "x"})
	require.Error(t, err)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.KindNotJSON, llmErr.Kind)
	assert.Equal(t, "summary", llmErr.Capability)
	assert.True(t, llm.IsFatal(err))
}

func TestGateway_GenerateSummary_InvalidPayload(t *testing.T) {
	gw := newGateway(&testutil.MockProvider{Contents: []string{`{"phases": []}`}})

	_, err := gw.GenerateSummary(context.Background(), prompts.SummaryInput{GoalTitle: "x"})
	assert.Equal(t, llm.KindInvalidPayload, llm.KindOf(err))
}

func TestGateway_GenerateSummary_TransportError(t *testing.T) {
	mock := &testutil.MockProvider{Err: llm.NewHTTPError(503, fmt.Errorf("unavailable"))}
	gw := newGateway(mock)

	_, err := gw.GenerateSummary(context.Background(), prompts.SummaryInput{GoalTitle: "x"})
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
	assert.Equal(t, 1, mock.GetCallCount(), "gateway never retries")
}

func TestGateway_GenerateTaskPlan_RepairsMinutes(t *testing.T) {
	mock := &testutil.MockProvider{Contents: []string{`{
		"goal_id": "g-1", "plan_id": "p-1", "version": 1, "summary": "S",
		"time_horizon_days": 1, "daily_time_commitment_minutes": 30, "start_date": "2025-03-01",
		"days": [{"day_index": 0, "label": "Day 1", "focus": "Start", "tasks": [
			{"description": "Long run", "estimated_minutes": 500},
			{"description": "Stretch", "estimated_minutes": true}
		]}]
	}`}}
	gw := newGateway(mock)

	got, err := gw.GenerateTaskPlan(context.Background(), prompts.TaskPlanInput{
		GoalID:                     "g-1",
		PlanID:                     "p-1",
		GoalTitle:                  "Run",
		StartDate:                  civil.Date{Year: 2025, Month: 3, Day: 1},
		TargetDate:                 civil.Date{Year: 2025, Month: 3, Day: 1},
		PlanSummary:                "S",
		DailyTimeCommitmentMinutes: 30,
	})
	require.NoError(t, err)
	require.Len(t, got.Days, 1)
	assert.Equal(t, 60, got.Days[0].Tasks[0].EstimatedMinutes)
	assert.Equal(t, 5, got.Days[0].Tasks[1].EstimatedMinutes)

	call := mock.LastCall()
	assert.Equal(t, prompts.TaskPlanSystemPrompt, call.Messages[0].Content)
	assert.Contains(t, call.Messages[1].Content, `"plan_summary":"S"`)
}

func TestGateway_GenerateTaskPlan_InvalidPayload(t *testing.T) {
	gw := newGateway(&testutil.MockProvider{Contents: []string{`{"goal_id": "g", "days": []}`}})

	_, err := gw.GenerateTaskPlan(context.Background(), prompts.TaskPlanInput{GoalID: "g", PlanID: "p"})
	require.Error(t, err)

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.KindInvalidPayload, llmErr.Kind)
	assert.Equal(t, "task_plan", llmErr.Capability)
	assert.True(t, errors.Is(err, planning.ErrValidation))
}
