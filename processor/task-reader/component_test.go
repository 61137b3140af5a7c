package taskreader

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treespora/planner/planning"
	"github.com/treespora/planner/storage"
	"github.com/treespora/planner/storage/storagetest"
)

func seed(t *testing.T) (*storage.Store, *planning.Goal, *planning.Plan) {
	t.Helper()
	ctx := context.Background()
	s := storagetest.Open(t, 0, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))

	goal := &planning.Goal{Title: "Learn Spanish"}
	require.NoError(t, s.CreateGoal(ctx, goal))
	plan, err := s.CreatePlanVersion(ctx, storage.NewPlanVersion{GoalID: goal.ID, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	result := &planning.TaskPlanResult{
		GoalID:          goal.ID,
		PlanID:          plan.ID,
		Version:         plan.Version,
		TimeHorizonDays: 2,
		StartDate:       civil.Date{Year: 2025, Month: time.March, Day: 1},
		Days: []planning.TaskPlanDay{
			{DayIndex: 0, Label: "Day 1", Focus: "Sounds", Tasks: []planning.TaskPlanTask{
				{Description: "Alphabet", EstimatedMinutes: 10},
				{Description: "Vowels", EstimatedMinutes: 15},
			}},
			{DayIndex: 1, Label: "Day 2", Focus: "Words", Tasks: []planning.TaskPlanTask{
				{Description: "Greetings", EstimatedMinutes: 20},
			}},
		},
	}
	_, err = s.ReplaceTaskPlan(ctx, storage.TaskPlanWrite{
		PlanID:     plan.ID,
		GoalID:     goal.ID,
		Payload:    json.RawMessage(`{}`),
		TargetDate: result.LastPlannedDate(),
		Result:     result,
		Extended:   true,
	})
	require.NoError(t, err)
	return s, goal, plan
}

func TestTasksForDay(t *testing.T) {
	s, goal, plan := seed(t)
	c := NewComponent(s, nil)

	got, err := c.TasksForDay(context.Background(), goal.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, goal.ID, got.GoalID)
	assert.Equal(t, plan.ID, got.PlanID)
	assert.Equal(t, 0, got.DayIndex)
	require.Len(t, got.Tasks, 2)
	assert.Equal(t, "Alphabet", got.Tasks[0].Description)
	assert.Equal(t, 10, got.Tasks[0].EstimatedMinutes)
	assert.Equal(t, "Vowels", got.Tasks[1].Description)
	assert.Nil(t, got.Tasks[0].CompletedAt)
	assert.NotEmpty(t, got.Tasks[0].ID)
}

func TestTasksForDay_BeyondPlanIsEmpty(t *testing.T) {
	s, goal, _ := seed(t)
	c := NewComponent(s, nil)

	got, err := c.TasksForDay(context.Background(), goal.ID, 2)
	require.NoError(t, err)
	assert.NotNil(t, got.Tasks)
	assert.Empty(t, got.Tasks)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tasks":[]`)
}

func TestTasksForDay_Errors(t *testing.T) {
	s, goal, _ := seed(t)
	c := NewComponent(s, nil)
	ctx := context.Background()

	_, err := c.TasksForDay(ctx, goal.ID, -1)
	assert.ErrorIs(t, err, planning.ErrValidation)

	_, err = c.TasksForDay(ctx, "6b0f8a52-8f0e-4a86-9d0f-3b1b2f3c4d5e", 0)
	assert.ErrorIs(t, err, planning.ErrActivePlanNotFound)
}

func TestTasksForDay_ShowsCompletion(t *testing.T) {
	s, goal, _ := seed(t)
	c := NewComponent(s, nil)
	ctx := context.Background()

	day, err := c.TasksForDay(ctx, goal.ID, 1)
	require.NoError(t, err)
	require.Len(t, day.Tasks, 1)
	require.NoError(t, s.CompleteTask(ctx, day.Tasks[0].ID))

	day, err = c.TasksForDay(ctx, goal.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, day.Tasks[0].CompletedAt)
}
