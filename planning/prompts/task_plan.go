package prompts

import (
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
)

// TaskPlanSystemPrompt describes the task planner contract. The user message is
// always a JSON-encoded TaskPlanInput.
const TaskPlanSystemPrompt = "You are the Treespora Task Planner agent.\n" +
	"- The user message will ALWAYS be a JSON payload describing TaskPlanPrompt.\n" +
	"- Respond ONLY with JSON following the schema:\n" +
	"{goal_id, plan_id, version, summary, time_horizon_days, " +
	"daily_time_commitment_minutes, start_date, days:[{day_index,label,focus," +
	"tasks:[{description,estimated_minutes}]}]}.\n" +
	"- Cover every calendar day from start_date to target_date inclusively.\n" +
	"- Each day must include 1-3 actionable tasks with durations between 5 and 60 minutes.\n" +
	"- Ensure total daily effort stays within the provided daily_time_commitment_minutes.\n" +
	"- NEVER modify plan_summary; keep it identical in the output summary field.\n" +
	"- Always produce short, clear, user-friendly task descriptions."

// TaskPlanInput is the payload the task planner receives.
// PlanSummary is read-only context; the planner must echo it unchanged.
type TaskPlanInput struct {
	GoalID                     string     `json:"goal_id"`
	PlanID                     string     `json:"plan_id"`
	GoalTitle                  string     `json:"goal_title"`
	GoalDescription            *string    `json:"goal_description"`
	GoalCategory               *string    `json:"goal_category"`
	StartDate                  civil.Date `json:"start_date"`
	TargetDate                 civil.Date `json:"target_date"`
	PlanSummary                string     `json:"plan_summary"`
	EstimatedDurationDays      *int       `json:"estimated_duration_days"`
	DailyTimeCommitmentMinutes int        `json:"daily_time_commitment_minutes"`
	UserLanguage               *string    `json:"user_language"`
	UserContext                *string    `json:"user_context"`
}

// TaskPlanUserPrompt renders the input as the JSON user message.
// An empty GoalTitle is sent as "Untitled goal".
func TaskPlanUserPrompt(in TaskPlanInput) (string, error) {
	if in.GoalTitle == "" {
		in.GoalTitle = untitledGoal
	}
	data, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("marshal task plan prompt: %w", err)
	}
	return string(data), nil
}
