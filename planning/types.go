// Package planning holds the goal-planning domain: goals, versioned plans,
// day-by-day task plans, and the pure rules that resolve dates, repair and
// normalize LLM output, and merge task plans into stored plan payloads.
package planning

import (
	"encoding/json"
	"time"

	"cloud.google.com/go/civil"
)

// Planning defaults.
const (
	DefaultDurationDays = 30
	DefaultDailyMinutes = 30
	MinDailyMinutes     = 5
	MaxDailyMinutes     = 300

	MinTaskMinutes = 5
	MaxTaskMinutes = 60
	MaxTasksPerDay = 3
)

// Stored task tags written with the extended task schema.
const (
	TaskTypeCore      = "core"
	TaskStatusPending = "pending"
)

// Goal is the user objective the service plans around.
// Zero dates mean "not set".
type Goal struct {
	ID            string
	UserID        string
	Title         string
	Description   string
	Category      string
	TargetDate    civil.Date
	StartDate     civil.Date
	CurrentPlanID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Profile is the owning user's profile.
type Profile struct {
	ID           string
	Age          *int
	LanguageCode string
}

// Plan is one stored version of a goal's plan.
type Plan struct {
	ID         string
	GoalID     string
	Version    int
	ModelName  string
	Payload    json.RawMessage
	Summary    string
	TargetDate civil.Date
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PlanPhase is one ordered phase of a plan summary.
type PlanPhase struct {
	Name      string  `json:"name"`
	Focus     string  `json:"focus"`
	DaysRange *string `json:"days_range"`
}

// SummaryResult is the LLM's plan summary.
type SummaryResult struct {
	Overview              string      `json:"overview"`
	Phases                []PlanPhase `json:"phases"`
	EstimatedDurationDays *int        `json:"estimated_duration_days"`
}

// Summary is the plan summary returned to clients.
type Summary struct {
	GoalID                string      `json:"goal_id"`
	Overview              string      `json:"overview"`
	Phases                []PlanPhase `json:"phases"`
	EstimatedDurationDays *int        `json:"estimated_duration_days"`
}

// TaskPlanResult is the full day-by-day plan stored alongside the summary.
type TaskPlanResult struct {
	GoalID                     string        `json:"goal_id"`
	PlanID                     string        `json:"plan_id"`
	Version                    int           `json:"version"`
	Summary                    string        `json:"summary"`
	TimeHorizonDays            int           `json:"time_horizon_days"`
	DailyTimeCommitmentMinutes int           `json:"daily_time_commitment_minutes"`
	StartDate                  civil.Date    `json:"start_date"`
	Days                       []TaskPlanDay `json:"days"`
}

// TaskPlanDay is one calendar day of a task plan. DayIndex is relative to StartDate.
type TaskPlanDay struct {
	DayIndex int            `json:"day_index"`
	Label    string         `json:"label"`
	Focus    string         `json:"focus"`
	Tasks    []TaskPlanTask `json:"tasks"`
}

// TaskPlanTask is a single actionable task.
type TaskPlanTask struct {
	Description      string `json:"description"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

// TaskCount returns the number of tasks across all days.
func (r *TaskPlanResult) TaskCount() int {
	n := 0
	for _, d := range r.Days {
		n += len(d.Tasks)
	}
	return n
}

// DailyTask is a stored task as returned by the day reader.
type DailyTask struct {
	ID               string     `json:"id"`
	Description      string     `json:"description"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	CompletedAt      *time.Time `json:"completed_at"`
}

// DayTasks is the ordered task list for one day of a plan.
type DayTasks struct {
	GoalID   string      `json:"goal_id"`
	PlanID   string      `json:"plan_id"`
	DayIndex int         `json:"day_index"`
	Tasks    []DailyTask `json:"tasks"`
}
