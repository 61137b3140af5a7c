package planning

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"

	"cloud.google.com/go/civil"
)

// RepairTaskPlan fixes task durations in a raw task plan object before it is
// validated. Non-object days and tasks are dropped. Booleans and non-numbers
// become MinTaskMinutes; numbers are truncated and clamped into
// [MinTaskMinutes, MaxTaskMinutes]. A datetime start_date is cut to its date.
// The input is not modified.
func RepairTaskPlan(raw map[string]any) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	if s, ok := out["start_date"].(string); ok && len(s) > 10 {
		if d := ParseDate(s); !d.IsZero() {
			out["start_date"] = d.String()
		}
	}

	days, ok := raw["days"].([]any)
	if !ok {
		return out
	}
	repaired := make([]any, 0, len(days))
	for _, item := range days {
		day, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if tasks, ok := day["tasks"].([]any); ok {
			day = copyObject(day)
			fixed := make([]any, 0, len(tasks))
			for _, t := range tasks {
				task, ok := t.(map[string]any)
				if !ok {
					continue
				}
				task = copyObject(task)
				task["estimated_minutes"] = clampMinutes(task["estimated_minutes"])
				fixed = append(fixed, task)
			}
			day["tasks"] = fixed
		}
		repaired = append(repaired, day)
	}
	out["days"] = repaired
	return out
}

func copyObject(m map[string]any) map[string]any {
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// clampMinutes clamps in float space so values beyond the int range still land on a bound.
func clampMinutes(v any) int {
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) {
		return MinTaskMinutes
	}
	return int(math.Min(math.Max(math.Trunc(f), MinTaskMinutes), MaxTaskMinutes))
}

// DecodeTaskPlan converts a repaired object into a validated TaskPlanResult.
func DecodeTaskPlan(obj map[string]any) (*TaskPlanResult, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var result TaskPlanResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return &result, nil
}

// Validate checks the task plan shape. Every failure wraps ErrValidation.
func (r *TaskPlanResult) Validate() error {
	var errs []error
	if r.GoalID == "" {
		errs = append(errs, errors.New("goal_id is required"))
	}
	if r.PlanID == "" {
		errs = append(errs, errors.New("plan_id is required"))
	}
	if r.Version < 1 {
		errs = append(errs, fmt.Errorf("version must be >= 1, got %d", r.Version))
	}
	if r.TimeHorizonDays < 1 {
		errs = append(errs, fmt.Errorf("time_horizon_days must be >= 1, got %d", r.TimeHorizonDays))
	}
	if r.DailyTimeCommitmentMinutes < MinDailyMinutes {
		errs = append(errs, fmt.Errorf("daily_time_commitment_minutes must be >= %d, got %d", MinDailyMinutes, r.DailyTimeCommitmentMinutes))
	}
	if r.StartDate.IsZero() || !r.StartDate.IsValid() {
		errs = append(errs, errors.New("start_date is required"))
	}
	if len(r.Days) == 0 {
		errs = append(errs, errors.New("days must not be empty"))
	}
	for i, day := range r.Days {
		if err := day.validate(); err != nil {
			errs = append(errs, fmt.Errorf("days[%d]: %w", i, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrValidation, errors.Join(errs...))
	}
	return nil
}

func (d *TaskPlanDay) validate() error {
	switch {
	case d.DayIndex < 0:
		return fmt.Errorf("day_index must be >= 0, got %d", d.DayIndex)
	case d.Label == "":
		return errors.New("label is required")
	case d.Focus == "":
		return errors.New("focus is required")
	case len(d.Tasks) == 0 || len(d.Tasks) > MaxTasksPerDay:
		return fmt.Errorf("expected 1-%d tasks, got %d", MaxTasksPerDay, len(d.Tasks))
	}
	for j, t := range d.Tasks {
		if t.Description == "" {
			return fmt.Errorf("tasks[%d]: description is required", j)
		}
		if t.EstimatedMinutes < MinTaskMinutes || t.EstimatedMinutes > MaxTaskMinutes {
			return fmt.Errorf("tasks[%d]: estimated_minutes must be within %d-%d, got %d",
				j, MinTaskMinutes, MaxTaskMinutes, t.EstimatedMinutes)
		}
	}
	return nil
}

// Identity is what a normalized task plan is pinned to.
type Identity struct {
	GoalID    string
	PlanID    string
	Version   int
	Summary   string
	StartDate civil.Date
}

// Normalize returns a copy of the task plan with days sorted by day_index,
// reindexed to 0..N-1, cut to expectedDays, and time_horizon_days set to the
// resulting count. Identity fields are overwritten so the stored summary is
// never changed by generation. Both the plan payload and the stored task rows
// are written from this result.
func Normalize(r *TaskPlanResult, id Identity, expectedDays int) *TaskPlanResult {
	out := *r
	out.GoalID = id.GoalID
	out.PlanID = id.PlanID
	out.Version = id.Version
	out.Summary = id.Summary
	if !id.StartDate.IsZero() {
		out.StartDate = id.StartDate
	}

	days := make([]TaskPlanDay, len(r.Days))
	copy(days, r.Days)
	sort.SliceStable(days, func(i, j int) bool {
		return days[i].DayIndex < days[j].DayIndex
	})
	for i := range days {
		days[i].DayIndex = i
	}
	if expectedDays > 0 && len(days) > expectedDays {
		days = days[:expectedDays]
	}
	out.Days = days
	out.TimeHorizonDays = len(days)
	return &out
}

// LastPlannedDate is the calendar date of the plan's final day.
func (r *TaskPlanResult) LastPlannedDate() civil.Date {
	if len(r.Days) == 0 {
		return r.StartDate.AddDays(max(r.TimeHorizonDays, 1) - 1)
	}
	last := 0
	for _, d := range r.Days {
		last = max(last, d.DayIndex)
	}
	return r.StartDate.AddDays(last)
}

// PlannedDate is the calendar date of a day in the plan.
func (r *TaskPlanResult) PlannedDate(dayIndex int) civil.Date {
	return r.StartDate.AddDays(dayIndex)
}

// DecodeSummary converts an LLM summary object into a SummaryResult.
// overview is required; phases default to empty.
func DecodeSummary(obj map[string]any) (*SummaryResult, error) {
	if _, ok := obj["overview"].(string); !ok {
		return nil, fmt.Errorf("%w: overview must be a string", ErrValidation)
	}
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var wire struct {
		Overview              string `json:"overview"`
		EstimatedDurationDays *int   `json:"estimated_duration_days"`
		Phases                []struct {
			Name      *string `json:"name"`
			Focus     *string `json:"focus"`
			DaysRange *string `json:"days_range"`
		} `json:"phases"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	result := &SummaryResult{
		Overview:              wire.Overview,
		EstimatedDurationDays: wire.EstimatedDurationDays,
		Phases:                make([]PlanPhase, 0, len(wire.Phases)),
	}
	for i, ph := range wire.Phases {
		if ph.Name == nil || ph.Focus == nil {
			return nil, fmt.Errorf("%w: phases[%d] needs name and focus", ErrValidation, i)
		}
		result.Phases = append(result.Phases, PlanPhase{Name: *ph.Name, Focus: *ph.Focus, DaysRange: ph.DaysRange})
	}
	return result, nil
}
