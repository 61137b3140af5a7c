package planning

import (
	"fmt"
	"regexp"
	"strings"

	"cloud.google.com/go/civil"
)

var dailyTimePattern = regexp.MustCompile(`(?i)Daily time:\s*(.+?)(?:\n|$)`)

// ParseDailyTime reads the "Daily time: ..." marker from a goal description.
// It returns 0 when the marker is absent, says "Let AI decide", or is not recognized.
//
//	"Daily time: 10 minutes"      -> 10
//	"Daily time: 15–30 minutes"   -> 30
//	"Daily time: 30–60 minutes"   -> 60
//	"Daily time: 1 hour or more"  -> 90
func ParseDailyTime(description string) int {
	m := dailyTimePattern.FindStringSubmatch(description)
	if m == nil {
		return 0
	}
	value := strings.ToLower(strings.TrimSpace(m[1]))

	switch {
	case strings.Contains(value, "let ai decide"):
		return 0
	case strings.Contains(value, "10 minute"):
		return 10
	case strings.Contains(value, "15") && strings.Contains(value, "30"):
		return 30
	case strings.Contains(value, "30") && strings.Contains(value, "60"):
		return 60
	case strings.Contains(value, "hour") || strings.Contains(value, "60"):
		return 90
	}
	return 0
}

// DelegatesDuration reports whether the user left the completion date to the assistant.
func DelegatesDuration(description string) bool {
	d := strings.ToLower(description)
	return strings.Contains(d, "preferred completion") && strings.Contains(d, "let ai decide")
}

// ResolveTargetDate picks the target date for a freshly summarized goal.
// A delegated goal with a positive estimate always gets today+estimate-1, even
// when a target date already exists. Otherwise the existing target wins, then
// the estimate, then defaultDays.
func ResolveTargetDate(goal *Goal, estimatedDays *int, today civil.Date, defaultDays int) civil.Date {
	estimate := 0
	if estimatedDays != nil {
		estimate = *estimatedDays
	}
	if estimate > 0 && DelegatesDuration(goal.Description) {
		return today.AddDays(estimate - 1)
	}
	if !goal.TargetDate.IsZero() {
		return goal.TargetDate
	}
	if estimate > 0 {
		return today.AddDays(estimate - 1)
	}
	return today.AddDays(defaultDays - 1)
}

// ScheduleInput collects every date source a task plan may start or end on.
// Zero dates and non-positive horizons are treated as unknown.
type ScheduleInput struct {
	Override     civil.Date
	GoalStart    civil.Date
	PayloadStart civil.Date
	PlanTarget   civil.Date
	GoalTarget   civil.Date
	Horizon      int
	DefaultDays  int
	Today        civil.Date
}

// Schedule is the resolved day range of a task plan, both ends inclusive.
type Schedule struct {
	Start  civil.Date
	Target civil.Date
}

// ExpectedDays is the inclusive day count, never less than one.
func (s Schedule) ExpectedDays() int {
	return max(s.Target.DaysSince(s.Start)+1, 1)
}

// ResolveSchedule resolves start and target dates.
//
// Start: override, goal start, payload start, target-(horizon-1), today.
// Target: plan target, goal target, start+(horizon or default)-1.
func ResolveSchedule(in ScheduleInput) (Schedule, error) {
	start := firstDate(in.Override, in.GoalStart, in.PayloadStart)
	target := firstDate(in.PlanTarget, in.GoalTarget)

	if start.IsZero() && !target.IsZero() && in.Horizon > 0 {
		start = target.AddDays(-(in.Horizon - 1))
	}
	if start.IsZero() {
		start = in.Today
	}
	if target.IsZero() {
		horizon := in.Horizon
		if horizon <= 0 {
			horizon = in.DefaultDays
		}
		if horizon <= 0 {
			return Schedule{}, fmt.Errorf("%w: no target date and no horizon to derive one", ErrTargetDateMissing)
		}
		target = start.AddDays(horizon - 1)
	}
	return Schedule{Start: start, Target: target}, nil
}

func firstDate(dates ...civil.Date) civil.Date {
	for _, d := range dates {
		if !d.IsZero() {
			return d
		}
	}
	return civil.Date{}
}

// ParseDate parses a stored or LLM-provided date. Datetime strings are cut to
// their date part. Anything unparseable yields the zero date.
func ParseDate(s string) civil.Date {
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		s = s[:10]
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}
	}
	return d
}
