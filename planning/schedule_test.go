package planning

import (
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func intPtr(n int) *int { return &n }

func TestParseDailyTime(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        int
	}{
		{"ten minutes", "Daily time: 10 minutes", 10},
		{"fifteen to thirty", "Daily time: 15–30 minutes", 30},
		{"thirty to sixty", "Daily time: 30–60 minutes", 60},
		{"hour or more", "Daily time: 1 hour or more", 90},
		{"let ai decide", "Daily time: Let AI decide", 0},
		{"case insensitive marker", "DAILY TIME: 10 minutes", 10},
		{"marker on later line", "I want to run.\nDaily time: 30–60 minutes\nPreferred completion: 1 month", 60},
		{"absent", "Run a marathon", 0},
		{"unrecognized", "Daily time: whenever", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDailyTime(tt.description))
		})
	}
}

func TestResolveTargetDate(t *testing.T) {
	today := date(2025, 3, 1)
	existing := date(2025, 6, 30)

	tests := []struct {
		name     string
		goal     Goal
		estimate *int
		want     civil.Date
	}{
		{
			name:     "delegated overrides existing target",
			goal:     Goal{Description: "Preferred completion: Let AI decide", TargetDate: existing},
			estimate: intPtr(14),
			want:     date(2025, 3, 14),
		},
		{
			name:     "delegated without estimate keeps existing",
			goal:     Goal{Description: "Preferred completion: Let AI decide", TargetDate: existing},
			estimate: nil,
			want:     existing,
		},
		{
			name:     "existing target wins over estimate",
			goal:     Goal{TargetDate: existing},
			estimate: intPtr(10),
			want:     existing,
		},
		{
			name:     "estimate when no target",
			goal:     Goal{},
			estimate: intPtr(10),
			want:     date(2025, 3, 10),
		},
		{
			name:     "default duration",
			goal:     Goal{},
			estimate: intPtr(0),
			want:     date(2025, 3, 30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTargetDate(&tt.goal, tt.estimate, today, DefaultDurationDays))
		})
	}
}

func TestResolveSchedule(t *testing.T) {
	today := date(2025, 3, 1)

	tests := []struct {
		name       string
		in         ScheduleInput
		wantStart  civil.Date
		wantTarget civil.Date
		wantDays   int
	}{
		{
			name:       "override wins",
			in:         ScheduleInput{Override: date(2025, 4, 1), GoalStart: date(2025, 3, 5), PlanTarget: date(2025, 4, 7), Today: today},
			wantStart:  date(2025, 4, 1),
			wantTarget: date(2025, 4, 7),
			wantDays:   7,
		},
		{
			name:       "goal start before payload start",
			in:         ScheduleInput{GoalStart: date(2025, 3, 5), PayloadStart: date(2025, 3, 9), GoalTarget: date(2025, 3, 11), Today: today},
			wantStart:  date(2025, 3, 5),
			wantTarget: date(2025, 3, 11),
			wantDays:   7,
		},
		{
			name:       "start derived from target and horizon",
			in:         ScheduleInput{PlanTarget: date(2025, 3, 20), Horizon: 10, Today: today},
			wantStart:  date(2025, 3, 11),
			wantTarget: date(2025, 3, 20),
			wantDays:   10,
		},
		{
			name:       "plan target before goal target",
			in:         ScheduleInput{PlanTarget: date(2025, 3, 3), GoalTarget: date(2025, 5, 1), Today: today},
			wantStart:  today,
			wantTarget: date(2025, 3, 3),
			wantDays:   3,
		},
		{
			name:       "target from horizon",
			in:         ScheduleInput{Horizon: 5, DefaultDays: 30, Today: today},
			wantStart:  today,
			wantTarget: date(2025, 3, 5),
			wantDays:   5,
		},
		{
			name:       "target from default",
			in:         ScheduleInput{DefaultDays: 30, Today: today},
			wantStart:  today,
			wantTarget: date(2025, 3, 30),
			wantDays:   30,
		},
		{
			name:       "target before start still yields one day",
			in:         ScheduleInput{Override: date(2025, 3, 10), PlanTarget: date(2025, 3, 1), Today: today},
			wantStart:  date(2025, 3, 10),
			wantTarget: date(2025, 3, 1),
			wantDays:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveSchedule(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, got.Start)
			assert.Equal(t, tt.wantTarget, got.Target)
			assert.Equal(t, tt.wantDays, got.ExpectedDays())
		})
	}
}

func TestResolveSchedule_NoHorizonNoTarget(t *testing.T) {
	_, err := ResolveSchedule(ScheduleInput{Today: date(2025, 3, 1)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTargetDateMissing))
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, date(2025, 3, 1), ParseDate("2025-03-01"))
	assert.Equal(t, date(2025, 3, 1), ParseDate("2025-03-01T10:30:00Z"))
	assert.Equal(t, date(2025, 3, 1), ParseDate("2025-03-01 00:00:00+00:00"))
	assert.True(t, ParseDate("").IsZero())
	assert.True(t, ParseDate("soon").IsZero())
}
