package planning

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"cloud.google.com/go/civil"
)

// Payload is a decoded plan payload. It always holds the summary keys
// (overview, phases, estimated_duration_days, optionally
// daily_time_commitment_minutes) and, once tasks were generated, the
// TaskPlanResult keys on top.
type Payload map[string]any

// summaryDocument is the payload written when a plan version is created.
type summaryDocument struct {
	Overview                   string      `json:"overview"`
	EstimatedDurationDays      *int        `json:"estimated_duration_days"`
	Phases                     []PlanPhase `json:"phases"`
	DailyTimeCommitmentMinutes *int        `json:"daily_time_commitment_minutes,omitempty"`
}

// EncodeSummaryPayload builds the initial payload of a plan version.
// dailyMinutes of 0 leaves the commitment out.
func EncodeSummaryPayload(s *SummaryResult, dailyMinutes int) (json.RawMessage, error) {
	doc := summaryDocument{
		Overview:              s.Overview,
		EstimatedDurationDays: s.EstimatedDurationDays,
		Phases:                s.Phases,
	}
	if doc.Phases == nil {
		doc.Phases = []PlanPhase{}
	}
	if dailyMinutes > 0 {
		doc.DailyTimeCommitmentMinutes = &dailyMinutes
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal plan payload: %w", err)
	}
	return data, nil
}

// ParsePayload decodes a stored payload. Empty input and JSON null decode to
// an empty payload; anything that is not a JSON object is an error.
func ParsePayload(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Payload{}, nil
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode plan payload: %w", err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}

// Empty reports whether the payload has no keys.
func (p Payload) Empty() bool {
	return len(p) == 0
}

// Overview returns the summary overview, or "".
func (p Payload) Overview() string {
	switch v := p["overview"].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Phases returns the well-formed phases. Non-object entries are skipped.
func (p Payload) Phases() []PlanPhase {
	raw, _ := p["phases"].([]any)
	phases := make([]PlanPhase, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		phase := PlanPhase{
			Name:  stringOf(obj["name"]),
			Focus: stringOf(obj["focus"]),
		}
		if dr, ok := obj["days_range"].(string); ok {
			phase.DaysRange = &dr
		}
		phases = append(phases, phase)
	}
	return phases
}

// EstimatedDurationDays returns the estimate when it is a whole number.
func (p Payload) EstimatedDurationDays() *int {
	return wholeNumber(p["estimated_duration_days"])
}

// HorizonHint is the first positive value of time_horizon_days or
// estimated_duration_days, or 0.
func (p Payload) HorizonHint() int {
	if n := positiveInt(p["time_horizon_days"]); n > 0 {
		return n
	}
	return positiveInt(p["estimated_duration_days"])
}

// StartDate returns the payload's start_date, or the zero date.
func (p Payload) StartDate() civil.Date {
	s, _ := p["start_date"].(string)
	return ParseDate(s)
}

// DailyMinutes returns the stored daily commitment when it is within the
// accepted range, otherwise def.
func (p Payload) DailyMinutes(def int) int {
	n := wholeNumber(p["daily_time_commitment_minutes"])
	if n == nil || *n < MinDailyMinutes || *n > MaxDailyMinutes {
		return def
	}
	return *n
}

// Summary rebuilds the client-facing summary from the payload.
func (p Payload) Summary(goalID string) *Summary {
	return &Summary{
		GoalID:                goalID,
		Overview:              p.Overview(),
		Phases:                p.Phases(),
		EstimatedDurationDays: p.EstimatedDurationDays(),
	}
}

// MergeTaskPlan overlays the task plan keys onto the payload and encodes the
// result. Summary keys the task plan does not carry are kept as they are.
func (p Payload) MergeTaskPlan(result *TaskPlanResult) (json.RawMessage, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal task plan: %w", err)
	}
	var overlay map[string]any
	if err := json.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("decode task plan: %w", err)
	}

	merged := make(map[string]any, len(p)+len(overlay))
	for k, v := range p {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal plan payload: %w", err)
	}
	return out, nil
}

func stringOf(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

// wholeNumber returns v as an int when it is a JSON number without a fraction.
// Numbers beyond the int32 range are treated as absent.
func wholeNumber(v any) *int {
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil
	}
	n := int(f)
	return &n
}

// positiveInt truncates a positive JSON number. Booleans, strings and
// numbers beyond the int32 range yield 0.
func positiveInt(v any) int {
	f, ok := v.(float64)
	if !ok || f <= 0 || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}
