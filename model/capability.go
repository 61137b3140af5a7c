// Package model provides capability-based endpoint selection for LLM calls.
// Callers ask for a capability (summary, task_plan) and the registry resolves it
// to a concrete endpoint together with the timeout budget for that capability.
package model

import "time"

// Capability represents the kind of generation a caller needs.
type Capability string

const (
	// CapabilitySummary produces a goal overview with phases and an estimated duration.
	CapabilitySummary Capability = "summary"

	// CapabilityTaskPlan produces the full day-by-day task plan for a horizon.
	CapabilityTaskPlan Capability = "task_plan"
)

// Default timeout budgets. Task plans cover far more output than summaries.
const (
	DefaultSummaryTimeout  = 30 * time.Second
	DefaultTaskPlanTimeout = 90 * time.Second
)

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilitySummary, CapabilityTaskPlan:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// DefaultTimeout returns the built-in timeout budget for the capability.
func (c Capability) DefaultTimeout() time.Duration {
	if c == CapabilityTaskPlan {
		return DefaultTaskPlanTimeout
	}
	return DefaultSummaryTimeout
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
