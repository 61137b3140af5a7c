// Package prompts builds the system and user messages sent to the LLM for
// plan summaries and day-by-day task plans.
package prompts

import (
	"fmt"
	"strings"
)

// SummarySystemPrompt constrains the summary response to JSON.
const SummarySystemPrompt = "You are a planning assistant for Treespora. Always return structured JSON."

// SummaryInput contains the goal data needed to summarize a goal.
type SummaryInput struct {
	// GoalTitle defaults to "Untitled goal" when empty
	GoalTitle string

	GoalDescription string

	// UserContext is a short profile line such as "age: 29, language: es"
	UserContext string

	// Language is the response language code; defaults to "en"
	Language string
}

const untitledGoal = "Untitled goal"

// SummaryUserPrompt renders the user message for a plan summary request.
func SummaryUserPrompt(in SummaryInput) string {
	title := in.GoalTitle
	if title == "" {
		title = untitledGoal
	}
	language := in.Language
	if language == "" {
		language = "en"
	}
	context := strings.TrimSpace(in.UserContext)
	if context == "" {
		context = "Not provided"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Language: %s\n", language)
	sb.WriteString("You help Treespora summarize user goals.\n")
	fmt.Fprintf(&sb, "Goal title: %s\n", title)
	fmt.Fprintf(&sb, "Goal description: %s\n", in.GoalDescription)
	fmt.Fprintf(&sb, "User context: %s\n", context)
	sb.WriteString("Respond ONLY with JSON matching the schema:\n")
	sb.WriteString(`{"overview": str, "estimated_duration_days": int | null, "phases": [{"name": str, "days_range": str | null, "focus": str}]}`)
	return sb.String()
}
