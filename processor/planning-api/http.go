package planningapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/planning"
)

// Error details returned in the "detail" field.
const (
	DetailGoalNotFound      = "goal_not_found"
	DetailPlanNotFound      = "plan_not_found"
	DetailMissingTargetDate = "missing_target_date"
	DetailTaskPlanInvalid   = "task_plan_invalid"
	DetailLLMError          = "llm_error"
	DetailInternalError     = "internal_error"
	DetailTaskPlanFailed    = "task_plan_failed"
	DetailTasksFetchFailed  = "tasks_fetch_failed"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
	Service     string `json:"service"`
}

func (c *Component) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Environment: c.config.Environment,
		Service:     c.config.ServiceName,
	})
}

// ----------------------------------------------------------------------------
// GET <prefix>/goals/{goal_id}/plan/summary
// ----------------------------------------------------------------------------

func (c *Component) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	goalID, ok := goalIDParam(r)
	if !ok {
		// No goal can have a malformed id.
		writeError(w, http.StatusNotFound, DetailGoalNotFound, "Goal not found")
		return
	}

	summary, err := c.summaries.GetOrGenerate(r.Context(), goalID)
	var llmErr *llm.Error
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, summary)
	case errors.Is(err, planning.ErrGoalNotFound):
		writeError(w, http.StatusNotFound, DetailGoalNotFound, "Goal not found")
	case errors.As(err, &llmErr):
		c.logger.Warn("Summary request failed upstream", "goal_id", goalID, "kind", llmErr.Kind, "error", err)
		writeError(w, http.StatusBadGateway, DetailLLMError, "The planning assistant is unavailable")
	default:
		c.logger.Error("Summary request failed", "goal_id", goalID, "error", err)
		writeError(w, http.StatusInternalServerError, DetailInternalError, "Internal server error")
	}
}

// ----------------------------------------------------------------------------
// POST <prefix>/goals/{goal_id}/task_plan
// ----------------------------------------------------------------------------

func (c *Component) handleGenerateTaskPlan(w http.ResponseWriter, r *http.Request) {
	goalID, ok := goalIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, DetailTaskPlanInvalid, "goal_id must be a UUID")
		return
	}

	var start civil.Date
	if raw := strings.TrimSpace(r.URL.Query().Get("start_date")); raw != "" {
		d, err := civil.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, DetailTaskPlanInvalid, "start_date must be YYYY-MM-DD")
			return
		}
		start = d
	}

	result, err := c.taskPlans.Generate(r.Context(), goalID, start)
	var llmErr *llm.Error
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, result)
	case errors.Is(err, planning.ErrActivePlanNotFound):
		writeError(w, http.StatusNotFound, DetailPlanNotFound, "No plan exists for this goal")
	case errors.Is(err, planning.ErrTargetDateMissing):
		writeError(w, http.StatusBadRequest, DetailMissingTargetDate, "The goal has no target date")
	case errors.As(err, &llmErr):
		// Checked before ErrValidation: an invalid LLM payload is an upstream failure.
		c.logger.Warn("Task plan request failed upstream", "goal_id", goalID, "kind", llmErr.Kind, "error", err)
		writeError(w, http.StatusBadGateway, DetailLLMError, "The planning assistant returned no usable plan")
	case errors.Is(err, planning.ErrValidation):
		writeError(w, http.StatusBadRequest, DetailTaskPlanInvalid, "The task plan is invalid")
	default:
		c.logger.Error("Task plan request failed", "goal_id", goalID, "error", err)
		writeError(w, http.StatusInternalServerError, DetailTaskPlanFailed, "Task plan generation failed")
	}
}

// ----------------------------------------------------------------------------
// GET <prefix>/goals/{goal_id}/tasks?day_index=N
// ----------------------------------------------------------------------------

func (c *Component) handleGetDayTasks(w http.ResponseWriter, r *http.Request) {
	goalID, ok := goalIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, DetailTaskPlanInvalid, "goal_id must be a UUID")
		return
	}
	dayIndex, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get("day_index")))
	if err != nil {
		writeError(w, http.StatusBadRequest, DetailTaskPlanInvalid, "day_index must be an integer")
		return
	}

	day, err := c.dayTasks.TasksForDay(r.Context(), goalID, dayIndex)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, day)
	case errors.Is(err, planning.ErrActivePlanNotFound):
		writeError(w, http.StatusNotFound, DetailPlanNotFound, "No plan exists for this goal")
	case errors.Is(err, planning.ErrValidation):
		writeError(w, http.StatusBadRequest, DetailTaskPlanInvalid, "day_index must be >= 0")
	default:
		c.logger.Error("Day task request failed", "goal_id", goalID, "day_index", dayIndex, "error", err)
		writeError(w, http.StatusInternalServerError, DetailTasksFetchFailed, "Could not load tasks")
	}
}

// goalIDParam returns the canonical form of the goal_id path parameter.
func goalIDParam(r *http.Request) (string, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "goal_id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func writeError(w http.ResponseWriter, status int, detail, message string) {
	writeJSON(w, status, ErrorResponse{Detail: detail, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already out; an encode error cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}
