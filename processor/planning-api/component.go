// Package planningapi serves the goal planning operations over HTTP.
package planningapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/treespora/planner/planning"
)

// SummaryService serves plan summaries.
type SummaryService interface {
	GetOrGenerate(ctx context.Context, goalID string) (*planning.Summary, error)
}

// TaskPlanService generates task plans.
type TaskPlanService interface {
	Generate(ctx context.Context, goalID string, startOverride civil.Date) (*planning.TaskPlanResult, error)
}

// DayTaskService reads the tasks of a day.
type DayTaskService interface {
	TasksForDay(ctx context.Context, goalID string, dayIndex int) (*planning.DayTasks, error)
}

// Observer records finished requests.
type Observer interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
}

// Component is the planning HTTP API.
type Component struct {
	summaries SummaryService
	taskPlans TaskPlanService
	dayTasks  DayTaskService
	config    Config
	logger    *slog.Logger
	observer  Observer
	metrics   http.Handler
}

// Option configures a Component.
type Option func(*Component)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Component) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver records every request.
func WithObserver(o Observer) Option {
	return func(c *Component) {
		c.observer = o
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(c *Component) {
		c.metrics = h
	}
}

// NewComponent creates the planning API.
func NewComponent(summaries SummaryService, taskPlans TaskPlanService, dayTasks DayTaskService, config Config, opts ...Option) (*Component, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Component{
		summaries: summaries,
		taskPlans: taskPlans,
		dayTasks:  dayTasks,
		config:    config,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Handler builds the router. Handlers are registered as:
//
//	GET  /health
//	GET  /metrics                              (when a metrics handler is set)
//	GET  <prefix>/goals/{goal_id}/plan/summary
//	POST <prefix>/goals/{goal_id}/task_plan    [?start_date=YYYY-MM-DD]
//	GET  <prefix>/goals/{goal_id}/tasks?day_index=N
func (c *Component) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(c.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", c.handleHealth)
	if c.metrics != nil {
		r.Method(http.MethodGet, "/metrics", c.metrics)
	}

	routes := func(r chi.Router) {
		r.Get("/goals/{goal_id}/plan/summary", c.handleGetSummary)
		r.Post("/goals/{goal_id}/task_plan", c.handleGenerateTaskPlan)
		r.Get("/goals/{goal_id}/tasks", c.handleGetDayTasks)
	}
	if prefix := c.config.prefix(); prefix != "" {
		r.Route(prefix, routes)
	} else {
		r.Group(routes)
	}
	return r
}

// logRequests logs one line per request and reports it to the observer.
func (c *Component) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		c.logger.Info("HTTP request",
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"duration", duration,
			"request_id", middleware.GetReqID(r.Context()))
		if c.observer != nil {
			c.observer.ObserveHTTP(route, r.Method, status, duration)
		}
	})
}
