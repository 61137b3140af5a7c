// Package taskgenerator turns a goal's latest plan into a day-by-day task
// plan. It resolves the schedule, asks the LLM gateway for the plan,
// normalizes it and replaces the plan's stored tasks in one transaction.
package taskgenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/treespora/planner/events"
	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/planning"
	"github.com/treespora/planner/planning/prompts"
	"github.com/treespora/planner/storage"
)

// Outcomes reported to the Observer.
const (
	OutcomeOK                = "ok"
	OutcomePlanNotFound      = "plan_not_found"
	OutcomeTargetDateMissing = "missing_target_date"
	OutcomeInvalid           = "invalid"
	OutcomeLLMError          = "llm_error"
	OutcomeFailed            = "failed"
)

// Store is the persistence the generator needs.
type Store interface {
	GetGoal(ctx context.Context, id string) (*planning.Goal, error)
	GetProfile(ctx context.Context, id string) (*planning.Profile, error)
	LatestPlan(ctx context.Context, goalID string) (*planning.Plan, error)
	SupportsExtendedTasks(ctx context.Context) (bool, error)
	ReplaceTaskPlan(ctx context.Context, w storage.TaskPlanWrite) (int, error)
}

// Planner produces a raw task plan from a prompt.
type Planner interface {
	GenerateTaskPlan(ctx context.Context, in prompts.TaskPlanInput) (*planning.TaskPlanResult, error)
}

// Publisher announces generated task plans.
type Publisher interface {
	TasksGenerated(ctx context.Context, e events.TasksGenerated) error
}

// Observer counts generation outcomes.
type Observer interface {
	ObserveTaskPlan(outcome string)
}

// Generator implements the task plan generation pipeline.
type Generator struct {
	store     Store
	planner   Planner
	config    Config
	logger    *slog.Logger
	publisher Publisher
	observer  Observer
	now       func() time.Time

	// The extended task schema probe runs once per generator. Only a
	// successful probe is cached; schema changes need a restart.
	probeMu  sync.Mutex
	probed   bool
	extended bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPublisher publishes a TasksGenerated event after each stored plan.
func WithPublisher(p Publisher) Option {
	return func(g *Generator) {
		g.publisher = p
	}
}

// WithObserver reports generation outcomes.
func WithObserver(o Observer) Option {
	return func(g *Generator) {
		g.observer = o
	}
}

// WithClock overrides the clock that defines "today".
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a task plan generator.
func NewGenerator(store Store, planner Planner, config Config, opts ...Option) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	g := &Generator{
		store:   store,
		planner: planner,
		config:  config,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate builds and stores the task plan for a goal's latest plan.
// A zero startOverride lets the goal, the payload or today decide the start.
//
// Domain errors (planning.ErrActivePlanNotFound, planning.ErrTargetDateMissing)
// and *llm.Error are returned as they are. Anything else is logged with the
// goal id before it is returned.
func (g *Generator) Generate(ctx context.Context, goalID string, startOverride civil.Date) (*planning.TaskPlanResult, error) {
	result, err := g.generate(ctx, goalID, startOverride)
	outcome := outcomeOf(err)
	if g.observer != nil {
		g.observer.ObserveTaskPlan(outcome)
	}
	if outcome == OutcomeFailed {
		g.logger.Error("Task plan generation failed",
			"goal_id", goalID,
			"error", err)
	}
	return result, err
}

func (g *Generator) generate(ctx context.Context, goalID string, startOverride civil.Date) (*planning.TaskPlanResult, error) {
	goal, err := g.store.GetGoal(ctx, goalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: goal %s does not exist", planning.ErrActivePlanNotFound, goalID)
	}
	if err != nil {
		return nil, fmt.Errorf("load goal: %w", err)
	}

	plan, err := g.store.LatestPlan(ctx, goalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: goal %s has no plan", planning.ErrActivePlanNotFound, goalID)
	}
	if err != nil {
		return nil, fmt.Errorf("load plan: %w", err)
	}

	payload, err := planning.ParsePayload(plan.Payload)
	if err != nil {
		g.logger.Warn("Stored plan payload is malformed, treating it as empty",
			"goal_id", goalID,
			"plan_id", plan.ID,
			"error", err)
		payload = planning.Payload{}
	}

	profile, err := g.profile(ctx, goal.UserID)
	if err != nil {
		return nil, err
	}

	summary := plan.Summary
	if summary == "" {
		summary = payload.Overview()
	}

	schedule, err := planning.ResolveSchedule(planning.ScheduleInput{
		Override:     startOverride,
		GoalStart:    goal.StartDate,
		PayloadStart: payload.StartDate(),
		PlanTarget:   plan.TargetDate,
		GoalTarget:   goal.TargetDate,
		Horizon:      payload.HorizonHint(),
		DefaultDays:  g.config.DefaultDurationDays,
		Today:        civil.DateOf(g.now()),
	})
	if err != nil {
		return nil, err
	}
	expectedDays := schedule.ExpectedDays()

	raw, err := g.planner.GenerateTaskPlan(ctx, prompts.TaskPlanInput{
		GoalID:                     goal.ID,
		PlanID:                     plan.ID,
		GoalTitle:                  goal.Title,
		GoalDescription:            optional(goal.Description),
		GoalCategory:               optional(goal.Category),
		StartDate:                  schedule.Start,
		TargetDate:                 schedule.Target,
		PlanSummary:                summary,
		EstimatedDurationDays:      payload.EstimatedDurationDays(),
		DailyTimeCommitmentMinutes: payload.DailyMinutes(g.config.DefaultDailyMinutes),
		UserLanguage:               optional(planning.UserLanguage(profile)),
		UserContext:                optional(planning.UserContext(profile)),
	})
	if err != nil {
		return nil, err
	}

	result := planning.Normalize(raw, planning.Identity{
		GoalID:    goal.ID,
		PlanID:    plan.ID,
		Version:   plan.Version,
		Summary:   summary,
		StartDate: schedule.Start,
	}, expectedDays)

	merged, err := payload.MergeTaskPlan(result)
	if err != nil {
		return nil, err
	}

	extended, err := g.extendedTasks(ctx)
	if err != nil {
		return nil, err
	}

	inserted, err := g.store.ReplaceTaskPlan(ctx, storage.TaskPlanWrite{
		PlanID:     plan.ID,
		GoalID:     goal.ID,
		Payload:    merged,
		TargetDate: result.LastPlannedDate(),
		Result:     result,
		Extended:   extended,
	})
	if err != nil {
		return nil, fmt.Errorf("store task plan: %w", err)
	}

	g.logger.Info("Task plan generated",
		"goal_id", goal.ID,
		"plan_id", plan.ID,
		"version", plan.Version,
		"days", len(result.Days),
		"expected_days", expectedDays,
		"tasks", inserted,
		"extended_schema", extended)

	if g.publisher != nil {
		if err := g.publisher.TasksGenerated(ctx, events.TasksGenerated{
			GoalID: goal.ID,
			PlanID: plan.ID,
			Days:   len(result.Days),
			Tasks:  inserted,
		}); err != nil {
			g.logger.Warn("Failed to publish tasks generated event",
				"goal_id", goal.ID,
				"plan_id", plan.ID,
				"error", err)
		}
	}
	return result, nil
}

// profile loads the goal owner's profile. A goal without an owner or an
// owner without a profile yields nil.
func (g *Generator) profile(ctx context.Context, userID string) (*planning.Profile, error) {
	if userID == "" {
		return nil, nil
	}
	p, err := g.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (g *Generator) extendedTasks(ctx context.Context) (bool, error) {
	g.probeMu.Lock()
	defer g.probeMu.Unlock()

	if g.probed {
		return g.extended, nil
	}
	ok, err := g.store.SupportsExtendedTasks(ctx)
	if err != nil {
		return false, fmt.Errorf("probe task columns: %w", err)
	}
	g.probed, g.extended = true, ok
	g.logger.Debug("Probed task schema", "extended", ok)
	return ok, nil
}

func outcomeOf(err error) string {
	var llmErr *llm.Error
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, planning.ErrActivePlanNotFound):
		return OutcomePlanNotFound
	case errors.Is(err, planning.ErrTargetDateMissing):
		return OutcomeTargetDateMissing
	case errors.As(err, &llmErr):
		if llmErr.Kind == llm.KindInvalidPayload {
			return OutcomeInvalid
		}
		return OutcomeLLMError
	default:
		return OutcomeFailed
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
