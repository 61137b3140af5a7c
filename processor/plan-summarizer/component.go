// Package plansummarizer serves a goal's plan summary, generating and storing
// a new plan version when none exists yet.
package plansummarizer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"

	"github.com/treespora/planner/events"
	"github.com/treespora/planner/metrics"
	"github.com/treespora/planner/planning"
	"github.com/treespora/planner/planning/prompts"
	"github.com/treespora/planner/storage"
)

// Store is the persistence the summarizer needs.
type Store interface {
	CurrentPlanPayload(ctx context.Context, goalID string) (json.RawMessage, error)
	LatestPlan(ctx context.Context, goalID string) (*planning.Plan, error)
	GetGoal(ctx context.Context, id string) (*planning.Goal, error)
	GetProfile(ctx context.Context, id string) (*planning.Profile, error)
	CreatePlanVersion(ctx context.Context, in storage.NewPlanVersion) (*planning.Plan, error)
}

// Summarizer produces a summary from a prompt.
type Summarizer interface {
	GenerateSummary(ctx context.Context, in prompts.SummaryInput) (*planning.SummaryResult, error)
	SummaryModel() string
}

// TaskTrigger starts best-effort task plan generation after a new plan version.
type TaskTrigger interface {
	Trigger(ctx context.Context, goalID string)
}

// Publisher announces new plan versions.
type Publisher interface {
	SummaryCreated(ctx context.Context, e events.SummaryCreated) error
}

// Observer counts served summaries by source.
type Observer interface {
	ObserveSummary(source string)
}

// Component implements get-or-generate for plan summaries.
type Component struct {
	store      Store
	summarizer Summarizer
	config     Config
	logger     *slog.Logger
	trigger    TaskTrigger
	publisher  Publisher
	observer   Observer
	now        func() time.Time
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

// WithTaskTrigger runs task plan generation after every new plan version.
func WithTaskTrigger(t TaskTrigger) Option {
	return func(c *Component) {
		c.trigger = t
	}
}

// WithPublisher publishes a SummaryCreated event for every new plan version.
func WithPublisher(p Publisher) Option {
	return func(c *Component) {
		c.publisher = p
	}
}

// WithObserver reports the source of every served summary.
func WithObserver(o Observer) Option {
	return func(c *Component) {
		c.observer = o
	}
}

// WithClock overrides the clock that defines "today".
func WithClock(now func() time.Time) Option {
	return func(c *Component) {
		c.now = now
	}
}

// NewComponent creates a plan summarizer.
func NewComponent(store Store, summarizer Summarizer, config Config, opts ...Option) (*Component, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	c := &Component{
		store:      store,
		summarizer: summarizer,
		config:     config,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetOrGenerate returns the goal's stored summary, or generates, stores and
// returns a new one. LLM failures never surface here: a fallback summary is
// stored instead. Task plan generation is triggered after a new version and
// cannot fail this call.
func (c *Component) GetOrGenerate(ctx context.Context, goalID string) (*planning.Summary, error) {
	cached, err := c.cachedSummary(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		c.observe(metrics.SourceCache)
		return cached, nil
	}

	goal, err := c.store.GetGoal(ctx, goalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", planning.ErrGoalNotFound, goalID)
	}
	if err != nil {
		return nil, fmt.Errorf("load goal: %w", err)
	}

	profile, err := c.profile(ctx, goal.UserID)
	if err != nil {
		return nil, err
	}

	source := metrics.SourceLLM
	result, err := c.summarizer.GenerateSummary(ctx, prompts.SummaryInput{
		GoalTitle:       goal.Title,
		GoalDescription: goal.Description,
		UserContext:     planning.UserContext(profile),
		Language:        planning.UserLanguage(profile),
	})
	if err != nil {
		c.logger.Warn("Summary generation failed, storing fallback summary",
			"goal_id", goalID,
			"error", err)
		result = fallbackSummary(goal.Title)
		source = metrics.SourceFallback
	}

	today := civil.DateOf(c.now())
	target := planning.ResolveTargetDate(goal, result.EstimatedDurationDays, today, c.config.DefaultDurationDays)
	var goalTarget civil.Date
	if goal.TargetDate.IsZero() {
		goalTarget = target
	}

	payload, err := planning.EncodeSummaryPayload(result, planning.ParseDailyTime(goal.Description))
	if err != nil {
		return nil, err
	}

	plan, err := c.store.CreatePlanVersion(ctx, storage.NewPlanVersion{
		GoalID:         goal.ID,
		ModelName:      c.summarizer.SummaryModel(),
		Payload:        payload,
		Summary:        result.Overview,
		TargetDate:     target,
		GoalTargetDate: goalTarget,
	})
	if err != nil {
		return nil, fmt.Errorf("store plan version: %w", err)
	}

	c.logger.Info("Plan version created",
		"goal_id", goal.ID,
		"plan_id", plan.ID,
		"version", plan.Version,
		"target_date", target.String(),
		"source", source)

	if c.publisher != nil {
		if err := c.publisher.SummaryCreated(ctx, events.SummaryCreated{
			GoalID:   goal.ID,
			PlanID:   plan.ID,
			Version:  plan.Version,
			Fallback: source == metrics.SourceFallback,
		}); err != nil {
			c.logger.Warn("Failed to publish summary created event",
				"goal_id", goal.ID,
				"plan_id", plan.ID,
				"error", err)
		}
	}
	c.observe(source)

	if c.trigger != nil {
		c.trigger.Trigger(ctx, goal.ID)
	}

	// Built from the stored payload so a later cache hit is identical.
	stored, err := planning.ParsePayload(payload)
	if err != nil {
		return nil, err
	}
	return stored.Summary(goal.ID), nil
}

// cachedSummary reads the summary from the goal's current plan, then from
// its latest plan. Empty and malformed payloads count as a miss.
func (c *Component) cachedSummary(ctx context.Context, goalID string) (*planning.Summary, error) {
	raw, err := c.store.CurrentPlanPayload(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("load current plan: %w", err)
	}
	if s := c.summaryFrom(goalID, raw); s != nil {
		return s, nil
	}

	plan, err := c.store.LatestPlan(ctx, goalID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest plan: %w", err)
	}
	return c.summaryFrom(goalID, plan.Payload), nil
}

func (c *Component) summaryFrom(goalID string, raw json.RawMessage) *planning.Summary {
	payload, err := planning.ParsePayload(raw)
	if err != nil {
		c.logger.Warn("Stored plan payload is malformed, ignoring it",
			"goal_id", goalID,
			"error", err)
		return nil
	}
	if payload.Empty() {
		return nil
	}
	return payload.Summary(goalID)
}

func (c *Component) profile(ctx context.Context, userID string) (*planning.Profile, error) {
	if userID == "" {
		return nil, nil
	}
	p, err := c.store.GetProfile(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return p, nil
}

func (c *Component) observe(source string) {
	if c.observer != nil {
		c.observer.ObserveSummary(source)
	}
}

// fallbackSummary is stored when the LLM cannot produce a summary.
func fallbackSummary(title string) *planning.SummaryResult {
	if title == "" {
		title = "your goal"
	}
	days := planning.DefaultDurationDays
	return &planning.SummaryResult{
		Overview: "AI summary unavailable right now. We'll retry soon. Goal: " + title +
			". You can continue with tasks while the summary regenerates.",
		Phases:                []planning.PlanPhase{},
		EstimatedDurationDays: &days,
	}
}
