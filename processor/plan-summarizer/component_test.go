package plansummarizer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treespora/planner/events"
	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/llm/testutil"
	"github.com/treespora/planner/metrics"
	"github.com/treespora/planner/planning"
	taskgenerator "github.com/treespora/planner/processor/task-generator"
	"github.com/treespora/planner/storage"
	"github.com/treespora/planner/storage/storagetest"
)

var fixedNow = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

const summaryJSON = `{"overview": "Three focused days", "estimated_duration_days": 3,
  "phases": [{"name": "Start", "focus": "Basics", "days_range": "1-3"}]}`

const threeDayPlan = `{
  "goal_id": "g", "plan_id": "p", "version": 1, "summary": "s",
  "time_horizon_days": 3, "daily_time_commitment_minutes": 30, "start_date": "2025-03-01",
  "days": [
    {"day_index": 0, "label": "Day 1", "focus": "Basics", "tasks": [{"description": "Greetings", "estimated_minutes": 15}]},
    {"day_index": 1, "label": "Day 2", "focus": "Basics", "tasks": [{"description": "Numbers", "estimated_minutes": 15}]},
    {"day_index": 2, "label": "Day 3", "focus": "Basics", "tasks": [{"description": "Colors", "estimated_minutes": 15}]}
  ]
}`

type recordingTrigger struct {
	mu    sync.Mutex
	goals []string
}

func (r *recordingTrigger) Trigger(_ context.Context, goalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.goals = append(r.goals, goalID)
}

type recordingObserver struct {
	sources []string
}

func (o *recordingObserver) ObserveSummary(source string) {
	o.sources = append(o.sources, source)
}

type recordingPublisher struct {
	events []events.SummaryCreated
}

func (p *recordingPublisher) SummaryCreated(_ context.Context, e events.SummaryCreated) error {
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	store     *storage.Store
	mock      *testutil.MockProvider
	client    *llm.Client
	component *Component
	trigger   *recordingTrigger
	observer  *recordingObserver
	publisher *recordingPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:     storagetest.Open(t, 0, fixedNow),
		mock:      &testutil.MockProvider{Contents: []string{summaryJSON}},
		trigger:   &recordingTrigger{},
		observer:  &recordingObserver{},
		publisher: &recordingPublisher{},
	}
	f.client = llm.NewClient(testutil.Registry(0), llm.WithProvider(testutil.ProviderName, f.mock))
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithTaskTrigger(f.trigger),
		WithObserver(f.observer),
		WithPublisher(f.publisher),
	}, opts...)

	c, err := NewComponent(f.store, planning.NewGateway(f.client, nil), DefaultConfig(), opts...)
	require.NoError(t, err)
	f.component = c
	return f
}

func (f *fixture) createGoal(t *testing.T, g *planning.Goal) *planning.Goal {
	t.Helper()
	require.NoError(t, f.store.CreateGoal(context.Background(), g))
	return g
}

func march(day int) civil.Date {
	return civil.Date{Year: 2025, Month: time.March, Day: day}
}

func TestGetOrGenerate_GeneratesThenCaches(t *testing.T) {
	f := newFixture(t)
	goal := f.createGoal(t, &planning.Goal{Title: "Learn Spanish"})
	ctx := context.Background()

	first, err := f.component.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, goal.ID, first.GoalID)
	assert.Equal(t, "Three focused days", first.Overview)
	require.Len(t, first.Phases, 1)
	assert.Equal(t, "1-3", *first.Phases[0].DaysRange)
	assert.Equal(t, 3, *first.EstimatedDurationDays)

	second, err := f.component.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.mock.GetCallCount(), "a cached summary must not call the LLM")

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
	assert.Equal(t, string(firstJSON), string(secondJSON))

	plans, err := f.store.ListPlans(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, testutil.MockModel, plans[0].ModelName)
	assert.Equal(t, march(3), plans[0].TargetDate)

	stored, err := f.store.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, march(3), stored.TargetDate, "a computed target is written back to the goal")
	assert.Equal(t, plans[0].ID, stored.CurrentPlanID)

	assert.Equal(t, []string{goal.ID}, f.trigger.goals)
	assert.Equal(t, []string{metrics.SourceLLM, metrics.SourceCache}, f.observer.sources)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.SummaryCreated{GoalID: goal.ID, PlanID: plans[0].ID, Version: 1}, f.publisher.events[0])
}

func TestGetOrGenerate_EmptyPayloadCreatesNextVersion(t *testing.T) {
	f := newFixture(t)
	goal := f.createGoal(t, &planning.Goal{Title: "Learn Spanish"})
	ctx := context.Background()

	_, err := f.store.CreatePlanVersion(ctx, storage.NewPlanVersion{GoalID: goal.ID, Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	_, err = f.component.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)

	plans, err := f.store.ListPlans(ctx, goal.ID)
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, 2, plans[0].Version)
	assert.True(t, plans[0].IsActive)
	assert.False(t, plans[1].IsActive)
}

func TestGetOrGenerate_DelegatedDuration(t *testing.T) {
	f := newFixture(t)
	f.mock.SetContents(`{"overview": "Two weeks", "estimated_duration_days": 14, "phases": []}`)
	goal := f.createGoal(t, &planning.Goal{
		Title:       "Run 5k",
		Description: "Preferred completion: Let AI decide\nDaily time: 15-30 minutes",
		TargetDate:  civil.Date{Year: 2025, Month: time.December, Day: 31},
	})
	ctx := context.Background()

	_, err := f.component.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)

	plan, err := f.store.LatestPlan(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, march(14), plan.TargetDate)

	payload, err := planning.ParsePayload(plan.Payload)
	require.NoError(t, err)
	assert.Equal(t, 30, payload.DailyMinutes(0))

	stored, err := f.store.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2025, Month: time.December, Day: 31}, stored.TargetDate,
		"an existing goal target date is not rewritten")
}

func TestGetOrGenerate_KeepsExistingTarget(t *testing.T) {
	f := newFixture(t)
	goal := f.createGoal(t, &planning.Goal{Title: "Run 5k", TargetDate: march(20)})

	_, err := f.component.GetOrGenerate(context.Background(), goal.ID)
	require.NoError(t, err)

	plan, err := f.store.LatestPlan(context.Background(), goal.ID)
	require.NoError(t, err)
	assert.Equal(t, march(20), plan.TargetDate)
}

func TestGetOrGenerate_FallbackOnLLMFailure(t *testing.T) {
	f := newFixture(t)
	f.mock.SetErr(llm.NewHTTPError(503, errors.New("overloaded")))
	goal := f.createGoal(t, &planning.Goal{Title: "Learn Spanish"})
	ctx := context.Background()

	summary, err := f.component.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)
	assert.Contains(t, summary.Overview, "AI summary unavailable")
	assert.Contains(t, summary.Overview, "Goal: Learn Spanish.")
	assert.Empty(t, summary.Phases)
	assert.NotNil(t, summary.Phases)
	assert.Equal(t, planning.DefaultDurationDays, *summary.EstimatedDurationDays)

	plan, err := f.store.LatestPlan(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, testutil.MockModel, plan.ModelName)
	assert.Equal(t, civil.DateOf(fixedNow).AddDays(planning.DefaultDurationDays-1), plan.TargetDate)

	assert.Equal(t, []string{metrics.SourceFallback}, f.observer.sources)
	require.Len(t, f.publisher.events, 1)
	assert.True(t, f.publisher.events[0].Fallback)
	assert.Equal(t, []string{goal.ID}, f.trigger.goals)
}

func TestGetOrGenerate_FallbackOnNotJSON(t *testing.T) {
	f := newFixture(t)
	f.mock.SetContents("Sorry, I can't do that.")
	goal := f.createGoal(t, &planning.Goal{})

	summary, err := f.component.GetOrGenerate(context.Background(), goal.ID)
	require.NoError(t, err)
	assert.Contains(t, summary.Overview, "Goal: your goal.")
}

func TestGetOrGenerate_GoalNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.component.GetOrGenerate(context.Background(), "2f1d9f7e-4c7a-4c4b-9a53-0d7f2b0a0b11")
	assert.ErrorIs(t, err, planning.ErrGoalNotFound)
	assert.Equal(t, 0, f.mock.GetCallCount())
	assert.Empty(t, f.trigger.goals)
}

func TestGetOrGenerate_UsesProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	age := 41
	require.NoError(t, f.store.UpsertProfile(ctx, &planning.Profile{ID: "user-7", Age: &age, LanguageCode: "ro"}))
	goal := f.createGoal(t, &planning.Goal{UserID: "user-7", Title: "Garden"})

	_, err := f.component.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)

	prompt := f.mock.LastCall().Messages[1].Content
	assert.Contains(t, prompt, "ro")
	assert.Contains(t, prompt, "age: 41, language: ro")
}

func TestGetOrGenerate_TriggersTaskGeneration(t *testing.T) {
	store := storagetest.Open(t, 0, fixedNow)
	mock := &testutil.MockProvider{Contents: []string{summaryJSON, threeDayPlan}}
	gateway := planning.NewGateway(llm.NewClient(testutil.Registry(0), llm.WithProvider(testutil.ProviderName, mock)), nil)
	clock := func() time.Time { return fixedNow }

	gen, err := taskgenerator.NewGenerator(store, gateway, taskgenerator.DefaultConfig(), taskgenerator.WithClock(clock))
	require.NoError(t, err)
	c, err := NewComponent(store, gateway, DefaultConfig(),
		WithClock(clock),
		WithTaskTrigger(taskgenerator.NewSyncTrigger(gen, nil)))
	require.NoError(t, err)

	ctx := context.Background()
	goal := &planning.Goal{Title: "Learn Spanish"}
	require.NoError(t, store.CreateGoal(ctx, goal))

	summary, err := c.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, mock.GetCallCount())

	plan, err := store.LatestPlan(ctx, goal.ID)
	require.NoError(t, err)
	tasks, err := store.TasksForDay(ctx, plan.ID, 2)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Colors", tasks[0].Description)

	// The summary survives task generation unchanged.
	again, err := c.GetOrGenerate(ctx, goal.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, again)
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestGetOrGenerate_TaskGenerationFailureIsSwallowed(t *testing.T) {
	store := storagetest.Open(t, 0, fixedNow)
	mock := &testutil.MockProvider{Contents: []string{summaryJSON, "not json at all"}}
	gateway := planning.NewGateway(llm.NewClient(testutil.Registry(0), llm.WithProvider(testutil.ProviderName, mock)), nil)

	gen, err := taskgenerator.NewGenerator(store, gateway, taskgenerator.DefaultConfig())
	require.NoError(t, err)
	c, err := NewComponent(store, gateway, DefaultConfig(), WithTaskTrigger(taskgenerator.NewSyncTrigger(gen, nil)))
	require.NoError(t, err)

	goal := &planning.Goal{Title: "Learn Spanish"}
	require.NoError(t, store.CreateGoal(context.Background(), goal))

	summary, err := c.GetOrGenerate(context.Background(), goal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Three focused days", summary.Overview)
}

func TestFallbackSummary(t *testing.T) {
	got := fallbackSummary("Read 12 books")
	assert.Equal(t, "AI summary unavailable right now. We'll retry soon. Goal: Read 12 books. "+
		"You can continue with tasks while the summary regenerates.", got.Overview)
	assert.Equal(t, 30, *got.EstimatedDurationDays)
}
