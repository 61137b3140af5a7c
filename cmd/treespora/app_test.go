package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treespora/planner/config"
	"github.com/treespora/planner/llm"
	"github.com/treespora/planner/llm/testutil"
	"github.com/treespora/planner/model"
	"github.com/treespora/planner/planning"
	taskgenerator "github.com/treespora/planner/processor/task-generator"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.ShutdownTimeout = 2 * time.Second
	cfg.Database.URL = "file:" + filepath.Join(t.TempDir(), "app.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	cfg.LLM = testutil.Registry(0).ToConfig()
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, mock *testutil.MockProvider) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := NewApp(context.Background(), cfg, logger, llm.WithProvider(testutil.ProviderName, mock))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_, err = app.store.Migrate(context.Background(), 0)
	require.NoError(t, err)
	return app
}

func TestNewApp_TriggerMode(t *testing.T) {
	app := newTestApp(t, testConfig(t), &testutil.MockProvider{})
	assert.IsType(t, &taskgenerator.SyncTrigger{}, app.trigger)
	assert.False(t, app.publisher.Enabled())

	cfg := testConfig(t)
	cfg.TaskPlan.Async = true
	app = newTestApp(t, cfg, &testutil.MockProvider{})
	assert.IsType(t, &taskgenerator.Dispatcher{}, app.trigger)
}

func TestNewApp_BadDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Driver = "mysql"
	_, err := NewApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestApp_HandlerWiring(t *testing.T) {
	mock := &testutil.MockProvider{Contents: []string{`{"overview": "Plan", "phases": []}`}}
	app := newTestApp(t, testConfig(t), mock)

	goal := &planning.Goal{Title: "Run 5k"}
	require.NoError(t, app.store.CreateGoal(context.Background(), goal))

	h := app.api.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","environment":"development","service":"Treespora Backend"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/goals/"+goal.ID+"/plan/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"overview":"Plan"`)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `treespora_summary_requests_total{source="llm"} 1`)
	assert.Contains(t, w.Body.String(), `treespora_llm_requests_total{capability="summary",outcome="ok"} 1`)

	stats, err := app.store.LLMCallStats(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, stats)
	assert.Equal(t, "summary", stats[0].Capability)
}

func TestApp_ServeStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.TaskPlan.Async = true
	app := newTestApp(t, cfg, &testutil.MockProvider{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestApp_ServeReportsListenError(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = "127.0.0.1:-1"
	app := newTestApp(t, cfg, &testutil.MockProvider{})

	err := app.Serve(context.Background())
	assert.ErrorContains(t, err, "http server")
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestConfig_RejectsWriteTimeoutBelowInlineBudget(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Capabilities[string(model.CapabilitySummary)].Timeout = 300 * time.Millisecond
	cfg.LLM.Capabilities[string(model.CapabilityTaskPlan)].Timeout = 400 * time.Millisecond
	cfg.HTTP.WriteTimeout = 500 * time.Millisecond
	assert.ErrorContains(t, cfg.Validate(), "combined")

	cfg.TaskPlan.Async = true
	assert.NoError(t, cfg.Validate())
}

func TestApp_FallbackSummaryServedWhenLLMHangs(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Addr = freeAddr(t)
	cfg.LLM.Capabilities[string(model.CapabilitySummary)].Timeout = 300 * time.Millisecond
	cfg.LLM.Capabilities[string(model.CapabilityTaskPlan)].Timeout = 400 * time.Millisecond
	cfg.HTTP.WriteTimeout = 2 * time.Second
	require.NoError(t, cfg.Validate())

	app := newTestApp(t, cfg, &testutil.MockProvider{Block: true})
	goal := &planning.Goal{Title: "Run 5k"}
	require.NoError(t, app.store.CreateGoal(context.Background(), goal))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool {
		r, err := http.Get("http://" + cfg.HTTP.Addr + "/health")
		if err != nil {
			return false
		}
		r.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	resp, err := http.Get("http://" + cfg.HTTP.Addr + "/v1/goals/" + goal.ID + "/plan/summary")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary planning.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, goal.ID, summary.GoalID)
	assert.Contains(t, summary.Overview, "AI summary unavailable")
}
