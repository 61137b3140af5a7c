package main

import (
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/treespora/planner/planning"
	"github.com/treespora/planner/planning/prompts"
)

func TestLoadFixtures_BaseOnly(t *testing.T) {
	fixtures, err := loadFixtures(fstest.MapFS{
		"summary.json":   {Data: []byte(`{"overview":"x"}`)},
		"task_plan.json": {Data: []byte(`{"days":[]}`)},
		"README.md":      {Data: []byte("ignored")},
	})
	require.NoError(t, err)
	assert.Len(t, fixtures, 2)
	for route, seq := range fixtures {
		assert.Len(t, seq, 1, route)
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	fixtures, err := loadFixtures(fstest.MapFS{
		"summary.2.json":  {Data: []byte(`{"n":"second"}`)},
		"summary.10.json": {Data: []byte(`{"n":"tenth"}`)},
		"summary.1.json":  {Data: []byte(`{"n":"first"}`)},
		"summary.json":    {Data: []byte(`{"n":"fallback"}`)},
	})
	require.NoError(t, err)

	seq := fixtures["summary"]
	require.Len(t, seq, 4)
	assert.Contains(t, seq[0], "first")
	assert.Contains(t, seq[1], "second")
	assert.Contains(t, seq[2], "tenth")
	assert.Contains(t, seq[3], "fallback")
}

func TestLoadFixtures_Errors(t *testing.T) {
	_, err := loadFixtures(fstest.MapFS{})
	assert.Error(t, err)

	_, err = loadFixtures(fstest.MapFS{"summary.json": {Data: []byte(`{not json`)}})
	assert.ErrorContains(t, err, "invalid JSON")
}

func TestBuiltinFixturesDecode(t *testing.T) {
	sub, err := fs.Sub(builtinFixtures, "fixtures")
	require.NoError(t, err)
	fixtures, err := loadFixtures(sub)
	require.NoError(t, err)

	var summary map[string]any
	require.NoError(t, json.Unmarshal([]byte(fixtures[routeSummary][0]), &summary))
	_, err = planning.DecodeSummary(summary)
	require.NoError(t, err)

	var plan map[string]any
	require.NoError(t, json.Unmarshal([]byte(fixtures[routeTaskPlan][0]), &plan))
	result, err := planning.DecodeTaskPlan(planning.RepairTaskPlan(plan))
	require.NoError(t, err)
	assert.Len(t, result.Days, 3)
}

func TestRouteOf(t *testing.T) {
	tests := []struct {
		name   string
		system string
		model  string
		want   string
	}{
		{"summary prompt", prompts.SummarySystemPrompt, "deepseek-chat", routeSummary},
		{"task plan prompt", prompts.TaskPlanSystemPrompt, "deepseek-chat", routeTaskPlan},
		{"unknown prompt", "You are helpful.", "mock-other", "mock-other"},
		{"no system message", "", "mock-other", "mock-other"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := chatRequest{Model: tt.model, Messages: []chatMessage{{Role: "user", Content: "hi"}}}
			if tt.system != "" {
				req.Messages = append([]chatMessage{{Role: "system", Content: tt.system}}, req.Messages...)
			}
			assert.Equal(t, tt.want, routeOf(req))
		})
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	s := newServer(map[string][]string{
		routeSummary:  {`{"overview":"first"}`, `{"overview":"second"}`},
		routeTaskPlan: {`{"days":"plan"}`},
	}, nil)
	h := s.routes()

	assert.Contains(t, doCompletion(t, h, prompts.SummarySystemPrompt, "m"), "first")
	assert.Contains(t, doCompletion(t, h, prompts.SummarySystemPrompt, "m"), "second")
	assert.Contains(t, doCompletion(t, h, prompts.SummarySystemPrompt, "m"), "second")
	assert.Contains(t, doCompletion(t, h, prompts.TaskPlanSystemPrompt, "m"), "plan")
}

func TestStripMockPrefix(t *testing.T) {
	h := newServer(map[string][]string{"planner": {`{"ok":true}`}}, nil).routes()
	assert.Contains(t, doCompletion(t, h, "", "mock-planner"), "ok")
}

func TestUnknownRoute(t *testing.T) {
	h := newServer(map[string][]string{routeSummary: {`{}`}}, nil).routes()

	w := httptest.NewRecorder()
	body := `{"model":"nope","messages":[{"role":"user","content":"x"}]}`
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body)))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatsAndRequests(t *testing.T) {
	s := newServer(map[string][]string{
		routeSummary:  {`{"overview":"x"}`},
		routeTaskPlan: {`{"days":[]}`},
	}, nil)
	h := s.routes()

	doCompletion(t, h, prompts.SummarySystemPrompt, "m")
	doCompletion(t, h, prompts.SummarySystemPrompt, "m")
	doCompletion(t, h, prompts.TaskPlanSystemPrompt, "m")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats struct {
		TotalCalls   int64          `json:"total_calls"`
		CallsByRoute map[string]int `json:"calls_by_route"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, 2, stats.CallsByRoute[routeSummary])
	assert.Equal(t, 1, stats.CallsByRoute[routeTaskPlan])

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/requests?route=summary&call=2", nil))
	var captured struct {
		RequestsByRoute map[string][]capturedRequest `json:"requests_by_route"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&captured))
	require.Len(t, captured.RequestsByRoute, 1)
	reqs := captured.RequestsByRoute[routeSummary]
	require.Len(t, reqs, 1)
	assert.Equal(t, 2, reqs[0].CallIndex)
	assert.Equal(t, prompts.SummarySystemPrompt, reqs[0].Messages[0].Content)
}

func TestModelsAndHealth(t *testing.T) {
	h := newServer(map[string][]string{routeTaskPlan: {`{}`}, routeSummary: {`{}`}}, nil).routes()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"object":"list","data":[
		{"id":"summary","object":"model","owned_by":"mock-llm"},
		{"id":"task_plan","object":"model","owned_by":"mock-llm"}]}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

// --- helpers ---

func doCompletion(t *testing.T, h http.Handler, system, model string) string {
	t.Helper()
	req := chatRequest{Model: model}
	if system != "" {
		req.Messages = append(req.Messages, chatMessage{Role: "system", Content: system})
	}
	req.Messages = append(req.Messages, chatMessage{Role: "user", Content: "test"})
	body, err := json.Marshal(req)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(string(body))))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp chatResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Choices)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content
}
