// Package main implements a mock LLM server for local runs and e2e wiring.
// It serves OpenAI-compatible /v1/chat/completions responses from JSON
// fixtures, so treespora can run without a provider key.
//
// Usage:
//
//	mock-llm --port 11434 [--fixtures /path/to/fixtures]
//
// and point the service at it:
//
//	DEEPSEEK_BASE_URL=http://localhost:11434/v1 DEEPSEEK_API_KEY=mock treespora serve
//
// Requests are routed by their system prompt: the summary prompt gets the
// "summary" fixture and the task planner prompt gets "task_plan". Any other
// request is routed by its "model" field. Built-in fixtures are used unless a
// fixture directory is given.
//
// Sequential fixtures: numbered files ("task_plan.1.json", "task_plan.2.json")
// are served in order for successive calls to that route; the base file
// ("task_plan.json") repeats once they are exhausted.
package main

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/treespora/planner/planning/prompts"
)

//go:embed fixtures/*.json
var builtinFixtures embed.FS

// Fixture route keys chosen from the system prompt.
const (
	routeSummary  = "summary"
	routeTaskPlan = "task_plan"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// --- Server ---

// capturedRequest stores the key fields of an incoming request for test verification.
type capturedRequest struct {
	Route     string        `json:"route"`
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	CallIndex int           `json:"call_index"` // 1-indexed per-route call number
	Timestamp int64         `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // route key → ordered fixture contents
	calls    atomic.Int64
	logger   *slog.Logger

	mu            sync.Mutex
	routeCalls    map[string]int
	routeRequests map[string][]capturedRequest
}

func newServer(fixtures map[string][]string, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{
		fixtures:      fixtures,
		logger:        logger,
		routeCalls:    make(map[string]int),
		routeRequests: make(map[string][]capturedRequest),
	}
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		fixtureDir string
		port       int
	)
	cmd := &cobra.Command{
		Use:          "mock-llm",
		Short:        "OpenAI-compatible fixture server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

			if fixtureDir == "" {
				fixtureDir = os.Getenv("MOCK_LLM_FIXTURES")
			}
			var fsys fs.FS
			if fixtureDir != "" {
				fsys = os.DirFS(fixtureDir)
			} else {
				sub, err := fs.Sub(builtinFixtures, "fixtures")
				if err != nil {
					return err
				}
				fsys = sub
				fixtureDir = "(built-in)"
			}

			fixtures, err := loadFixtures(fsys)
			if err != nil {
				return fmt.Errorf("load fixtures from %s: %w", fixtureDir, err)
			}
			logger.Info("Loaded fixtures", "dir", fixtureDir, "routes", len(fixtures))
			for route, seq := range fixtures {
				logger.Info("Fixture route", "route", route, "fixtures", len(seq))
			}

			addr := fmt.Sprintf(":%d", port)
			logger.Info("Mock LLM server listening", "addr", addr)
			return http.ListenAndServe(addr, newServer(fixtures, logger).routes())
		},
	}
	cmd.Flags().StringVar(&fixtureDir, "fixtures", "", "Directory containing fixture response files (default: built-in)")
	cmd.Flags().IntVar(&port, "port", 11434, "Port to listen on")
	return cmd
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Post("/chat/completions", s.handleChatCompletions)
	r.Get("/v1/models", s.handleModels)
	r.Get("/stats", s.handleStats)
	r.Get("/requests", s.handleRequests)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// routeOf picks the fixture route for a request from its system prompt.
func routeOf(req chatRequest) string {
	for _, m := range req.Messages {
		if m.Role != "system" {
			continue
		}
		switch {
		case m.Content == prompts.TaskPlanSystemPrompt:
			return routeTaskPlan
		case m.Content == prompts.SummarySystemPrompt:
			return routeSummary
		}
	}
	return req.Model
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	route := routeOf(req)

	seq, ok := s.fixtures[route]
	if !ok {
		seq, ok = s.fixtures[strings.TrimPrefix(route, "mock-")]
	}
	if !ok {
		s.logger.Warn("No fixture for request", "call", callNum, "route", route, "model", req.Model)
		http.Error(w, fmt.Sprintf("no fixture for route %q", route), http.StatusNotFound)
		return
	}

	s.mu.Lock()
	callIndex := s.routeCalls[route]
	s.routeCalls[route] = callIndex + 1
	s.routeRequests[route] = append(s.routeRequests[route], capturedRequest{
		Route:     route,
		Model:     req.Model,
		Messages:  req.Messages,
		CallIndex: callIndex + 1,
		Timestamp: time.Now().UnixMilli(),
	})
	s.mu.Unlock()

	content := seq[min(callIndex, len(seq)-1)]
	s.logger.Info("Serving fixture",
		"call", callNum,
		"route", route,
		"model", req.Model,
		"call_index", callIndex+1,
		"fixtures", len(seq))

	writeJSON(w, http.StatusOK, chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Index:        0,
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	})
}

// handleModels lists the fixture routes as models.
func (s *server) handleModels(w http.ResponseWriter, _ *http.Request) {
	type modelEntry struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	names := make([]string, 0, len(s.fixtures))
	for name := range s.fixtures {
		names = append(names, name)
	}
	sort.Strings(names)
	models := make([]modelEntry, 0, len(names))
	for _, name := range names {
		models = append(models, modelEntry{ID: name, Object: "model", OwnedBy: "mock-llm"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"object": "list", "data": models})
}

// handleStats returns total_calls and the per-route calls_by_route breakdown.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byRoute := make(map[string]int, len(s.routeCalls))
	for route, n := range s.routeCalls {
		byRoute[route] = n
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"total_calls":    s.calls.Load(),
		"calls_by_route": byRoute,
	})
}

// handleRequests returns captured requests, optionally filtered by
// ?route= and ?call= (1-indexed).
func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	routeFilter := r.URL.Query().Get("route")
	callFilter, callErr := strconv.Atoi(r.URL.Query().Get("call"))

	s.mu.Lock()
	result := make(map[string][]capturedRequest)
	for route, reqs := range s.routeRequests {
		if routeFilter != "" && route != routeFilter {
			continue
		}
		for _, req := range reqs {
			if callErr == nil && req.CallIndex != callFilter {
				continue
			}
			result[route] = append(result[route], req)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"requests_by_route": result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// numberedFileRe matches files like "task_plan.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads the JSON files at the root of fsys into route → sequence.
// Numbered files come first in numeric order, then the base file.
func loadFixtures(fsys fs.FS) (map[string][]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	base := make(map[string]string)
	numbered := make(map[string]map[int]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".json" {
			continue
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in %s", name)
		}

		if m := numberedFileRe.FindStringSubmatch(name); m != nil {
			index, _ := strconv.Atoi(m[2])
			if numbered[m[1]] == nil {
				numbered[m[1]] = make(map[int]string)
			}
			numbered[m[1]][index] = string(data)
			continue
		}
		base[strings.TrimSuffix(name, ".json")] = string(data)
	}

	fixtures := make(map[string][]string)
	for route, byIndex := range numbered {
		indices := make([]int, 0, len(byIndex))
		for i := range byIndex {
			indices = append(indices, i)
		}
		sort.Ints(indices)
		for _, i := range indices {
			fixtures[route] = append(fixtures[route], byIndex[i])
		}
	}
	for route, content := range base {
		fixtures[route] = append(fixtures[route], content)
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found")
	}
	return fixtures, nil
}
