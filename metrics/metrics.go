// Package metrics holds the service's Prometheus collectors.
//
// Collectors live on an explicit registry owned by Metrics, so tests and
// multiple instances never share state. A nil *Metrics accepts every
// Observe call and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "treespora"

// Summary sources.
const (
	SourceCache    = "cache"
	SourceLLM      = "llm"
	SourceFallback = "fallback"
)

// Metrics records LLM, generation and HTTP activity.
type Metrics struct {
	registry *prometheus.Registry

	llmRequests  *prometheus.CounterVec
	llmDuration  *prometheus.HistogramVec
	summaries    *prometheus.CounterVec
	taskPlans    *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM calls by capability and outcome (ok or error kind).",
		}, []string{"capability", "outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM call latency.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 120},
		}, []string{"capability"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_requests_total",
			Help:      "Plan summaries served by source.",
		}, []string{"source"}),
		taskPlans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_plans_total",
			Help:      "Task plan generations by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.llmRequests,
		m.llmDuration,
		m.summaries,
		m.taskPlans,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLLMCall implements llm.Observer.
func (m *Metrics) ObserveLLMCall(capability, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(capability, outcome).Inc()
	m.llmDuration.WithLabelValues(capability).Observe(duration.Seconds())
}

// ObserveSummary counts a served summary.
func (m *Metrics) ObserveSummary(source string) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(source).Inc()
}

// ObserveTaskPlan counts a task plan generation.
func (m *Metrics) ObserveTaskPlan(outcome string) {
	if m == nil {
		return
	}
	m.taskPlans.WithLabelValues(outcome).Inc()
}

// ObserveHTTP records one finished HTTP request.
func (m *Metrics) ObserveHTTP(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}
