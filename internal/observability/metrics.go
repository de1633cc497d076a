package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "websurfer"

type moduleMetrics struct {
	turnTotal    *prometheus.CounterVec
	turnDuration prometheus.Histogram

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
	toolErrorsTotal       *prometheus.CounterVec

	llmCallTotal    *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec

	summarizerInputTokens prometheus.Histogram

	pageFetchTotal    *prometheus.CounterVec
	pageFetchDuration prometheus.Histogram

	cacheSelectionTotal *prometheus.CounterVec
	cacheLookupTotal    *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			turnTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "turn_total",
					Help:      "Total surfer turns by outcome (reply, empty, error).",
				},
				[]string{"outcome"},
			),
			turnDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "turn_duration_seconds",
					Help:      "Surfer turn duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_execution_total",
					Help:      "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "tool_execution_duration_seconds",
					Help:      "Tool execution duration in seconds by tool.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			toolErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "tool_errors_total",
					Help:      "Total tool execution errors by tool.",
				},
				[]string{"tool"},
			),
			llmCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "llm_call_total",
					Help:      "Total model calls by provider and status (success, error, cached).",
				},
				[]string{"provider", "status"},
			),
			llmCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "llm_call_duration_seconds",
					Help:      "Model call duration in seconds by provider.",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			summarizerInputTokens: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "summarizer_input_tokens",
					Help:      "Estimated token count of page text sent to the summarizer.",
					Buckets:   prometheus.ExponentialBuckets(256, 2, 8),
				},
			),
			pageFetchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "page_fetch_total",
					Help:      "Total page fetches by status.",
				},
				[]string{"status"},
			),
			pageFetchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: namespace,
					Name:      "page_fetch_duration_seconds",
					Help:      "Page fetch duration in seconds.",
					Buckets:   prometheus.DefBuckets,
				},
			),
			cacheSelectionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "cache_selection_total",
					Help:      "Cache backend selection attempts by backend and status.",
				},
				[]string{"backend", "status"},
			),
			cacheLookupTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: namespace,
					Name:      "cache_lookup_total",
					Help:      "Completion cache lookups by backend and result (hit, miss, error).",
				},
				[]string{"backend", "result"},
			),
		}

		prometheus.MustRegister(
			m.turnTotal,
			m.turnDuration,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.toolErrorsTotal,
			m.llmCallTotal,
			m.llmCallDuration,
			m.summarizerInputTokens,
			m.pageFetchTotal,
			m.pageFetchDuration,
			m.cacheSelectionTotal,
			m.cacheLookupTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordTurn records a finished surfer turn. Outcome is one of reply, empty or error.
func RecordTurn(outcome string, duration time.Duration) {
	m := getMetrics()
	m.turnTotal.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(duration.Seconds())
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
	if !success {
		m.toolErrorsTotal.WithLabelValues(tool).Inc()
	}
}

func RecordLLMCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.llmCallTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.llmCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordLLMCacheHit(provider string) {
	m := getMetrics()
	m.llmCallTotal.WithLabelValues(provider, "cached").Inc()
}

func RecordSummarization(inputTokens int) {
	m := getMetrics()
	m.summarizerInputTokens.Observe(float64(inputTokens))
}

func RecordPageFetch(duration time.Duration, success bool) {
	m := getMetrics()
	m.pageFetchTotal.WithLabelValues(statusLabel(success)).Inc()
	m.pageFetchDuration.Observe(duration.Seconds())
}

// RecordCacheSelection records one step of the backend cascade.
// Status is selected, unavailable or skipped.
func RecordCacheSelection(backend, status string) {
	m := getMetrics()
	m.cacheSelectionTotal.WithLabelValues(backend, status).Inc()
}

func RecordCacheLookup(backend, result string) {
	m := getMetrics()
	m.cacheLookupTotal.WithLabelValues(backend, result).Inc()
}
