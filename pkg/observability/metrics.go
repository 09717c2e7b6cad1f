// Package observability provides Prometheus metrics for the ruder client.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts completion calls by mode (gen, structured,
	// stream, tool_select), model, and outcome.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruder_requests_total",
			Help: "Completion requests",
		},
		[]string{"mode", "model", "status"},
	)

	// RequestDuration records completion call duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ruder_request_duration_seconds",
			Help:    "Completion request duration",
			Buckets: LLMBuckets,
		},
		[]string{"mode", "model"},
	)

	// StreamsActive tracks the number of open streaming connections.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ruder_streams_active",
			Help: "Active streaming connections",
		},
	)

	// TokensTotal counts tokens reported by non-streamed responses,
	// by direction (prompt/completion).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruder_tokens_total",
			Help: "Token count",
		},
		[]string{"model", "direction"},
	)

	// ToolSelectionsTotal counts tool orchestration selections by chosen
	// tool name and outcome (selected, none, unknown).
	ToolSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ruder_tool_selections_total",
			Help: "Tool selections",
		},
		[]string{"tool", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamsActive,
		TokensTotal,
		ToolSelectionsTotal,
	)
}
