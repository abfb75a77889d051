package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Agent metrics
	AgentRunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "discoveo_cro_runs_started_total",
			Help: "Total number of CRO agent runs started",
		},
	)

	AgentRunsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_cro_runs_completed_total",
			Help: "Total number of CRO agent runs finished",
		},
		[]string{"status"},
	)

	AgentRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discoveo_cro_run_duration_seconds",
			Help:    "CRO agent run duration in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 240, 480},
		},
	)

	AgentTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discoveo_cro_run_turns",
			Help:    "Provider calls per CRO agent run",
			Buckets: []float64{1, 2, 4, 8, 12, 16, 20, 25},
		},
	)

	AgentTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_llm_tokens_total",
			Help: "LLM tokens consumed",
		},
		[]string{"component", "direction"},
	)

	// Tool metrics
	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_cro_tool_calls_total",
			Help: "Total number of agent tool invocations",
		},
		[]string{"tool", "status"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discoveo_cro_tool_duration_seconds",
			Help:    "Agent tool execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// Qualitative metrics
	EmbeddingsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_survey_embeddings_total",
			Help: "Survey responses processed by the embedding backfill",
		},
		[]string{"status"},
	)

	FeedbackAnalyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_feedback_analyses_total",
			Help: "Feedback theme analyses served",
		},
		[]string{"source"},
	)

	// Queue metrics
	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_tasks_processed_total",
			Help: "Background tasks handled by the worker",
		},
		[]string{"task_type", "status"},
	)

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discoveo_http_requests_total",
			Help: "HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discoveo_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Status labels shared by the counters above.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
