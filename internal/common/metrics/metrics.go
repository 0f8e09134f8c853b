package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

var (
	DealChatTurns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealchat_turns_total",
			Help: "Dialog turns handled, by transport and classified intent",
		},
		[]string{"transport", "intent"},
	)

	DealChatTurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealchat_turn_duration_seconds",
			Help:    "End-to-end turn latency including reply generation",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"transport"},
	)

	DealChatTurnErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealchat_turn_errors_total",
			Help: "Turns that could not be computed",
		},
		[]string{"transport", "error_code"},
	)

	DealsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealchat_deals_committed_total",
			Help: "Deals created by the conversational flow",
		},
	)

	DealCommitsAborted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dealchat_commits_aborted_total",
			Help: "Commits abandoned because the organization no longer exists",
		},
	)

	GenerationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealchat_generation_failures_total",
			Help: "Reply generation calls replaced by the fallback message",
		},
		[]string{"error_code"},
	)

	ReplyCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealchat_reply_cache_lookups_total",
			Help: "Reply cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealchat_event_publish_failures_total",
			Help: "Deal events that could not be published",
		},
		[]string{"event_type"},
	)
)
