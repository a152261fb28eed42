// Package metrics defines Prometheus collectors for the processing core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AIAttemptsTotal tracks provider attempts per task and model.
	AIAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_ai_attempts_total",
			Help: "Total number of AI provider attempts",
		},
		[]string{"task", "model"},
	)

	// AIOutcomesTotal tracks terminal operation outcomes by classification.
	AIOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_ai_outcomes_total",
			Help: "Total number of AI operations by outcome",
		},
		[]string{"task", "outcome"},
	)

	// AIFallbacksTotal tracks how often the fallback chain advanced.
	AIFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_ai_fallbacks_total",
			Help: "Total number of model fallbacks",
		},
		[]string{"task", "from_model", "to_model"},
	)

	// AILatency tracks end-to-end operation latency.
	AILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_ai_operation_seconds",
			Help:    "AI operation latency in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"task"},
	)

	// StagesCompleted tracks completed pipeline stages.
	StagesCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_stages_completed_total",
			Help: "Total number of completed pipeline stages",
		},
		[]string{"stage"},
	)

	// StagesFailed tracks failed pipeline stages by error kind.
	StagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_stages_failed_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage", "kind"},
	)

	// ContentPausedForQuota gauges content currently paused on quota.
	ContentPausedForQuota = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "processor_content_paused_quota",
			Help: "Content items currently paused waiting for quota recovery",
		},
	)

	// ResumeAttemptsTotal tracks scheduler resume attempts by result.
	ResumeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_resume_attempts_total",
			Help: "Total number of auto-resume attempts",
		},
		[]string{"result"},
	)

	// SchedulerJobRuns tracks scheduler job executions.
	SchedulerJobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "processor_scheduler_job_runs_total",
			Help: "Total number of scheduler job runs",
		},
		[]string{"job", "result"},
	)

	// QuotaUsagePercent gauges daily usage per task type.
	QuotaUsagePercent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "processor_quota_usage_percent",
			Help: "Estimated daily quota usage percentage per task type",
		},
		[]string{"task"},
	)

	// DBConnectionPoolUsage gauges database pool utilisation.
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "processor_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
