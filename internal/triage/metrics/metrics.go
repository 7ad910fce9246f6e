package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClassificationsTotal tracks classifications per branch and outcome
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushwatch_classifications_total",
			Help: "Total number of push classifications",
		},
		[]string{"branch", "status"},
	)

	// ClassifyLatency tracks end-to-end classification latency
	ClassifyLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pushwatch_classify_latency_seconds",
			Help:    "Push classification latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"branch"},
	)

	// EvidenceSourceCalls tracks evidence source hits, misses and failures
	EvidenceSourceCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushwatch_evidence_source_calls_total",
			Help: "Total number of evidence source calls",
		},
		[]string{"source", "outcome"},
	)

	// PlannedActions tracks follow-up actions recommended per branch
	PlannedActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushwatch_planned_actions_total",
			Help: "Total number of planned follow-up actions",
		},
		[]string{"branch", "action"},
	)

	// RegressionGroups tracks group verdict counts per branch
	RegressionGroups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushwatch_regression_groups_total",
			Help: "Total number of classified failing groups",
		},
		[]string{"branch", "verdict"},
	)

	// MonitorErrors tracks monitor loop failures per branch
	MonitorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pushwatch_monitor_errors_total",
			Help: "Total number of monitor loop errors",
		},
		[]string{"branch"},
	)

	// HeadPushID tracks the latest push id seen per branch
	HeadPushID = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pushwatch_head_push_id",
			Help: "Latest push id observed on the branch",
		},
		[]string{"branch"},
	)

	// DBConnectionPoolUsage tracks database connection pool usage percent
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pushwatch_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
