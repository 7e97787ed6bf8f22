// Package metrics holds the Prometheus collectors of the report engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Report execution metrics
var (
	// ReportExecutionsTotal tracks report executions by template and outcome
	ReportExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playreport",
			Name:      "report_executions_total",
			Help:      "Total number of report executions by template and outcome",
		},
		[]string{"template_id", "outcome"},
	)

	// ReportExecutionDuration tracks end-to-end execution latency
	ReportExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "playreport",
			Name:      "report_execution_duration_seconds",
			Help:      "Report execution duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"template_id"},
	)

	// ReportRowsReturned tracks page sizes actually returned
	ReportRowsReturned = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "playreport",
			Name:      "report_rows_returned",
			Help:      "Rows returned per report page",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 6),
		},
		[]string{"template_id"},
	)

	// ReportRetriesTotal tracks retries after transient store failures
	ReportRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playreport",
			Name:      "report_retries_total",
			Help:      "Total number of report retries after transient failures",
		},
		[]string{"template_id"},
	)

	// ReportRejectionsTotal tracks requests rejected before reaching the store
	ReportRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playreport",
			Name:      "report_rejections_total",
			Help:      "Total number of report requests rejected by kind",
		},
		[]string{"kind"},
	)
)

// Result cache metrics
var (
	// ReportCacheLookupsTotal tracks result cache lookups by outcome
	ReportCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playreport",
			Name:      "report_cache_lookups_total",
			Help:      "Result cache lookups by outcome",
		},
		[]string{"outcome"},
	)

	// ReportCacheInvalidationsTotal tracks invalidated entries
	ReportCacheInvalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "playreport",
			Name:      "report_cache_invalidated_entries_total",
			Help:      "Total number of result cache entries removed by invalidation",
		},
	)
)

// Scheduled report metrics
var (
	// ScheduledRunsTotal tracks scheduled report runs by status
	ScheduledRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "playreport",
			Name:      "scheduled_report_runs_total",
			Help:      "Total number of scheduled report runs by status",
		},
		[]string{"status"},
	)
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeExpired = "expired"
	OutcomeError   = "error"
	OutcomeShared  = "shared"
)
