package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Content event metrics
var (
	ContentEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_content_events_total",
		Help: "Total number of content events processed",
	}, []string{"event"})

	ContentEventErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_content_event_errors_total",
		Help: "Total number of content events that aborted their transaction",
	}, []string{"event"})

	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_reactions_total",
		Help: "Total number of reaction operations",
	}, []string{"operation", "type"})
)

// Report workflow metrics
var (
	ReportsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_reports_created_total",
		Help: "Total number of content reports created",
	}, []string{"category", "severity"})

	ReportTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_report_transitions_total",
		Help: "Total number of report status transitions",
	}, []string{"from", "to"})

	ReportTransitionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_report_transitions_rejected_total",
		Help: "Total number of rejected report status transitions",
	})
)

// Enforcement metrics
var (
	EnforcementActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_enforcement_actions_total",
		Help: "Total number of warnings and restrictions issued or lifted",
	}, []string{"action"})

	SweepRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_sweep_runs_total",
		Help: "Total number of expiry sweep runs",
	}, []string{"status"})

	SweptRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_swept_rows_total",
		Help: "Total number of rows deactivated by the expiry sweeper",
	}, []string{"kind"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "haven_sweep_duration_seconds",
		Help:    "Expiry sweep run duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// Notification metrics
var (
	NotificationsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_notifications_created_total",
		Help: "Total number of notifications persisted",
	}, []string{"type"})

	NotificationsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_notifications_skipped_total",
		Help: "Total number of notifications suppressed before persisting",
	}, []string{"reason"})

	BatchFlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haven_batch_flushes_total",
		Help: "Total number of reaction batch flush runs",
	}, []string{"status"})

	NotificationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_notifications_expired_total",
		Help: "Total number of notifications removed by retention cleanup",
	})
)

// Queue depth gauges, refreshed by the collector
var (
	PendingReportsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haven_pending_reports",
		Help: "Current number of reports awaiting review",
	})

	ActiveWarningsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haven_active_warnings",
		Help: "Current number of active user warnings",
	})

	ActiveRestrictionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haven_active_restrictions",
		Help: "Current number of active user restrictions",
	})

	StagedReactionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "haven_staged_reactions",
		Help: "Current number of reactions staged for batch notification",
	})
)

// Identity cache metrics
var (
	IdentityCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_identity_cache_hits_total",
		Help: "Total number of identity cache hits",
	})

	IdentityCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haven_identity_cache_misses_total",
		Help: "Total number of identity cache misses",
	})
)
