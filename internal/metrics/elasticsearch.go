package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Elasticsearch metrics for monitoring the recipe index
var (
	ElasticsearchQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elasticsearch_request_duration_seconds",
			Help:    "Duration of Elasticsearch requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"index", "operation", "status"},
	)

	ElasticsearchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasticsearch_errors_total",
			Help: "Total number of Elasticsearch errors",
		},
		[]string{"index", "operation"},
	)

	// Index sync outcomes per mutation kind (create, update, rate, comment, delete)
	IndexSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_index_sync_total",
			Help: "Total number of recipe index sync attempts",
		},
		[]string{"operation", "result"},
	)

	AnalyticsEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_analytics_events_total",
			Help: "Total number of search analytics events by outcome",
		},
		[]string{"result"},
	)

	BackfillDocumentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_backfill_documents_total",
			Help: "Total number of documents written by backfill",
		},
	)

	ReconciliationRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_reconciliation_runs_total",
			Help: "Total number of reconciliation runs",
		},
	)

	ReconciliationResynced = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recipe_reconciliation_resynced",
			Help: "Number of recipes resynced in the last reconciliation",
		},
	)

	ReconciliationOrphansRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recipe_reconciliation_orphans_removed_total",
			Help: "Total number of index documents removed because their recipe no longer exists",
		},
	)

	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recipe_reconciliation_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)
