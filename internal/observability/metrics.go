// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	BarsLoaded      prometheus.Counter
	BarsStored      prometheus.Counter
	IngestionErrors *prometheus.CounterVec

	// Preparation metrics
	RowsInterpolated           prometheus.Counter
	SymbolsDropped             *prometheus.CounterVec
	FeatureComputationsSkipped *prometheus.CounterVec
	TargetsLabeled             prometheus.Counter
	WindowsEmitted             prometheus.Counter
	WindowsSkipped             *prometheus.CounterVec

	// Latency metrics
	StageDuration    *prometheus.HistogramVec
	PipelineDuration prometheus.Histogram

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "equity_window_lab"
	}

	return &Metrics{
		// Ingestion metrics
		BarsLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_loaded_total",
			Help:      "Total number of daily bars loaded from sources",
		}),
		BarsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "bars_stored_total",
			Help:      "Total number of daily bars stored to database",
		}),
		IngestionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by source",
		}, []string{"source"}),

		// Preparation metrics
		RowsInterpolated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "rows_interpolated_total",
			Help:      "Total number of rows introduced by gap filling",
		}),
		SymbolsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "symbols_dropped_total",
			Help:      "Total number of symbols dropped by reason",
		}, []string{"reason"}),
		FeatureComputationsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "feature_computations_skipped_total",
			Help:      "Total number of feature computations skipped by column",
		}, []string{"column"}),
		TargetsLabeled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "targets_labeled_total",
			Help:      "Total number of rows assigned a target label",
		}),
		WindowsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "windows_emitted_total",
			Help:      "Total number of training windows emitted",
		}),
		WindowsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "windows_skipped_total",
			Help:      "Total number of candidate windows rejected by reason",
		}, []string{"reason"}),

		// Latency metrics
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "preparation",
			Name:      "pipeline_duration_seconds",
			Help:      "End to end pipeline duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last successful pipeline run",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordStage records a stage duration observation.
func (m *Metrics) RecordStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}
