package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// extraction and fusion pipeline.
type Metrics struct {
	ScansProcessed  *prometheus.CounterVec   // labels: channel
	ScansSkipped    *prometheus.CounterVec   // labels: channel, reason={out_of_bounds,download,decode,duplicate}
	ScanDuration    *prometheus.HistogramVec // labels: channel
	PipelineRunning prometheus.Gauge

	// Archive download metrics, shared by the satellite and ground clients.
	ArchiveDownloads *prometheus.CounterVec // labels: outcome={ok,cached,missing,error}
	ArchiveBytes     prometheus.Counter

	// Fusion metrics.
	RowsExported *prometheus.CounterVec // labels: dataset={goes,sonda,features}
	RowsDropped  *prometheus.CounterVec // labels: reason={out_of_bounds,missing_channel,missing_ground}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ScansProcessed,
		m.ScansSkipped,
		m.ScanDuration,
		m.PipelineRunning,
		m.ArchiveDownloads,
		m.ArchiveBytes,
		m.RowsExported,
		m.RowsDropped,
	)
	return m
}

// NewMetricsForTesting creates Metrics with an unregistered collector set to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ScansProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_etl",
			Name:      "scans_processed_total",
			Help:      "Satellite scans successfully extracted, by channel.",
		}, []string{"channel"}),
		ScansSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_etl",
			Name:      "scans_skipped_total",
			Help:      "Satellite scans skipped without aborting the run, by channel and reason.",
		}, []string{"channel", "reason"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "solar_etl",
			Name:      "scan_duration_seconds",
			Help:      "Per-scan download plus window extraction duration.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"channel"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "solar_etl",
			Name:      "pipeline_running",
			Help:      "1 when a pipeline run is active, 0 when shut down.",
		}),
		ArchiveDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_etl",
			Name:      "archive_downloads_total",
			Help:      "Ground archive download attempts by outcome.",
		}, []string{"outcome"}),
		ArchiveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "solar_etl",
			Name:      "archive_bytes_total",
			Help:      "Total bytes of ground archives downloaded.",
		}),
		RowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_etl",
			Name:      "rows_exported_total",
			Help:      "Rows written to output files, by dataset.",
		}, []string{"dataset"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "solar_etl",
			Name:      "rows_dropped_total",
			Help:      "Timestamps dropped by the completeness policy, by reason.",
		}, []string{"reason"}),
	}
}
