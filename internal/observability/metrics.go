package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ipress_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard.
type Metrics struct {
	// Ingest metrics.
	RowsRead       *prometheus.CounterVec // labels: source={ipress,districts,ccpp}
	RowsRejected   *prometheus.CounterVec // labels: reason
	HospitalsKept  prometheus.Gauge
	StageDuration  *prometheus.HistogramVec // labels: stage
	StageFailures  *prometheus.CounterVec   // labels: stage
	PipelineLoaded prometheus.Gauge

	// Analysis metrics.
	JoinUnmatched      prometheus.Gauge
	ProximityAnalyses  *prometheus.CounterVec // labels: department, outcome={success,error}
	DistrictsExported  prometheus.Counter
	RenderCache        *prometheus.CounterVec   // labels: artifact, result={hit,miss}
	RenderDuration     *prometheus.HistogramVec // labels: artifact
	HTTPRequests       *prometheus.CounterVec   // labels: route, code
	HTTPRequestSeconds *prometheus.HistogramVec // labels: route
}

func newMetrics(help bool) *Metrics {
	h := func(s string) string {
		if help {
			return s
		}
		return ""
	}
	return &Metrics{
		RowsRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      h("Records read from each input file."),
		}, []string{"source"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_rejected_total",
			Help:      h("Spreadsheet rows dropped by the retention rules, by reason."),
		}, []string{"reason"}),
		HospitalsKept: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hospitals_loaded",
			Help:      h("Hospitals kept after filtering."),
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      h("Duration of each load stage."),
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      h("Load stages that ended in error."),
		}, []string{"stage"}),
		PipelineLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_loaded",
			Help:      h("1 once the hospital stage has loaded, 0 before."),
		}),
		JoinUnmatched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "join_unmatched_hospitals",
			Help:      h("Hospitals that fell outside every district polygon."),
		}),
		ProximityAnalyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proximity_analyses_total",
			Help:      h("Proximity analyses computed, by department and outcome."),
		}, []string{"department", "outcome"}),
		DistrictsExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "districts_exported_total",
			Help:      h("District counts published to Kafka."),
		}),
		RenderCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_cache_total",
			Help:      h("Rendered artifact cache lookups by artifact and result."),
		}, []string{"artifact", "result"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "render_duration_seconds",
			Help:      h("Time spent rendering an artifact."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"artifact"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      h("HTTP requests by route pattern and status code."),
		}, []string{"route", "code"}),
		HTTPRequestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      h("HTTP request latency by route pattern."),
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// NewMetrics creates and registers all dashboard metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.RowsRead,
		m.RowsRejected,
		m.HospitalsKept,
		m.StageDuration,
		m.StageFailures,
		m.PipelineLoaded,
		m.JoinUnmatched,
		m.ProximityAnalyses,
		m.DistrictsExported,
		m.RenderCache,
		m.RenderDuration,
		m.HTTPRequests,
		m.HTTPRequestSeconds,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are never exposed, for one-shot
// CLIs that have no /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics(true)
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}
