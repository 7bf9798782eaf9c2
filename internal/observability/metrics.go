package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "civic_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipelines.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: pipeline, outcome={success,failure,placeholder}
	RunDuration   *prometheus.HistogramVec // labels: pipeline
	RunInProgress *prometheus.GaugeVec     // labels: pipeline
	LastSuccess   *prometheus.GaugeVec     // labels: pipeline

	// Acquisition and filtering.
	SourceAttempts *prometheus.CounterVec // labels: pipeline, source, outcome={success,empty,error}
	Records        *prometheus.GaugeVec   // labels: pipeline, stage
	FilterSkipped  *prometheus.CounterVec // labels: pipeline, step

	// Upstream HTTP.
	UpstreamRequests *prometheus.CounterVec   // labels: target, outcome={success,http_error,transport_error}
	UpstreamDuration *prometheus.HistogramVec // labels: target

	// Post-run publishing.
	PublishTotal *prometheus.CounterVec // labels: publisher, outcome={success,error}
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"pipeline", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete acquire-filter-normalize-write run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"pipeline"}),
		RunInProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_in_progress",
			Help:      "1 while a run is executing, 0 otherwise.",
		}, []string{"pipeline"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that replaced the output file.",
		}, []string{"pipeline"}),
		SourceAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_attempts_total",
			Help:      "Source adapter invocations by outcome.",
		}, []string{"pipeline", "source", "outcome"}),
		Records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "Record count after each stage of the most recent run.",
		}, []string{"pipeline", "stage"}),
		FilterSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filter_skipped_total",
			Help:      "Filter steps passed through because their column did not resolve.",
		}, []string{"pipeline", "step"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream HTTP requests by target and outcome.",
		}, []string{"target", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream HTTP request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"target"}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Post-run publish attempts by publisher and outcome.",
		}, []string{"publisher", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunsTotal,
		m.RunDuration,
		m.RunInProgress,
		m.LastSuccess,
		m.SourceAttempts,
		m.Records,
		m.FilterSkipped,
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.PublishTotal,
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
