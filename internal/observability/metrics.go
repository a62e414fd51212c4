package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "reservoir_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ETL runs.
type Metrics struct {
	// Upstream call metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: source, outcome={success,unavailable}
	UpstreamRetries  *prometheus.CounterVec   // labels: source
	UpstreamDuration *prometheus.HistogramVec // labels: source

	// Per-location outcomes of the daily run.
	LocationsProcessed *prometheus.CounterVec // labels: outcome={reported,no_current,failed}
	FailureRate        prometheus.Gauge

	// Backfill metrics.
	BackfillLocations    *prometheus.CounterVec // labels: outcome={fetched,failed}
	BackfillObservations prometheus.Counter

	Runs        *prometheus.CounterVec   // labels: kind, status
	RunDuration *prometheus.HistogramVec // labels: kind
	RunActive   prometheus.Gauge
}

// NewMetrics creates and registers all ETL metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.UpstreamRequests,
		m.UpstreamRetries,
		m.UpstreamDuration,
		m.LocationsProcessed,
		m.FailureRate,
		m.BackfillLocations,
		m.BackfillObservations,
		m.Runs,
		m.RunDuration,
		m.RunActive,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Upstream HTTP requests by source and outcome.",
		}, []string{"source", "outcome"}),
		UpstreamRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Retried upstream requests by source.",
		}, []string{"source"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"source"}),
		LocationsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_processed_total",
			Help:      "Locations handled by daily runs, by outcome.",
		}, []string{"outcome"}),
		FailureRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_failure_rate",
			Help:      "Fraction of roster locations that failed in the most recent daily run.",
		}),
		BackfillLocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_locations_total",
			Help:      "Locations attempted by backfill, by outcome.",
		}, []string{"outcome"}),
		BackfillObservations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_observations_total",
			Help:      "Observations added to the baseline by backfill.",
		}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed runs by kind and status.",
		}, []string{"kind", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"kind"}),
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
	}
}
