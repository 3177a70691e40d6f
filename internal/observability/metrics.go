package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lst_anomaly"

// Metrics holds the Prometheus counters, histograms, and gauges for the anomaly jobs.
type Metrics struct {
	RowsLoaded     *prometheus.CounterVec // labels: sensor
	LoadErrors     *prometheus.CounterVec // labels: sensor, reason={missing_column,empty,read}
	RowsMerged     prometheus.Gauge
	RowsDropped    prometheus.Counter
	AnomaliesFound prometheus.Gauge

	ThresholdValue *prometheus.GaugeVec   // labels: method
	Decisions      *prometheus.CounterVec // labels: sensor, decision
	SceneMetrics   *prometheus.CounterVec // labels: outcome={ok,unavailable}

	JobRuns        *prometheus.CounterVec   // labels: job, outcome={success,error}
	JobDuration    *prometheus.HistogramVec // labels: job
	SchedulerAlive prometheus.Gauge

	// Weather archive metrics.
	WeatherRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	WeatherCache       *prometheus.CounterVec // labels: result={hit,miss}
	WeatherAPIDuration prometheus.Histogram
}

func newMetrics() *Metrics {
	return &Metrics{
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Source rows normalized, by sensor.",
		}, []string{"sensor"}),
		LoadErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_errors_total",
			Help:      "Source tables that could not be loaded, by sensor and reason.",
		}, []string{"sensor", "reason"}),
		RowsMerged: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rows_merged",
			Help:      "Rows in the last merged comparison table.",
		}),
		RowsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_dropped_no_date_total",
			Help:      "Source rows dropped from the merge because their date did not parse.",
		}),
		AnomaliesFound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "anomaly_rows",
			Help:      "Rows above the ΔT threshold in the last run.",
		}),
		ThresholdValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "threshold_delta_t_celsius",
			Help:      "Last computed ΔT threshold, labelled by estimation method.",
		}, []string{"method"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Ensemble decisions by sensor and label.",
		}, []string{"sensor", "decision"}),
		SceneMetrics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scene_metrics_total",
			Help:      "Raster scene metric lookups by outcome.",
		}, []string{"outcome"}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job executions by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Duration of a complete job run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"job"}),
		SchedulerAlive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the job scheduler is active, 0 when shut down.",
		}),
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather archive API requests by outcome.",
		}, []string{"outcome"}),
		WeatherCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_cache_total",
			Help:      "Weather cache lookups by result.",
		}, []string{"result"}),
		WeatherAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "weather_api_duration_seconds",
			Help:      "Weather archive API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RowsLoaded, m.LoadErrors, m.RowsMerged, m.RowsDropped, m.AnomaliesFound,
		m.ThresholdValue, m.Decisions, m.SceneMetrics,
		m.JobRuns, m.JobDuration, m.SchedulerAlive,
		m.WeatherRequests, m.WeatherCache, m.WeatherAPIDuration,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	m := newMetrics()
	prometheus.NewRegistry().MustRegister(m.collectors()...)
	return m
}
