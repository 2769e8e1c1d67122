package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the daily pipeline.
type Metrics struct {
	Runs                 *prometheus.CounterVec // labels: outcome={success,failure}
	RunDuration          prometheus.Histogram
	SourceRows           prometheus.Counter
	AggregateRows        prometheus.Counter
	MeasurementsWritten  prometheus.Counter
	MeasurementsDeleted  prometheus.Counter
	SignalsCreated       prometheus.Counter
	FetchDuration        prometheus.Histogram
	LastSuccessTimestamp prometheus.Gauge
	SchedulerRunning     prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.Runs,
		m.RunDuration,
		m.SourceRows,
		m.AggregateRows,
		m.MeasurementsWritten,
		m.MeasurementsDeleted,
		m.SignalsCreated,
		m.FetchDuration,
		m.LastSuccessTimestamp,
		m.SchedulerRunning,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wind_etl",
			Name:      "runs_total",
			Help:      "Daily runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wind_etl",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete daily run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SourceRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wind_etl",
			Name:      "source_rows_total",
			Help:      "Raw rows fetched from the source.",
		}),
		AggregateRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wind_etl",
			Name:      "aggregate_rows_total",
			Help:      "10-minute aggregate records computed.",
		}),
		MeasurementsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wind_etl",
			Name:      "measurements_written_total",
			Help:      "Measurement rows inserted into the target store.",
		}),
		MeasurementsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wind_etl",
			Name:      "measurements_deleted_total",
			Help:      "Measurement rows replaced or cleared by re-runs.",
		}),
		SignalsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wind_etl",
			Name:      "signals_created_total",
			Help:      "Signal dimension rows created on first reference.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wind_etl",
			Name:      "fetch_duration_seconds",
			Help:      "Raw series fetch latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccessTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wind_etl",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wind_etl",
			Name:      "scheduler_running",
			Help:      "1 when the daily scheduler is active, 0 when shut down.",
		}),
	}
}
