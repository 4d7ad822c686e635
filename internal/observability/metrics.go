package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sounding_graphs"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	MessagesReceived     prometheus.Counter
	MessagesDelivered    prometheus.Counter
	MessagesDroppedEmpty prometheus.Counter
	SourceErrors         *prometheus.CounterVec // labels: kind={connection,lookup,io,parse}
	SinkErrors           prometheus.Counter
	PipelineRunning      prometheus.Gauge

	// Run metrics.
	Runs            prometheus.Counter
	DeliverDuration prometheus.Histogram
	LastSuccess     prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total messages taken from the loader queue.",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total merged series handed to the output sink.",
		}),
		MessagesDroppedEmpty: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_empty_total",
			Help:      "Total messages dropped because no run survived parsing or analysis.",
		}),
		SourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_errors_total",
			Help:      "Loader failures by kind.",
		}, []string{"kind"}),
		SinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Total output sink failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress, 0 otherwise.",
		}),
		Runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total pipeline runs started.",
		}),
		DeliverDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "deliver_duration_seconds",
			Help:      "Duration of merging and delivering one series.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that delivered at least one series.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.MessagesReceived,
		m.MessagesDelivered,
		m.MessagesDroppedEmpty,
		m.SourceErrors,
		m.SinkErrors,
		m.PipelineRunning,
		m.Runs,
		m.DeliverDuration,
		m.LastSuccess,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
