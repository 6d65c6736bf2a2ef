package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports operation timings and import-run counters
// through a prometheus registry for deployments scraped externally.
type PrometheusMetricsRecorder struct {
	operations  *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	runs        *prometheus.CounterVec
	rowsParsed  prometheus.Counter
	rowsEntered prometheus.Counter
}

// NewPrometheusMetricsRecorder constructs a recorder and registers its
// collectors with reg. Pass prometheus.DefaultRegisterer for process-global
// metrics.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	rec := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hatcherycore",
			Name:      "operations_total",
			Help:      "Store operations by name and outcome.",
		}, []string{"op", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hatcherycore",
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency by name.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hatcherycore",
			Name:      "import_runs_total",
			Help:      "Completed import runs by outcome.",
		}, []string{"outcome"}),
		rowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hatcherycore",
			Name:      "import_rows_parsed_total",
			Help:      "Rows parsed successfully across all import runs.",
		}),
		rowsEntered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hatcherycore",
			Name:      "import_rows_entered_total",
			Help:      "Rows that persisted at least one write across all import runs.",
		}),
	}
	for _, c := range []prometheus.Collector{rec.operations, rec.durations, rec.runs, rec.rowsParsed, rec.rowsEntered} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// ObserveOperation records one operation outcome and its latency.
func (r *PrometheusMetricsRecorder) ObserveOperation(op string, d time.Duration, outcome string) {
	r.operations.WithLabelValues(op, outcome).Inc()
	r.durations.WithLabelValues(op).Observe(d.Seconds())
}

// RecordRun records one import-run outcome and its row tallies.
func (r *PrometheusMetricsRecorder) RecordRun(success bool, rowsParsed, rowsEntered int) {
	outcome := "succeeded"
	if !success {
		outcome = "failed"
	}
	r.runs.WithLabelValues(outcome).Inc()
	r.rowsParsed.Add(float64(rowsParsed))
	r.rowsEntered.Add(float64(rowsEntered))
}
