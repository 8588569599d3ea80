package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics contains Prometheus metrics for pipeline runs
type PipelineMetrics struct {
	registry *prometheus.Registry

	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	runsActiveGauge prometheus.Gauge

	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry *prometheus.Registry) (*PipelineMetrics, error) {
	m := &PipelineMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() error {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"status"}, // status: success, failure
	)

	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_run_duration_seconds",
			Help:    "Time taken for complete pipeline runs",
			Buckets: prometheus.ExponentialBuckets(BucketStart100ms, BucketFactor2, BucketCount12),
		},
	)

	m.runsActiveGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_runs_active",
			Help: "Number of pipeline runs currently executing",
		},
	)

	m.stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_steps_total",
			Help: "Total number of executed pipeline steps",
		},
		[]string{"step", "status"}, // status: succeeded, failed, skipped
	)

	m.stepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_step_duration_seconds",
			Help:    "Time taken for individual pipeline steps",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"step"},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.runsActiveGauge,
		m.stepsTotal,
		m.stepDuration,
	}
	return nil
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordRunStart marks a run as active
func (m *PipelineMetrics) RecordRunStart() {
	m.runsActiveGauge.Inc()
}

// RecordRunComplete records a finished run
func (m *PipelineMetrics) RecordRunComplete(success bool, durationSeconds float64) {
	m.runsActiveGauge.Dec()
	status := "success"
	if !success {
		status = "failure"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(durationSeconds)
}

// RecordStep records a finished step
func (m *PipelineMetrics) RecordStep(step, status string, durationSeconds float64) {
	m.stepsTotal.WithLabelValues(step, status).Inc()
	if status != "skipped" {
		m.stepDuration.WithLabelValues(step).Observe(durationSeconds)
	}
}
