package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// WarehouseMetrics contains Prometheus metrics for warehouse table
// materializations.
type WarehouseMetrics struct {
	registry *prometheus.Registry

	replacementsTotal    *prometheus.CounterVec
	replaceDuration      *prometheus.HistogramVec
	tableRowCountGauge   *prometheus.GaugeVec
	tableGenerationGauge *prometheus.GaugeVec

	collectors []prometheus.Collector
}

// NewWarehouseMetrics creates and registers new warehouse metrics
func NewWarehouseMetrics(registry *prometheus.Registry) (*WarehouseMetrics, error) {
	m := &WarehouseMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *WarehouseMetrics) initMetrics() error {
	m.replacementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warehouse_table_replacements_total",
			Help: "Total number of full table replacements",
		},
		[]string{"table", "status"}, // status: success, error
	)

	m.replaceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "warehouse_table_replace_duration_seconds",
			Help:    "Time taken for full table replacements",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
		[]string{"table"},
	)

	m.tableRowCountGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warehouse_table_rows",
			Help: "Row count of each warehouse table after its last replacement",
		},
		[]string{"table"},
	)

	m.tableGenerationGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "warehouse_table_generation",
			Help: "Materialization generation of each warehouse table",
		},
		[]string{"table"},
	)

	m.collectors = []prometheus.Collector{
		m.replacementsTotal,
		m.replaceDuration,
		m.tableRowCountGauge,
		m.tableGenerationGauge,
	}
	return nil
}

// Describe implements the Collector interface
func (m *WarehouseMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *WarehouseMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordReplacement records a table replacement attempt
func (m *WarehouseMetrics) RecordReplacement(table string, success bool, durationSeconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.replacementsTotal.WithLabelValues(table, status).Inc()
	m.replaceDuration.WithLabelValues(table).Observe(durationSeconds)
}

// RecordTableState records the post-replacement state of a table
func (m *WarehouseMetrics) RecordTableState(table string, rows int64, generation int64) {
	m.tableRowCountGauge.WithLabelValues(table).Set(float64(rows))
	m.tableGenerationGauge.WithLabelValues(table).Set(float64(generation))
}
