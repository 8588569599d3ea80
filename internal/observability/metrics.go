// Package observability provides Prometheus metrics and the telemetry
// endpoint.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/medtel-go/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application
type Metrics struct {
	registry  *prometheus.Registry
	Pipeline  *metrics.PipelineMetrics
	Warehouse *metrics.WarehouseMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric
// collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	pipelineMetrics, err := metrics.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
	}

	warehouseMetrics, err := metrics.NewWarehouseMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Pipeline:  pipelineMetrics,
		Warehouse: warehouseMetrics,
	}, nil
}

// Registry exposes the underlying registry for the telemetry endpoint
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
