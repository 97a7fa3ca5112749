package metrics

import (
	"github.com/marmos91/tensorscope/pkg/checkpoint"
)

// NewCheckpointMetrics creates a Prometheus-backed checkpoint.Metrics
// instance. Returns nil if metrics are not enabled.
func NewCheckpointMetrics() checkpoint.Metrics {
	if !IsEnabled() || newPrometheusCheckpointMetrics == nil {
		return nil
	}
	return newPrometheusCheckpointMetrics()
}

var newPrometheusCheckpointMetrics func() checkpoint.Metrics

// RegisterCheckpointMetricsConstructor registers the Prometheus checkpoint
// metrics constructor.
func RegisterCheckpointMetricsConstructor(constructor func() checkpoint.Metrics) {
	newPrometheusCheckpointMetrics = constructor
}
