package metrics

import (
	"github.com/marmos91/tensorscope/pkg/cache"
)

// NewCacheMetrics creates a Prometheus-backed cache.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called) or the
// Prometheus implementation is not linked in. When nil is returned, callers
// should pass nil to cache.Config, which disables collection.
//
// Example usage:
//
//	metrics.InitRegistry()
//	store, err := cache.New(cache.Config{Repo: repo, Metrics: metrics.NewCacheMetrics()})
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() || newPrometheusCacheMetrics == nil {
		return nil
	}
	return newPrometheusCacheMetrics()
}

// newPrometheusCacheMetrics is implemented in pkg/metrics/prometheus/cache.go
// This indirection avoids import cycles while keeping the API clean
var newPrometheusCacheMetrics func() cache.Metrics

// RegisterCacheMetricsConstructor registers the Prometheus cache metrics constructor.
// Called by pkg/metrics/prometheus/cache.go during package initialization.
func RegisterCacheMetricsConstructor(constructor func() cache.Metrics) {
	newPrometheusCacheMetrics = constructor
}
