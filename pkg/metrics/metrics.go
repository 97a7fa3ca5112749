// Package metrics holds the process-wide Prometheus registry.
//
// Metrics are disabled until InitRegistry is called. While disabled, every
// New*Metrics constructor returns nil and instrumented components skip
// collection entirely.
//
// A CLI run is short lived, so nothing is scraped. Collected metrics are
// either written to a file for the node_exporter textfile collector or
// pushed to a Pushgateway when the command exits.
package metrics

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/push"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry enables metrics collection and returns the registry. Calling
// it again returns the existing registry.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// Reset disables metrics and drops the registry.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
}

// WriteTextfile writes every registered metric to path in the text
// exposition format. The file is replaced atomically.
func WriteTextfile(path string) error {
	reg := GetRegistry()
	if reg == nil {
		return fmt.Errorf("metrics are not enabled")
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Push sends every registered metric to the Pushgateway at url under job.
func Push(ctx context.Context, url, job string) error {
	reg := GetRegistry()
	if reg == nil {
		return fmt.Errorf("metrics are not enabled")
	}
	if err := push.New(url, job).Gatherer(reg).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
