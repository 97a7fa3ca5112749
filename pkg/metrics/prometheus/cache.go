package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tensorscope/pkg/cache"
	"github.com/marmos91/tensorscope/pkg/metrics"
)

func init() {
	metrics.RegisterCacheMetricsConstructor(NewCacheMetrics)
}

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	lookups         *prometheus.CounterVec
	installs        *prometheus.CounterVec
	installDuration prometheus.Histogram
	installBytes    prometheus.Histogram
}

// NewCacheMetrics creates a new Prometheus-backed cache.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCacheMetrics() cache.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorscope_cache_lookups_total",
				Help: "Total number of header cache lookups by result",
			},
			[]string{"result"}, // "hit", "miss"
		),
		installs: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorscope_cache_installs_total",
				Help: "Total number of header cache installs by status",
			},
			[]string{"status"}, // "success", "error"
		),
		installDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tensorscope_cache_install_duration_milliseconds",
				Help:    "Duration of header cache installs in milliseconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
			},
		),
		installBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "tensorscope_cache_install_bytes",
				Help: "Distribution of header blob sizes written to the cache",
				Buckets: []float64{
					1024,     // 1KB - a handful of tensors
					16384,    // 16KB
					65536,    // 64KB
					262144,   // 256KB - typical LLM shard
					1048576,  // 1MB
					4194304,  // 4MB
					16777216, // 16MB
				},
			},
		),
	}
}

func (m *cacheMetrics) RecordLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *cacheMetrics) RecordInstall(bytes int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.installs.WithLabelValues(status(err)).Inc()
	if err != nil {
		return
	}
	m.installDuration.Observe(duration.Seconds() * 1000)
	m.installBytes.Observe(float64(bytes))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
