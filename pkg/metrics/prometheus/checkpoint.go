package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/tensorscope/pkg/checkpoint"
	"github.com/marmos91/tensorscope/pkg/metrics"
)

func init() {
	metrics.RegisterCheckpointMetricsConstructor(NewCheckpointMetrics)
}

// checkpointMetrics is the Prometheus implementation of checkpoint.Metrics.
type checkpointMetrics struct {
	fetches        *prometheus.CounterVec
	fetchDuration  *prometheus.HistogramVec
	rangeReads     prometheus.Counter
	rangeReadBytes prometheus.Counter
	loads          *prometheus.CounterVec
	loadDuration   prometheus.Histogram
	loadShards     prometheus.Gauge
}

// NewCheckpointMetrics creates a new Prometheus-backed checkpoint.Metrics
// instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCheckpointMetrics() checkpoint.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &checkpointMetrics{
		fetches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorscope_header_fetches_total",
				Help: "Total number of shard header fetches by source and status",
			},
			[]string{"source", "status"}, // source: "cache", "remote"
		),
		fetchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tensorscope_header_fetch_duration_milliseconds",
				Help:    "Duration of shard header fetches in milliseconds",
				Buckets: []float64{1, 5, 10, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"source"},
		),
		rangeReads: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tensorscope_range_reads_total",
				Help: "Total number of successful remote range reads",
			},
		),
		rangeReadBytes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "tensorscope_range_read_bytes_total",
				Help: "Total bytes received by remote range reads",
			},
		),
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "tensorscope_checkpoint_loads_total",
				Help: "Total number of checkpoint loads by status",
			},
			[]string{"status"},
		),
		loadDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tensorscope_checkpoint_load_duration_seconds",
				Help:    "Duration of checkpoint loads in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		loadShards: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "tensorscope_checkpoint_shards",
				Help: "Number of shards of the last loaded checkpoint",
			},
		),
	}
}

func (m *checkpointMetrics) RecordFetch(source string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(source, status(err)).Inc()
	m.fetchDuration.WithLabelValues(source).Observe(duration.Seconds() * 1000)
}

func (m *checkpointMetrics) RecordRangeRead(bytes int) {
	if m == nil {
		return
	}
	m.rangeReads.Inc()
	m.rangeReadBytes.Add(float64(bytes))
}

func (m *checkpointMetrics) RecordLoad(shards int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(status(err)).Inc()
	m.loadDuration.Observe(duration.Seconds())
	if err == nil {
		m.loadShards.Set(float64(shards))
	}
}
