package config

import (
	"strings"

	"github.com/marmos91/tensorscope/internal/bytesize"
	"github.com/marmos91/tensorscope/pkg/checkpoint"
	"github.com/marmos91/tensorscope/pkg/remote/hub"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyRemoteDefaults(&cfg.Remote)
	applyFetchDefaults(&cfg.Fetch)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Job == "" {
		cfg.Job = "tensorscope"
	}
}

// applyRemoteDefaults sets repository backend defaults.
func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.Type == "" {
		cfg.Type = RemoteHub
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Revision == "" {
		cfg.Revision = "main"
	}
	if cfg.Hub.Endpoint == "" {
		cfg.Hub.Endpoint = hub.DefaultEndpoint
	}
	if cfg.Hub.Timeout == 0 {
		cfg.Hub.Timeout = hub.DefaultTimeout
	}
	// Cache.Dir has no default here: an empty value resolves to the hub
	// cache location at run time, which depends on the environment.
}

// applyFetchDefaults sets header fetch defaults.
func applyFetchDefaults(cfg *FetchConfig) {
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = checkpoint.DefaultMaxConcurrent
	}
	if cfg.MaxHeaderSize == 0 {
		cfg.MaxHeaderSize = bytesize.ByteSize(safetensors.DefaultMaxHeaderSize)
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Remote: RemoteConfig{
			Type: RemoteHub,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
