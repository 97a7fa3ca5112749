package config

import (
	"testing"
	"time"

	"github.com/marmos91/tensorscope/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected default log output 'stderr', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Remote(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Remote.Type != RemoteHub {
		t.Errorf("Expected default remote type 'hub', got %q", cfg.Remote.Type)
	}
	if cfg.Remote.Revision != "main" {
		t.Errorf("Expected default revision 'main', got %q", cfg.Remote.Revision)
	}
	if cfg.Remote.Hub.Endpoint != "https://huggingface.co" {
		t.Errorf("Expected default hub endpoint, got %q", cfg.Remote.Hub.Endpoint)
	}
	if cfg.Remote.Hub.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", cfg.Remote.Hub.Timeout)
	}
}

func TestApplyDefaults_Fetch(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Fetch.MaxConcurrent != 8 {
		t.Errorf("Expected default max_concurrent 8, got %d", cfg.Fetch.MaxConcurrent)
	}
	if cfg.Fetch.MaxHeaderSize != bytesize.ByteSize(100_000_000) {
		t.Errorf("Expected default max_header_size 100000000, got %d", cfg.Fetch.MaxHeaderSize)
	}
}

func TestApplyDefaults_Telemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Telemetry.Enabled {
		t.Error("Expected telemetry disabled by default")
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) != 6 {
		t.Errorf("Expected 6 default profile types, got %v", cfg.Telemetry.Profiling.ProfileTypes)
	}
	if cfg.Metrics.Job != "tensorscope" {
		t.Errorf("Expected default job 'tensorscope', got %q", cfg.Metrics.Job)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json", Output: "/tmp/x.log"},
		Remote:  RemoteConfig{Type: "S3", Revision: "v2"},
		Fetch:   FetchConfig{MaxConcurrent: 2, MaxHeaderSize: bytesize.MiB},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/tmp/x.log" {
		t.Errorf("Expected explicit output preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Remote.Type != RemoteS3 {
		t.Errorf("Expected type normalized to 's3', got %q", cfg.Remote.Type)
	}
	if cfg.Remote.Revision != "v2" {
		t.Errorf("Expected explicit revision preserved, got %q", cfg.Remote.Revision)
	}
	if cfg.Fetch.MaxConcurrent != 2 {
		t.Errorf("Expected explicit max_concurrent preserved, got %d", cfg.Fetch.MaxConcurrent)
	}
	if cfg.Fetch.MaxHeaderSize != bytesize.MiB {
		t.Errorf("Expected explicit max_header_size preserved, got %d", cfg.Fetch.MaxHeaderSize)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
	if cfg.Cache.Dir != "" {
		t.Errorf("Expected empty cache dir default, got %q", cfg.Cache.Dir)
	}
	if cfg.Remote.Hub.Token != "" {
		t.Error("Expected no token in default config")
	}
}
