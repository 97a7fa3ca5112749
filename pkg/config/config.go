package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/tensorscope/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "TENSORSCOPE"

// Remote backend types.
const (
	RemoteHub = "hub"
	RemoteS3  = "s3"
)

// Config represents the tensorscope configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (TENSORSCOPE_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics controls Prometheus metrics export
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Remote selects and configures the repository backend
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// Cache configures the local header cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Fetch controls how shard headers are fetched
	Fetch FetchConfig `mapstructure:"fetch" yaml:"fetch"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	// Default: stderr
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures Prometheus metrics collection.
// The CLI is short-lived, so metrics are exported once at exit instead of
// being served over HTTP.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics are collected
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Textfile is a path the registry is written to at exit, in the
	// node_exporter textfile collector format
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`

	// PushGateway is the URL of a Prometheus Pushgateway to push to at exit
	PushGateway string `mapstructure:"push_gateway" validate:"omitempty,url" yaml:"push_gateway,omitempty"`

	// Job is the Pushgateway job name
	// Default: "tensorscope"
	Job string `mapstructure:"job" yaml:"job"`
}

// RemoteConfig selects where repositories are read from.
type RemoteConfig struct {
	// Type is the backend type
	// Valid values: hub, s3
	// Default: hub
	Type string `mapstructure:"type" validate:"required,oneof=hub s3" yaml:"type"`

	// Revision is the default branch, tag or commit to inspect
	// Default: "main"
	Revision string `mapstructure:"revision" validate:"required" yaml:"revision"`

	// Hub configures the Hugging Face compatible HTTP backend
	Hub HubConfig `mapstructure:"hub" yaml:"hub"`

	// S3 configures the bucket mirror backend
	S3 S3Config `mapstructure:"s3" yaml:"s3"`
}

// HubConfig configures the hub backend.
type HubConfig struct {
	// Endpoint is the hub base URL
	// Default: "https://huggingface.co" (HF_ENDPOINT is honored when unset)
	Endpoint string `mapstructure:"endpoint" validate:"required,url" yaml:"endpoint"`

	// Token is the bearer token for gated or private repositories
	// HF_TOKEN is honored when unset
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// Timeout bounds a single HTTP request
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`

	// UserAgent is sent with every request
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	// Bucket is the bucket holding mirrored repositories (required for type s3)
	Bucket string `mapstructure:"bucket" yaml:"bucket,omitempty"`

	// Region is the AWS region (SDK default chain when empty)
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint is a custom endpoint for S3-compatible services
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to every object key
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle enables path-style addressing (MinIO, Localstack)
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style"`

	// AccessKeyID and SecretAccessKey select static credentials
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`

	// MaxRetries overrides the SDK retry attempts when positive
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0" yaml:"max_retries,omitempty"`
}

// CacheConfig configures the local header cache.
type CacheConfig struct {
	// Dir is the cache root
	// Default: the Hugging Face hub cache (HF_HUB_CACHE, HF_HOME/hub,
	// XDG_CACHE_HOME/huggingface/hub or ~/.cache/huggingface/hub)
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// FetchConfig controls header fetching.
type FetchConfig struct {
	// MaxConcurrent bounds the number of shards fetched at once
	// Default: 8
	MaxConcurrent int `mapstructure:"max_concurrent" validate:"min=1,max=64" yaml:"max_concurrent"`

	// MaxHeaderSize rejects shards declaring a larger JSON header
	// Supports human-readable formats: "100MB", "64Mi"
	// Default: 100000000 bytes
	MaxHeaderSize bytesize.ByteSize `mapstructure:"max_header_size" validate:"gt=0" yaml:"max_header_size"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (TENSORSCOPE_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvFallbacks(&cfg)
	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration and fails with instructions when an explicit
// configuration file does not exist.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  tensorscope config init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: TENSORSCOPE_REMOTE_HUB_TOKEN=hf_xxx
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about, so every
	// leaf is bound explicitly to make env work without a config file.
	bindEnvKeys(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/tensorscope/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvKeys walks the mapstructure tags of t and binds each leaf key.
func bindEnvKeys(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		if field.Type.Kind() == reflect.Struct {
			bindEnvKeys(v, field.Type, key)
			continue
		}
		_ = v.BindEnv(key)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// applyEnvFallbacks honors the standard Hugging Face variables when the
// corresponding settings were not configured.
func applyEnvFallbacks(cfg *Config) {
	if cfg.Remote.Hub.Token == "" {
		cfg.Remote.Hub.Token = os.Getenv("HF_TOKEN")
	}
	if cfg.Remote.Hub.Endpoint == "" {
		cfg.Remote.Hub.Endpoint = os.Getenv("HF_ENDPOINT")
	}
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize so
// config files can use sizes like "100MB" or "64Mi".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tensorscope")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tensorscope")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
