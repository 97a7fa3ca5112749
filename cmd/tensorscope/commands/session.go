package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/tensorscope/internal/cli/output"
	"github.com/marmos91/tensorscope/internal/cli/progress"
	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/internal/telemetry"
	"github.com/marmos91/tensorscope/pkg/cache"
	"github.com/marmos91/tensorscope/pkg/checkpoint"
	"github.com/marmos91/tensorscope/pkg/config"
	"github.com/marmos91/tensorscope/pkg/metrics"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/remote/hub"
	"github.com/marmos91/tensorscope/pkg/remote/s3"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

const shutdownTimeout = 5 * time.Second

// session holds everything one command needs to inspect a repository.
type session struct {
	cfg     *config.Config
	source  remote.Source
	store   *cache.Store
	loader  *checkpoint.Loader
	printer *output.Printer
	spinner *progress.Spinner

	shutdownTracing func(context.Context) error
	stopProfiling   func() error
}

// newSession loads the configuration, applies the global flags and wires a
// loader for repo.
func newSession(cmd *cobra.Command, repo string) (*session, error) {
	ctx := cmd.Context()

	cfg, err := config.MustLoad(cfgFile)
	if err != nil {
		return nil, err
	}
	if revision != "" {
		cfg.Remote.Revision = revision
	}
	if verbose {
		cfg.Logging.Level = "DEBUG"
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:     cfg,
		printer: output.NewPrinter(cmd.OutOrStdout(), format, !noColor && output.ColorSupported(os.Stdout)),
	}

	s.shutdownTracing, err = telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.stopProfiling, err = telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    telemetry.ServiceName,
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		_ = s.shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to initialize profiling: %w", err)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	s.source, err = newSource(ctx, cfg, repo)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.store, err = cache.New(cache.Config{
		Dir:           cfg.Cache.Dir,
		Repo:          repo,
		MaxHeaderSize: cfg.Fetch.MaxHeaderSize.Uint64(),
		Metrics:       metrics.NewCacheMetrics(),
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	// Fetcher and Loader share one instance: the collectors register once.
	cm := metrics.NewCheckpointMetrics()
	fetcher := checkpoint.NewFetcher(s.source, s.store, checkpoint.FetcherConfig{
		MaxHeaderSize: cfg.Fetch.MaxHeaderSize.Uint64(),
		Metrics:       cm,
	})
	s.loader = &checkpoint.Loader{
		Source:        s.source,
		Fetcher:       fetcher,
		Store:         s.store,
		MaxConcurrent: cfg.Fetch.MaxConcurrent,
		Metrics:       cm,
	}
	if !noProgress {
		s.spinner = progress.NewSpinner(os.Stderr, "Fetching headers of "+repo)
		s.loader.Progress = s.spinner
	}

	logger.Debug("session ready",
		logger.KeyRepo, repo,
		logger.KeyRevision, cfg.Remote.Revision,
		logger.KeyBackend, cfg.Remote.Type,
		logger.KeyPath, s.store.Root())
	return s, nil
}

// newSource builds the remote.Source selected by cfg.Remote.Type.
func newSource(ctx context.Context, cfg *config.Config, repo string) (remote.Source, error) {
	rc := cfg.Remote
	switch rc.Type {
	case config.RemoteS3:
		return s3.NewFromConfig(ctx, repo, rc.Revision, s3.Config{
			Bucket:          rc.S3.Bucket,
			Region:          rc.S3.Region,
			Endpoint:        rc.S3.Endpoint,
			KeyPrefix:       rc.S3.KeyPrefix,
			ForcePathStyle:  rc.S3.ForcePathStyle,
			AccessKeyID:     rc.S3.AccessKeyID,
			SecretAccessKey: rc.S3.SecretAccessKey,
			MaxRetries:      rc.S3.MaxRetries,
		})
	case config.RemoteHub, "":
		userAgent := rc.Hub.UserAgent
		if userAgent == "" {
			userAgent = "tensorscope/" + Version
		}
		return hub.New(repo, rc.Revision, hub.Config{
			Endpoint:  rc.Hub.Endpoint,
			Token:     rc.Hub.Token,
			Timeout:   rc.Hub.Timeout,
			UserAgent: userAgent,
		})
	default:
		return nil, fmt.Errorf("unknown remote type %q", rc.Type)
	}
}

// load fetches every shard header. The spinner is stopped before returning.
func (s *session) load(ctx context.Context) (map[string]*safetensors.Header, error) {
	if s.spinner != nil {
		s.spinner.Start()
		defer s.spinner.Stop()
	}
	return s.loader.Load(ctx)
}

// commit returns the commit the requested revision was resolved to, as
// recorded in the cache.
func (s *session) commit() string {
	rev := s.source.Revision()
	if commit, ok := s.store.ResolveRef(rev); ok {
		return commit
	}
	return rev
}

// Close exports collected metrics and flushes telemetry. Failures are logged.
func (s *session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metrics.IsEnabled() {
		if path := s.cfg.Metrics.Textfile; path != "" {
			if err := metrics.WriteTextfile(path); err != nil {
				logger.Warn("Failed to write metrics", logger.KeyError, err)
			}
		}
		if url := s.cfg.Metrics.PushGateway; url != "" {
			if err := metrics.Push(ctx, url, s.cfg.Metrics.Job); err != nil {
				logger.Warn("Failed to push metrics", logger.KeyError, err)
			}
		}
	}
	if s.stopProfiling != nil {
		if err := s.stopProfiling(); err != nil {
			logger.Warn("Failed to stop profiler", logger.KeyError, err)
		}
	}
	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			logger.Warn("Failed to flush traces", logger.KeyError, err)
		}
	}
}
