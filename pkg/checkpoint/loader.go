package checkpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/internal/telemetry"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// DefaultMaxConcurrent is the number of shards fetched at once.
const DefaultMaxConcurrent = 8

// Loader fetches the headers of every shard of a checkpoint.
//
// Shards are fetched in consecutive batches of at most MaxConcurrent. A
// batch starts only after the previous one completed. The first failure
// cancels the rest of its batch and is returned unchanged; no partial result
// is returned.
type Loader struct {
	// Source is the repository the checkpoint lives in.
	Source remote.Source

	// Fetcher produces each shard header.
	Fetcher HeaderFetcher

	// Store records the resolved revision before shards are fetched. May be
	// nil when only LoadShards is used.
	Store Store

	// MaxConcurrent bounds in-flight fetches. Defaults to DefaultMaxConcurrent.
	MaxConcurrent int

	// Progress is told about every loaded shard. May be nil.
	Progress Progress

	// Metrics receives load observations. May be nil.
	Metrics Metrics
}

// Load resolves the revision, discovers the shards and fetches their headers.
func (l *Loader) Load(ctx context.Context) (result map[string]*safetensors.Header, err error) {
	repo, revision := l.Source.Repo(), l.Source.Revision()
	ctx = logger.WithContext(ctx, logger.NewLogContext(repo, revision))
	ctx, span := telemetry.StartLoadSpan(ctx, repo, revision)
	defer span.End()
	ctx = telemetry.LogContext(ctx)

	start := time.Now()
	var shards []string
	defer func() {
		if l.Metrics != nil {
			l.Metrics.RecordLoad(len(shards), time.Since(start), err)
		}
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
	}()

	commit, err := l.Source.ResolveRevision(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve revision %s: %w", revision, err)
	}
	telemetry.SetAttributes(ctx, telemetry.Commit(commit))
	if l.Store != nil && commit != revision {
		if err := l.createRef(ctx, revision, commit); err != nil {
			return nil, err
		}
	}

	shards, err = ResolveShards(ctx, l.Source)
	if err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "loading checkpoint headers",
		logger.KeyCommit, commit,
		logger.KeyShards, len(shards))

	result, err = l.LoadShards(ctx, shards)
	if err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "checkpoint headers loaded",
		logger.KeyShards, len(result),
		logger.KeyDurationMs, logger.Duration(start))
	return result, nil
}

func (l *Loader) createRef(ctx context.Context, revision, commit string) error {
	ctx, span := telemetry.StartCacheSpan(ctx, "create_ref",
		telemetry.Revision(revision), telemetry.Commit(commit))
	defer span.End()

	if err := l.Store.CreateRef(revision, commit); err != nil {
		telemetry.RecordError(ctx, err)
		return fmt.Errorf("record revision %s: %w", revision, err)
	}
	return nil
}

// LoadShards fetches the headers of shards in batches.
func (l *Loader) LoadShards(ctx context.Context, shards []string) (map[string]*safetensors.Header, error) {
	size := l.MaxConcurrent
	if size <= 0 {
		size = DefaultMaxConcurrent
	}
	progress := l.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	var mu sync.Mutex
	headers := make(map[string]*safetensors.Header, len(shards))

	for batch, first := 0, 0; first < len(shards); batch, first = batch+1, first+size {
		shardsInBatch := shards[first:min(first+size, len(shards))]
		logger.DebugCtx(ctx, "fetching batch", logger.KeyBatch, batch, logger.KeyShards, len(shardsInBatch))

		g, gctx := errgroup.WithContext(ctx)
		for _, shard := range shardsInBatch {
			g.Go(func() error {
				h, err := l.Fetcher.Fetch(gctx, shard)
				if err != nil {
					return err
				}
				mu.Lock()
				headers[shard] = h
				mu.Unlock()
				progress.Inc(1)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	progress.Finish()
	return headers, nil
}
