package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/internal/telemetry"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// HeaderFetcher produces the header of one shard.
type HeaderFetcher interface {
	Fetch(ctx context.Context, shard string) (*safetensors.Header, error)
}

// Store is the header cache used by Fetcher and Loader. *cache.Store
// implements it.
type Store interface {
	Lookup(revision, shard string) (*safetensors.Header, bool)
	Install(commit, shard, etag string, payload []byte) error
	CreateRef(revision, commit string) error
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// MaxHeaderSize bounds the header length read from a remote shard.
	// Defaults to safetensors.DefaultMaxHeaderSize.
	MaxHeaderSize uint64

	// Metrics receives fetch observations. May be nil.
	Metrics Metrics
}

// Fetcher reads shard headers from the cache, falling back to two range
// reads against the source and installing what it read.
type Fetcher struct {
	src       remote.Source
	store     Store
	maxHeader uint64
	metrics   Metrics
}

var _ HeaderFetcher = (*Fetcher)(nil)

// NewFetcher creates a Fetcher for the revision src was opened at.
func NewFetcher(src remote.Source, store Store, cfg FetcherConfig) *Fetcher {
	if cfg.MaxHeaderSize == 0 {
		cfg.MaxHeaderSize = safetensors.DefaultMaxHeaderSize
	}
	return &Fetcher{
		src:       src,
		store:     store,
		maxHeader: cfg.MaxHeaderSize,
		metrics:   cfg.Metrics,
	}
}

// Fetch returns the header of shard. Cache entries that are missing or
// unreadable are refetched. Remote and storage failures are returned as
// *ShardError.
func (f *Fetcher) Fetch(ctx context.Context, shard string) (*safetensors.Header, error) {
	ctx = logger.ShardContext(ctx, shard)
	ctx, span := telemetry.StartShardSpan(ctx, "checkpoint.fetch_header", shard)
	defer span.End()

	start := time.Now()
	if h, ok := f.store.Lookup(f.src.Revision(), shard); ok {
		telemetry.SetAttributes(ctx, telemetry.CacheHit(true), telemetry.Tensors(len(h.Tensors)))
		if f.metrics != nil {
			f.metrics.RecordFetch(SourceCache, time.Since(start), nil)
		}
		logger.DebugCtx(ctx, "header served from cache", logger.KeyTensors, len(h.Tensors))
		return h, nil
	}
	telemetry.SetAttributes(ctx, telemetry.CacheHit(false))

	h, err := f.fetchRemote(ctx, shard)
	if f.metrics != nil {
		f.metrics.RecordFetch(SourceRemote, time.Since(start), err)
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.DebugCtx(ctx, "header fetch failed", logger.KeyError, err)
		return nil, err
	}

	telemetry.SetAttributes(ctx, telemetry.Tensors(len(h.Tensors)), telemetry.HeaderBytes(h.Length))
	logger.DebugCtx(ctx, "header fetched",
		logger.KeyHeaderSize, h.Length,
		logger.KeyTensors, len(h.Tensors),
		logger.KeyDurationMs, logger.Duration(start))
	return h, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, shard string) (*safetensors.Header, error) {
	id, err := f.src.Stat(ctx, shard)
	if err != nil {
		return nil, shardError(shard, StageStat, err)
	}

	prefix, err := f.readRange(ctx, shard, 0, safetensors.PrefixSize)
	if err != nil {
		return nil, shardError(shard, StageRangeRead, err)
	}
	length, err := safetensors.DecodeLength(prefix)
	if err != nil {
		return nil, shardError(shard, StageParse, fmt.Errorf("%w: %w", ErrMalformedHeader, err))
	}
	if length > f.maxHeader {
		return nil, shardError(shard, StageParse,
			fmt.Errorf("%w: header length %d exceeds limit %d", ErrMalformedHeader, length, f.maxHeader))
	}

	payload, err := f.readRange(ctx, shard, safetensors.PrefixSize, length)
	if err != nil {
		return nil, shardError(shard, StageRangeRead, err)
	}
	h, err := safetensors.ParseHeader(payload)
	if err != nil {
		return nil, shardError(shard, StageParse, fmt.Errorf("%w: %w", ErrMalformedHeader, err))
	}

	if err := f.store.Install(id.Revision, shard, id.ETag, payload); err != nil {
		return nil, shardError(shard, StageInstall, err)
	}
	if revision := f.src.Revision(); revision != id.Revision {
		if err := f.store.CreateRef(revision, id.Revision); err != nil {
			return nil, shardError(shard, StageInstall, err)
		}
	}
	return h, nil
}

func (f *Fetcher) readRange(ctx context.Context, shard string, offset, length uint64) ([]byte, error) {
	data, err := f.src.ReadRange(ctx, shard, offset, length)
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) != length {
		return nil, fmt.Errorf("%w: got %d of %d bytes at offset %d", remote.ErrShortRead, len(data), length, offset)
	}
	if f.metrics != nil {
		f.metrics.RecordRangeRead(len(data))
	}
	return data, nil
}
