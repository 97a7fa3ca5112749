package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marmos91/tensorscope/internal/logger"
	"github.com/marmos91/tensorscope/internal/natsort"
	"github.com/marmos91/tensorscope/internal/telemetry"
	"github.com/marmos91/tensorscope/pkg/remote"
)

const (
	// IndexFile maps tensor names to the shard that holds them.
	IndexFile = "model.safetensors.index.json"

	// DefaultShard is the file name of an unsharded checkpoint.
	DefaultShard = "model.safetensors"
)

// Index is the content of IndexFile.
type Index struct {
	Metadata  map[string]any    `json:"metadata,omitempty"`
	WeightMap map[string]string `json:"weight_map"`
}

// ParseIndex decodes an index manifest. The weight map must be present and
// every shard it names must be a valid relative file name.
func ParseIndex(data []byte) (*Index, error) {
	var raw struct {
		Metadata  map[string]any     `json:"metadata"`
		WeightMap *map[string]string `json:"weight_map"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedIndex, err)
	}
	if raw.WeightMap == nil || *raw.WeightMap == nil {
		return nil, fmt.Errorf("%w: missing weight_map", ErrMalformedIndex)
	}
	for tensor, shard := range *raw.WeightMap {
		if err := remote.ValidateFile(shard); err != nil {
			return nil, fmt.Errorf("%w: tensor %q: %v", ErrMalformedIndex, tensor, err)
		}
	}
	return &Index{Metadata: raw.Metadata, WeightMap: *raw.WeightMap}, nil
}

// Shards returns the distinct shard names of the index in natural order.
func (ix *Index) Shards() []string {
	seen := make(map[string]struct{}, len(ix.WeightMap))
	shards := make([]string, 0, len(ix.WeightMap))
	for _, shard := range ix.WeightMap {
		if _, ok := seen[shard]; ok {
			continue
		}
		seen[shard] = struct{}{}
		shards = append(shards, shard)
	}
	natsort.Sort(shards)
	return shards
}

// ResolveShards returns the shards of the checkpoint served by src. A
// repository without an index holds a single DefaultShard.
func ResolveShards(ctx context.Context, src remote.Source) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkpoint.resolve_shards")
	defer span.End()

	data, err := src.Get(ctx, IndexFile)
	if errors.Is(err, remote.ErrNotFound) {
		logger.DebugCtx(ctx, "no shard index, assuming single file checkpoint", logger.KeyShard, DefaultShard)
		telemetry.SetAttributes(ctx, telemetry.Shards(1))
		return []string{DefaultShard}, nil
	}
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("fetch %s: %w", IndexFile, err)
	}

	ix, err := ParseIndex(data)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}
	shards := ix.Shards()
	telemetry.SetAttributes(ctx, telemetry.Shards(len(shards)))
	logger.DebugCtx(ctx, "shard index resolved", logger.KeyShards, len(shards))
	return shards, nil
}
