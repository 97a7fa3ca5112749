package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tensorscope/pkg/remote"
)

func TestParseIndexDeduplicates(t *testing.T) {
	ix, err := ParseIndex([]byte(`{"weight_map": {"t1": "a.safetensors", "t2": "b.safetensors", "t3": "a.safetensors"}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.safetensors", "b.safetensors"}, ix.Shards())
}

func TestParseIndexNaturalOrder(t *testing.T) {
	ix, err := ParseIndex([]byte(`{
		"metadata": {"total_size": 123},
		"weight_map": {
			"a": "model-10-of-12.safetensors",
			"b": "model-2-of-12.safetensors",
			"c": "model-1-of-12.safetensors",
			"d": "model-2-of-12.safetensors"
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"model-1-of-12.safetensors",
		"model-2-of-12.safetensors",
		"model-10-of-12.safetensors",
	}, ix.Shards())
	assert.EqualValues(t, 123, ix.Metadata["total_size"])
}

func TestParseIndexEmptyWeightMap(t *testing.T) {
	ix, err := ParseIndex([]byte(`{"weight_map": {}}`))
	require.NoError(t, err)
	assert.Empty(t, ix.Shards())
}

func TestParseIndexMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"weight_map":`},
		{"array", `["a.safetensors"]`},
		{"missing weight_map", `{"metadata": {}}`},
		{"null weight_map", `{"weight_map": null}`},
		{"non string shard", `{"weight_map": {"t": 1}}`},
		{"escaping shard", `{"weight_map": {"t": "../a.safetensors"}}`},
		{"absolute shard", `{"weight_map": {"t": "/a.safetensors"}}`},
		{"empty shard", `{"weight_map": {"t": ""}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIndex([]byte(tt.data))
			assert.ErrorIs(t, err, ErrMalformedIndex)
		})
	}
}

func TestResolveShards(t *testing.T) {
	t.Run("index", func(t *testing.T) {
		src := newMemSource()
		src.set(IndexFile, []byte(`{"weight_map": {"x": "b.safetensors", "y": "a.safetensors"}}`))

		shards, err := ResolveShards(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, []string{"a.safetensors", "b.safetensors"}, shards)
	})

	t.Run("not found falls back to single file", func(t *testing.T) {
		shards, err := ResolveShards(context.Background(), newMemSource())
		require.NoError(t, err)
		assert.Equal(t, []string{DefaultShard}, shards)
	})

	t.Run("malformed", func(t *testing.T) {
		src := newMemSource()
		src.set(IndexFile, []byte(`not json`))
		_, err := ResolveShards(context.Background(), src)
		assert.ErrorIs(t, err, ErrMalformedIndex)
	})

	t.Run("network failure", func(t *testing.T) {
		src := newMemSource()
		src.fail(IndexFile, fmt.Errorf("%w: connection reset", remote.ErrRemote))
		_, err := ResolveShards(context.Background(), src)
		require.Error(t, err)
		assert.ErrorIs(t, err, remote.ErrRemote)
		assert.False(t, errors.Is(err, ErrMalformedIndex))
	})
}
