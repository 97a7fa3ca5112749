package checkpoint

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

func testHeaders() map[string]*safetensors.Header {
	return map[string]*safetensors.Header{
		"model-00002-of-00002.safetensors": {
			Tensors: map[string]safetensors.TensorEntry{
				"model.layers.10.mlp.weight": {DType: safetensors.BF16, Shape: []uint64{8, 4}, DataOffsets: [2]uint64{0, 64}},
				"lm_head.weight":             {DType: safetensors.F32, Shape: []uint64{4}, DataOffsets: [2]uint64{64, 80}},
			},
		},
		"model-00001-of-00002.safetensors": {
			Tensors: map[string]safetensors.TensorEntry{
				"model.layers.2.mlp.weight": {DType: safetensors.BF16, Shape: []uint64{8, 4}, DataOffsets: [2]uint64{0, 64}},
				"model.embed.weight":        {DType: safetensors.BF16, Shape: []uint64{16, 4}, DataOffsets: [2]uint64{64, 192}},
			},
		},
	}
}

func TestTensorsMergedAndSorted(t *testing.T) {
	tensors := Tensors(testHeaders())
	require.Len(t, tensors, 4)

	var names []string
	for _, tensor := range tensors {
		names = append(names, tensor.Name)
	}
	assert.Equal(t, []string{
		"lm_head.weight",
		"model.embed.weight",
		"model.layers.2.mlp.weight",
		"model.layers.10.mlp.weight",
	}, names)

	assert.Equal(t, "model-00002-of-00002.safetensors", tensors[0].Shard)
	assert.Equal(t, uint64(4), tensors[0].NumElements())
	assert.Equal(t, uint64(128), tensors[1].ByteLen())
}

func TestFilter(t *testing.T) {
	tensors := Tensors(testHeaders())
	got := Filter(tensors, "MLP")
	require.Len(t, got, 2)
	assert.Equal(t, "model.layers.2.mlp.weight", got[0].Name)

	assert.Len(t, Filter(tensors, ""), 4)
	assert.Empty(t, Filter(tensors, "attention"))
}

func TestSummarize(t *testing.T) {
	s := Summarize(testHeaders())
	assert.Equal(t, 2, s.Shards)
	assert.Equal(t, 4, s.Tensors)
	assert.Equal(t, uint64(32+4+32+64), s.Parameters)
	assert.Equal(t, uint64(64+16+64+128), s.Bytes)
	assert.Equal(t, map[string]int{"BF16": 3, "F32": 1}, s.DTypes)
}

func TestFetchModelConfig(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		src := newMemSource()
		src.set(ModelConfigFile, []byte(`{
			"model_type": "llama",
			"architectures": ["LlamaForCausalLM"],
			"torch_dtype": "bfloat16",
			"quantization_config": {"quant_method": "compressed-tensors"}
		}`))

		cfg, err := FetchModelConfig(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, &ModelConfig{
			ModelType:     "llama",
			Architectures: []string{"LlamaForCausalLM"},
			TorchDType:    "bfloat16",
			Quantized:     true,
		}, cfg)
	})

	t.Run("absent", func(t *testing.T) {
		cfg, err := FetchModelConfig(context.Background(), newMemSource())
		require.NoError(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("unquantized", func(t *testing.T) {
		src := newMemSource()
		src.set(ModelConfigFile, []byte(`{"model_type": "gpt2", "quantization_config": null}`))
		cfg, err := FetchModelConfig(context.Background(), src)
		require.NoError(t, err)
		assert.False(t, cfg.Quantized)
	})

	t.Run("broken", func(t *testing.T) {
		src := newMemSource()
		src.set(ModelConfigFile, []byte(`{`))
		_, err := FetchModelConfig(context.Background(), src)
		assert.Error(t, err)
	})

	t.Run("network failure", func(t *testing.T) {
		src := newMemSource()
		src.fail(ModelConfigFile, fmt.Errorf("%w: timeout", remote.ErrRemote))
		_, err := FetchModelConfig(context.Background(), src)
		assert.ErrorIs(t, err, remote.ErrRemote)
	})
}
