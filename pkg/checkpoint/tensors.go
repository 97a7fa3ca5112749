package checkpoint

import (
	"slices"
	"strings"

	"github.com/marmos91/tensorscope/internal/natsort"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// Tensor is one row of the merged tensor table.
type Tensor struct {
	Name        string            `json:"name" yaml:"name"`
	Shard       string            `json:"shard" yaml:"shard"`
	DType       safetensors.DType `json:"dtype" yaml:"dtype"`
	Shape       []uint64          `json:"shape" yaml:"shape"`
	DataOffsets [2]uint64         `json:"data_offsets" yaml:"data_offsets"`
}

// NumElements returns the number of elements of t.
func (t Tensor) NumElements() uint64 {
	return t.entry().NumElements()
}

// ByteLen returns the payload size of t according to its data offsets.
func (t Tensor) ByteLen() uint64 {
	return t.entry().ByteLen()
}

func (t Tensor) entry() safetensors.TensorEntry {
	return safetensors.TensorEntry{DType: t.DType, Shape: t.Shape, DataOffsets: t.DataOffsets}
}

// Tensors merges the tensor tables of headers, keyed by shard name, into
// one list sorted naturally by tensor name.
func Tensors(headers map[string]*safetensors.Header) []Tensor {
	var n int
	for _, h := range headers {
		n += len(h.Tensors)
	}

	out := make([]Tensor, 0, n)
	for shard, h := range headers {
		for name, e := range h.Tensors {
			out = append(out, Tensor{
				Name:        name,
				Shard:       shard,
				DType:       e.DType,
				Shape:       e.Shape,
				DataOffsets: e.DataOffsets,
			})
		}
	}
	slices.SortFunc(out, func(a, b Tensor) int {
		if c := natsort.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return natsort.Compare(a.Shard, b.Shard)
	})
	return out
}

// Filter returns the tensors whose name contains substr, case-insensitively.
func Filter(tensors []Tensor, substr string) []Tensor {
	if substr == "" {
		return tensors
	}
	substr = strings.ToLower(substr)
	out := make([]Tensor, 0, len(tensors))
	for _, t := range tensors {
		if strings.Contains(strings.ToLower(t.Name), substr) {
			out = append(out, t)
		}
	}
	return out
}

// Summary aggregates a tensor table.
type Summary struct {
	Shards     int            `json:"shards" yaml:"shards"`
	Tensors    int            `json:"tensors" yaml:"tensors"`
	Parameters uint64         `json:"parameters" yaml:"parameters"`
	Bytes      uint64         `json:"bytes" yaml:"bytes"`
	DTypes     map[string]int `json:"dtypes" yaml:"dtypes"`
}

// Summarize counts the tensors, parameters and payload bytes of headers.
func Summarize(headers map[string]*safetensors.Header) Summary {
	s := Summary{Shards: len(headers), DTypes: make(map[string]int)}
	for _, h := range headers {
		for _, e := range h.Tensors {
			s.Tensors++
			s.Parameters += e.NumElements()
			s.Bytes += e.ByteLen()
			s.DTypes[e.DType.String()]++
		}
	}
	return s
}
