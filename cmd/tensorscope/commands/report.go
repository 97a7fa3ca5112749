package commands

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/marmos91/tensorscope/internal/bytesize"
	"github.com/marmos91/tensorscope/internal/cli/output"
	"github.com/marmos91/tensorscope/internal/natsort"
	"github.com/marmos91/tensorscope/pkg/checkpoint"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

// inspectReport is the result of the inspect command.
type inspectReport struct {
	Repo     string                  `json:"repo" yaml:"repo"`
	Revision string                  `json:"revision" yaml:"revision"`
	Commit   string                  `json:"commit" yaml:"commit"`
	Model    *checkpoint.ModelConfig `json:"model,omitempty" yaml:"model,omitempty"`
	Summary  checkpoint.Summary      `json:"summary" yaml:"summary"`
	Tensors  []checkpoint.Tensor     `json:"tensors,omitempty" yaml:"tensors,omitempty"`
}

func (r *inspectReport) Pairs() [][2]string {
	pairs := [][2]string{
		{"Repository", r.Repo},
		{"Revision", r.Revision},
	}
	if r.Commit != r.Revision {
		pairs = append(pairs, [2]string{"Commit", r.Commit})
	}
	if m := r.Model; m != nil {
		if m.ModelType != "" {
			pairs = append(pairs, [2]string{"Model type", m.ModelType})
		}
		if len(m.Architectures) > 0 {
			pairs = append(pairs, [2]string{"Architecture", strings.Join(m.Architectures, ", ")})
		}
		if m.TorchDType != "" {
			pairs = append(pairs, [2]string{"Torch dtype", m.TorchDType})
		}
		if m.Quantized {
			pairs = append(pairs, [2]string{"Quantized", "yes"})
		}
	}
	s := r.Summary
	return append(pairs,
		[2]string{"Shards", strconv.Itoa(s.Shards)},
		[2]string{"Tensors", output.Count(uint64(s.Tensors))},
		[2]string{"Parameters", fmt.Sprintf("%s (%s)", output.Params(s.Parameters), output.Count(s.Parameters))},
		[2]string{"Size", bytesize.ByteSize(s.Bytes).String()},
		[2]string{"DTypes", formatDTypes(s.DTypes)},
	)
}

func (r *inspectReport) Headers() []string {
	return []string{"Name", "DType", "Shape", "Params", "Size", "Shard"}
}

func (r *inspectReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Tensors))
	for _, t := range r.Tensors {
		rows = append(rows, []string{
			t.Name,
			t.DType.String(),
			output.Shape(t.Shape),
			output.Count(t.NumElements()),
			bytesize.ByteSize(t.ByteLen()).String(),
			t.Shard,
		})
	}
	return rows
}

func (r *inspectReport) NumericColumns() []int { return []int{3, 4} }

// formatDTypes renders dtype counts by decreasing count, e.g. "BF16 291, F32 65".
func formatDTypes(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s %s", name, output.Count(uint64(counts[name])))
	}
	return strings.Join(parts, ", ")
}

// shardInfo describes one shard in the shards command output.
type shardInfo struct {
	Name        string `json:"name" yaml:"name"`
	Tensors     int    `json:"tensors" yaml:"tensors"`
	Parameters  uint64 `json:"parameters" yaml:"parameters"`
	HeaderBytes uint64 `json:"header_bytes" yaml:"header_bytes"`
	DataBytes   uint64 `json:"data_bytes" yaml:"data_bytes"`
}

// shardList is the result of the shards command.
type shardList struct {
	Repo     string      `json:"repo" yaml:"repo"`
	Revision string      `json:"revision" yaml:"revision"`
	Shards   []shardInfo `json:"shards" yaml:"shards"`

	namesOnly bool
}

// newShardList summarizes headers per shard, in natural shard order.
func newShardList(repo, revision string, headers map[string]*safetensors.Header) *shardList {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	natsort.Sort(names)

	l := &shardList{Repo: repo, Revision: revision, Shards: make([]shardInfo, 0, len(names))}
	for _, name := range names {
		h := headers[name]
		info := shardInfo{Name: name, Tensors: len(h.Tensors), HeaderBytes: h.Length}
		for _, e := range h.Tensors {
			info.Parameters += e.NumElements()
			info.DataBytes += e.ByteLen()
		}
		l.Shards = append(l.Shards, info)
	}
	return l
}

// newShardNames lists shards without header details.
func newShardNames(repo, revision string, names []string) *shardList {
	l := &shardList{Repo: repo, Revision: revision, namesOnly: true}
	for _, name := range names {
		l.Shards = append(l.Shards, shardInfo{Name: name})
	}
	return l
}

func (l *shardList) Headers() []string {
	if l.namesOnly {
		return []string{"Shard"}
	}
	return []string{"Shard", "Tensors", "Params", "Header", "Data"}
}

func (l *shardList) Rows() [][]string {
	rows := make([][]string, 0, len(l.Shards))
	for _, s := range l.Shards {
		if l.namesOnly {
			rows = append(rows, []string{s.Name})
			continue
		}
		rows = append(rows, []string{
			s.Name,
			output.Count(uint64(s.Tensors)),
			output.Params(s.Parameters),
			bytesize.ByteSize(s.HeaderBytes).String(),
			bytesize.ByteSize(s.DataBytes).String(),
		})
	}
	return rows
}

func (l *shardList) NumericColumns() []int {
	if l.namesOnly {
		return nil
	}
	return []int{1, 2, 3, 4}
}
