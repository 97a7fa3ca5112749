package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tensorscope/pkg/cache"
	"github.com/marmos91/tensorscope/pkg/checkpoint"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/remote/hub/hubtest"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

const testCommit = "0123456789abcdef0123456789abcdef01234567"

// shard builds a safetensors file holding one F32 tensor per name, each of
// shape [2, 3].
func shard(t *testing.T, names ...string) []byte {
	t.Helper()
	table := make(map[string]any, len(names))
	var offset uint64
	for _, name := range names {
		table[name] = map[string]any{
			"dtype":        "F32",
			"shape":        []uint64{2, 3},
			"data_offsets": []uint64{offset, offset + 24},
		}
		offset += 24
	}
	payload, err := json.Marshal(table)
	require.NoError(t, err)
	return append(safetensors.EncodePrefix(payload), make([]byte, offset)...)
}

// newTestHub serves a two shard checkpoint with a config.json.
func newTestHub(t *testing.T) *hubtest.Server {
	t.Helper()
	srv := hubtest.NewServer("org/model", testCommit)
	t.Cleanup(srv.Close)

	srv.SetFile("model-00001-of-00002.safetensors", shard(t, "layers.0.attn.weight", "layers.0.mlp.weight"))
	srv.SetFile("model-00002-of-00002.safetensors", shard(t, "layers.1.attn.weight"))
	srv.SetFile(checkpoint.IndexFile, []byte(`{"weight_map": {
		"layers.0.attn.weight": "model-00001-of-00002.safetensors",
		"layers.0.mlp.weight": "model-00001-of-00002.safetensors",
		"layers.1.attn.weight": "model-00002-of-00002.safetensors"
	}}`))
	srv.SetFile(checkpoint.ModelConfigFile, []byte(`{"model_type": "llama", "architectures": ["LlamaForCausalLM"]}`))
	return srv
}

// execute runs the root command with args against srv and a fresh cache.
func execute(t *testing.T, srv *hubtest.Server, cacheDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HF_TOKEN", "")
	t.Setenv("HF_ENDPOINT", "")
	t.Setenv("TENSORSCOPE_REMOTE_HUB_ENDPOINT", srv.URL)
	t.Setenv("TENSORSCOPE_CACHE_DIR", cacheDir)
	t.Setenv("TENSORSCOPE_LOGGING_LEVEL", "ERROR")

	cfgFile, revision, outputFormat = "", "", "table"
	noProgress, noColor, verbose = false, false, false
	inspectFilter, inspectSummary, shardsNamesOnly = "", false, false

	var out bytes.Buffer
	cmd := GetRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--no-progress"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInspectJSON(t *testing.T) {
	srv := newTestHub(t)
	cacheDir := t.TempDir()

	out, err := execute(t, srv, cacheDir, "inspect", "org/model", "-o", "json")
	require.NoError(t, err)

	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "org/model", report.Repo)
	assert.Equal(t, "main", report.Revision)
	assert.Equal(t, testCommit, report.Commit)
	require.NotNil(t, report.Model)
	assert.Equal(t, "llama", report.Model.ModelType)
	assert.Equal(t, 2, report.Summary.Shards)
	assert.Equal(t, 3, report.Summary.Tensors)
	assert.Equal(t, uint64(18), report.Summary.Parameters)
	assert.Equal(t, uint64(72), report.Summary.Bytes)

	require.Len(t, report.Tensors, 3)
	assert.Equal(t, "layers.0.attn.weight", report.Tensors[0].Name)
	assert.Equal(t, "layers.1.attn.weight", report.Tensors[2].Name)
	assert.Equal(t, "model-00002-of-00002.safetensors", report.Tensors[2].Shard)

	ref, err := os.ReadFile(filepath.Join(cacheDir, cache.RepoFolderName("org/model"), "refs", "main"))
	require.NoError(t, err)
	assert.Equal(t, testCommit, strings.TrimSpace(string(ref)))
}

func TestInspectUsesCacheOnSecondRun(t *testing.T) {
	srv := newTestHub(t)
	cacheDir := t.TempDir()

	_, err := execute(t, srv, cacheDir, "inspect", "org/model", "-o", "json")
	require.NoError(t, err)
	ranges := srv.RangeGets.Load()

	_, err = execute(t, srv, cacheDir, "inspect", "org/model", "-o", "json")
	require.NoError(t, err)
	assert.Equal(t, ranges, srv.RangeGets.Load(), "cached headers are not fetched again")
}

func TestInspectTableWithFilter(t *testing.T) {
	srv := newTestHub(t)

	out, err := execute(t, srv, t.TempDir(), "inspect", "org/model", "--filter", "MLP")
	require.NoError(t, err)

	assert.Contains(t, out, "Repository")
	assert.Contains(t, out, "LlamaForCausalLM")
	assert.Contains(t, out, "F32 3")
	assert.Contains(t, out, "layers.0.mlp.weight")
	assert.Contains(t, out, "[2, 3]")
	assert.NotContains(t, out, "layers.0.attn.weight")
}

func TestInspectSummaryOnly(t *testing.T) {
	srv := newTestHub(t)

	out, err := execute(t, srv, t.TempDir(), "inspect", "org/model", "--summary")
	require.NoError(t, err)
	assert.Contains(t, out, "Parameters")
	assert.NotContains(t, out, "layers.0")
}

func TestInspectMissingRepositoryFiles(t *testing.T) {
	srv := hubtest.NewServer("org/empty", testCommit)
	defer srv.Close()

	_, err := execute(t, srv, t.TempDir(), "inspect", "org/empty")
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrNotFound)
	assert.Equal(t, ExitNotFound, ExitCode(err))
}

func TestShards(t *testing.T) {
	srv := newTestHub(t)

	out, err := execute(t, srv, t.TempDir(), "shards", "org/model", "-o", "json")
	require.NoError(t, err)

	var list shardList
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	require.Len(t, list.Shards, 2)
	assert.Equal(t, "model-00001-of-00002.safetensors", list.Shards[0].Name)
	assert.Equal(t, 2, list.Shards[0].Tensors)
	assert.Equal(t, uint64(12), list.Shards[0].Parameters)
	assert.Equal(t, uint64(24), list.Shards[1].DataBytes)
	assert.NotZero(t, list.Shards[1].HeaderBytes)
}

func TestShardsNamesOnlyFetchesNoHeader(t *testing.T) {
	srv := newTestHub(t)

	out, err := execute(t, srv, t.TempDir(), "shards", "org/model", "--names-only")
	require.NoError(t, err)
	assert.Contains(t, out, "model-00001-of-00002.safetensors")
	assert.Contains(t, out, "model-00002-of-00002.safetensors")
	assert.Zero(t, srv.RangeGets.Load())
}

func TestVersionShort(t *testing.T) {
	srv := newTestHub(t)

	out, err := execute(t, srv, t.TempDir(), "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestUnknownOutputFormat(t *testing.T) {
	srv := newTestHub(t)

	_, err := execute(t, srv, t.TempDir(), "inspect", "org/model", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"canceled", fmt.Errorf("load: %w", context.Canceled), ExitInterrupted},
		{"malformed index", fmt.Errorf("parse: %w", checkpoint.ErrMalformedIndex), ExitMalformed},
		{"malformed header", &checkpoint.ShardError{Shard: "a", Stage: checkpoint.StageParse, Err: checkpoint.ErrMalformedHeader}, ExitMalformed},
		{"invalid header", safetensors.ErrInvalidHeader, ExitMalformed},
		{"not found", fmt.Errorf("stat: %w", remote.ErrNotFound), ExitNotFound},
		{"short read", remote.ErrShortRead, ExitNetwork},
		{"remote", remote.ErrRemote, ExitNetwork},
		{"storage", fmt.Errorf("install: %w", cache.ErrStorage), ExitStorage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestFormatDTypes(t *testing.T) {
	assert.Equal(t, "BF16 1,200, F32 3, I64 3", formatDTypes(map[string]int{"F32": 3, "BF16": 1200, "I64": 3}))
	assert.Empty(t, formatDTypes(nil))
}

func TestShardNamesTable(t *testing.T) {
	l := newShardNames("org/model", "main", []string{"a.safetensors"})
	assert.Equal(t, []string{"Shard"}, l.Headers())
	assert.Equal(t, [][]string{{"a.safetensors"}}, l.Rows())
	assert.Nil(t, l.NumericColumns())
}
