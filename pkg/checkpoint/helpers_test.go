package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tensorscope/pkg/cache"
	"github.com/marmos91/tensorscope/pkg/remote"
	"github.com/marmos91/tensorscope/pkg/remote/hub/hubtest"
	"github.com/marmos91/tensorscope/pkg/safetensors"
)

const testCommit = "0123456789abcdef0123456789abcdef01234567"

// memSource is an in-memory remote.Source.
type memSource struct {
	repo     string
	revision string
	commit   string

	mu       sync.Mutex
	files    map[string][]byte
	failures map[string]error

	rangeReads atomic.Int64
	stats      atomic.Int64
}

func newMemSource() *memSource {
	return &memSource{
		repo:     "org/model",
		revision: "main",
		commit:   testCommit,
		files:    make(map[string][]byte),
		failures: make(map[string]error),
	}
}

func (m *memSource) set(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = data
}

func (m *memSource) fail(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[name] = err
}

func (m *memSource) file(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failures[name]; ok {
		return nil, err
	}
	data, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", remote.ErrNotFound, name)
	}
	return data, nil
}

func (m *memSource) Repo() string     { return m.repo }
func (m *memSource) Revision() string { return m.revision }

func (m *memSource) ResolveRevision(context.Context) (string, error) {
	return m.commit, nil
}

func (m *memSource) Stat(_ context.Context, name string) (remote.Identity, error) {
	m.stats.Add(1)
	data, err := m.file(name)
	if err != nil {
		return remote.Identity{}, err
	}
	return remote.Identity{ETag: hubtest.ETag(data), Revision: m.commit, Size: int64(len(data))}, nil
}

func (m *memSource) ReadRange(ctx context.Context, name string, offset, length uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", remote.ErrRemote, err)
	}
	m.rangeReads.Add(1)
	data, err := m.file(name)
	if err != nil {
		return nil, err
	}
	if offset+length > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %s", remote.ErrShortRead, name)
	}
	return data[offset : offset+length], nil
}

func (m *memSource) Get(_ context.Context, name string) ([]byte, error) {
	return m.file(name)
}

// tensorSpec describes one tensor of a generated shard.
type tensorSpec struct {
	name  string
	dtype string
	shape []uint64
}

// buildShard returns the header payload and the full shard bytes for tensors
// laid out back to back.
func buildShard(t *testing.T, tensors ...tensorSpec) (payload, shard []byte) {
	t.Helper()
	table := make(map[string]any, len(tensors)+1)
	var offset uint64
	for _, ts := range tensors {
		dt, err := safetensors.ParseDType(ts.dtype)
		require.NoError(t, err)
		n := dt.Size()
		for _, d := range ts.shape {
			n *= d
		}
		table[ts.name] = map[string]any{
			"dtype":        ts.dtype,
			"shape":        ts.shape,
			"data_offsets": []uint64{offset, offset + n},
		}
		offset += n
	}
	table[safetensors.MetadataKey] = map[string]string{"format": "pt"}

	payload, err := json.Marshal(table)
	require.NoError(t, err)
	shard = append(safetensors.EncodePrefix(payload), make([]byte, offset)...)
	return payload, shard
}

func newMemStore(t *testing.T, fs afero.Fs) *cache.Store {
	t.Helper()
	if fs == nil {
		fs = afero.NewMemMapFs()
	}
	s, err := cache.New(cache.Config{Dir: "/cache", Repo: "org/model", Fs: fs})
	require.NoError(t, err)
	return s
}

// recordingProgress counts progress calls.
type recordingProgress struct {
	incs     atomic.Int64
	finishes atomic.Int64
}

func (p *recordingProgress) Inc(n int) { p.incs.Add(int64(n)) }
func (p *recordingProgress) Finish()   { p.finishes.Add(1) }
