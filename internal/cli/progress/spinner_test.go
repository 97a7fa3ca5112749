package progress

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/tensorscope/pkg/checkpoint"
)

var _ checkpoint.Progress = (*Spinner)(nil)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "progress.log"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestSpinnerCountsConcurrentIncrements(t *testing.T) {
	p := NewSpinner(tempFile(t), "fetching headers")
	p.Start()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Inc(1)
		}()
	}
	wg.Wait()
	p.Finish()

	assert.Equal(t, 32, p.Done())
}

func TestSpinnerDrawsNothingOutsideTerminal(t *testing.T) {
	f := tempFile(t)
	p := NewSpinner(f, "fetching headers")
	p.Start()
	p.Inc(3)
	p.Finish()

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestSpinnerStopAfterFinish(t *testing.T) {
	p := NewSpinner(tempFile(t), "fetching headers")
	p.Start()
	p.Finish()
	assert.NotPanics(t, func() {
		p.Stop()
		p.Finish()
	})
}
