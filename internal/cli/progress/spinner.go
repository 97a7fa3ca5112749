// Package progress renders checkpoint load progress on a terminal.
package progress

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/briandowns/spinner"
)

// Spinner is a checkpoint.Progress drawn as a spinner with a shard counter.
// Nothing is drawn when the target file is not a terminal.
type Spinner struct {
	s     *spinner.Spinner
	label string
	done  atomic.Int64
	once  sync.Once
}

// NewSpinner creates a spinner writing to f. Call Start to draw it.
func NewSpinner(f *os.File, label string) *Spinner {
	p := &Spinner{
		s: spinner.New(spinner.CharSets[14], 100*time.Millisecond,
			spinner.WithWriterFile(f),
			spinner.WithHiddenCursor(true),
		),
		label: label,
	}
	p.s.Suffix = p.suffix(0)
	return p
}

func (p *Spinner) suffix(done int64) string {
	return fmt.Sprintf(" %s (%d shards)", p.label, done)
}

// Start draws the spinner until Finish or Stop.
func (p *Spinner) Start() {
	p.s.Start()
}

// Inc records n more loaded shards.
func (p *Spinner) Inc(n int) {
	done := p.done.Add(int64(n))
	p.s.Lock()
	p.s.Suffix = p.suffix(done)
	p.s.Unlock()
}

// Finish stops the spinner and leaves a completion line behind.
func (p *Spinner) Finish() {
	p.once.Do(func() {
		p.s.Lock()
		p.s.FinalMSG = fmt.Sprintf("✓ %s (%d shards)\n", p.label, p.done.Load())
		p.s.Unlock()
		p.s.Stop()
	})
}

// Stop erases the spinner without a completion line. It is a no-op after
// Finish.
func (p *Spinner) Stop() {
	p.once.Do(p.s.Stop)
}

// Done returns the number of shards reported so far.
func (p *Spinner) Done() int {
	return int(p.done.Load())
}
