// Package pipeline runs the three-stage sampling pipeline: a reader that
// publishes /proc/stat snapshots, an analyzer that folds them into per-core
// utilisation windows, and a printer that renders each closed window.
// The stages share one Table and hand work to each other through its
// readiness flags and condition variables.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"gitlab.com/tinyland/lab/core-pulse/collectors/procstat"
	"gitlab.com/tinyland/lab/core-pulse/collectors/usage"
)

// DefaultWindow is the number of analysis cycles averaged into one frame.
const DefaultWindow = 5

// Window is one closed averaging window, ready to render.
type Window struct {
	Labels   []string
	Averages []float64
	ClosedAt time.Time
}

// Table is the statistics table shared by the pipeline workers.
//
// mu guards every field from snapshot to done. waitMu is paired with the two
// condition variables and only serialises hand-off signalling: a waiter
// evaluates its predicate while holding waitMu, and a signaller takes waitMu
// before signalling, so a wake-up cannot fall between the check and the wait.
type Table struct {
	mu          sync.Mutex
	lines       int
	window      int
	snapshot    procstat.Snapshot
	seq         uint64
	foldedSeq   uint64
	publishedAt time.Time
	prev        []usage.Usage
	sums        []float64
	closedSums  []float64
	cycles      int
	closedAt    time.Time

	analyzeReady bool
	printReady   bool
	cancelled    bool
	done         chan struct{}

	waitMu      sync.Mutex
	analyzeCond *sync.Cond
	printCond   *sync.Cond
}

// NewTable allocates a table for lines counter lines (cores plus the
// aggregate) averaged over window analysis cycles.
func NewTable(lines, window int) (*Table, error) {
	if lines < 1 {
		return nil, fmt.Errorf("pipeline: %w: %d counter lines", procstat.ErrAllocation, lines)
	}
	if window < 1 {
		return nil, fmt.Errorf("pipeline: %w: window %d", procstat.ErrAllocation, window)
	}

	t := &Table{
		lines:      lines,
		window:     window,
		prev:       make([]usage.Usage, lines),
		sums:       make([]float64, lines),
		closedSums: make([]float64, lines),
		done:       make(chan struct{}),
	}
	t.analyzeCond = sync.NewCond(&t.waitMu)
	t.printCond = sync.NewCond(&t.waitMu)
	return t, nil
}

// Lines returns the number of counter lines per snapshot.
func (t *Table) Lines() int { return t.lines }

// WindowSize returns the number of analysis cycles per window.
func (t *Table) WindowSize() int { return t.window }

// SetAnalyzeReady marks a fresh snapshot for the analyzer.
func (t *Table) SetAnalyzeReady() {
	t.mu.Lock()
	t.analyzeReady = true
	t.mu.Unlock()
}

// ConsumeAnalyzeReady clears the analyze flag and reports whether it was set.
func (t *Table) ConsumeAnalyzeReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ready := t.analyzeReady
	t.analyzeReady = false
	return ready
}

// SetPrintReady marks a closed window for the printer.
func (t *Table) SetPrintReady() {
	t.mu.Lock()
	t.printReady = true
	t.mu.Unlock()
}

// ConsumePrintReady clears the print flag and reports whether it was set.
func (t *Table) ConsumePrintReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ready := t.printReady
	t.printReady = false
	return ready
}

// RequestCancel sets the cancellation flag and closes Done. It wakes no
// condition waiter: the workers carry cancellation down the pipeline.
// Calling it more than once is safe.
func (t *Table) RequestCancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	close(t.done)
}

// IsCancelled reports whether cancellation was requested.
func (t *Table) IsCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

// Done is closed once cancellation is requested.
func (t *Table) Done() <-chan struct{} {
	return t.done
}

// SignalAnalyze wakes the analyzer.
func (t *Table) SignalAnalyze() {
	t.waitMu.Lock()
	t.analyzeCond.Signal()
	t.waitMu.Unlock()
}

// SignalPrint wakes the printer.
func (t *Table) SignalPrint() {
	t.waitMu.Lock()
	t.printCond.Signal()
	t.waitMu.Unlock()
}

// WaitAnalyze blocks until a snapshot is ready or cancellation is requested.
// Spurious wake-ups are absorbed by re-checking the predicate.
func (t *Table) WaitAnalyze() {
	t.waitMu.Lock()
	for !t.pending(&t.analyzeReady) {
		t.analyzeCond.Wait()
	}
	t.waitMu.Unlock()
}

// WaitPrint blocks until a window is closed or cancellation is requested.
func (t *Table) WaitPrint() {
	t.waitMu.Lock()
	for !t.pending(&t.printReady) {
		t.printCond.Wait()
	}
	t.waitMu.Unlock()
}

// pending reports whether *flag or the cancellation flag is set.
func (t *Table) pending(flag *bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *flag || t.cancelled
}

// Publish replaces the held snapshot with s. The snapshot must have the
// table's line count and must not move any counter backwards.
func (t *Table) Publish(s procstat.Snapshot) error {
	if len(s) != t.lines {
		return fmt.Errorf("pipeline: %w: snapshot has %d lines, want %d", procstat.ErrRead, len(s), t.lines)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := s.Validate(t.snapshot); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	t.snapshot = s.Clone()
	t.seq++
	t.publishedAt = time.Now()
	return nil
}

// Cycle reports the outcome of one Accumulate call.
type Cycle struct {
	// Folded is false when there was no new snapshot to fold.
	Folded bool
	// Closed is true when this cycle completed a window.
	Closed bool
	// Lag is the time between publish and fold.
	Lag time.Duration
}

// Accumulate folds the held snapshot into the running sums. A snapshot is
// folded at most once. When the W-th cycle is accumulated the window closes:
// the sums move to the printer's buffer and the live sums and the cycle
// counter restart at zero.
func (t *Table) Accumulate() Cycle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.snapshot) == 0 || t.seq == t.foldedSeq {
		return Cycle{}
	}
	t.foldedSeq = t.seq
	c := Cycle{Folded: true, Lag: time.Since(t.publishedAt)}

	cur := usage.DeriveAll(t.snapshot)
	for i := range cur {
		t.sums[i] += usage.Delta(t.prev[i], cur[i])
	}
	t.prev = cur
	t.cycles++

	if t.cycles < t.window {
		return c
	}

	copy(t.closedSums, t.sums)
	for i := range t.sums {
		t.sums[i] = 0
	}
	t.cycles = 0
	t.closedAt = time.Now()
	c.Closed = true
	return c
}

// TakeWindow returns the averages of the last closed window and resets its
// accumulators to zero.
func (t *Table) TakeWindow() Window {
	t.mu.Lock()
	defer t.mu.Unlock()

	w := Window{
		Labels:   make([]string, len(t.snapshot)),
		Averages: make([]float64, t.lines),
		ClosedAt: t.closedAt,
	}
	for i, c := range t.snapshot {
		w.Labels[i] = c.Label
	}
	for i, sum := range t.closedSums {
		w.Averages[i] = sum / float64(t.window)
		t.closedSums[i] = 0
	}
	return w
}
