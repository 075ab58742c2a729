package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/tinyland/lab/core-pulse/collectors/procstat"
	"gitlab.com/tinyland/lab/core-pulse/display/frame"
)

// DefaultInterval is the reader's sampling interval.
const DefaultInterval = 200 * time.Millisecond

// Reader produces counter snapshots. *procstat.Source implements it.
type Reader interface {
	ReadSnapshot(ctx context.Context) (procstat.Snapshot, error)
}

// Sink displays one rendered window.
type Sink interface {
	Show(f frame.Frame) error
}

// Pipeline owns the three workers. The Table it drives is created and
// released by the caller and must outlive Run.
type Pipeline struct {
	src      Reader
	sink     Sink
	table    *Table
	interval time.Duration
	logger   *slog.Logger
	lag      *lagRecorder
	states   [workerCount]atomic.Int32
}

// New creates a Pipeline. A non-positive interval selects DefaultInterval.
// If logger is nil, a no-op logger is used.
func New(src Reader, sink Sink, table *Table, interval time.Duration, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Pipeline{
		src:      src,
		sink:     sink,
		table:    table,
		interval: interval,
		logger:   logger,
		lag:      newLagRecorder(),
	}
}

// State returns the current state of worker w.
func (p *Pipeline) State(w Worker) State {
	return State(p.states[w].Load())
}

// States returns the state of every worker, indexed by Worker.
func (p *Pipeline) States() []State {
	out := make([]State, workerCount)
	for w := Worker(0); w < workerCount; w++ {
		out[w] = p.State(w)
	}
	return out
}

func (p *Pipeline) setState(w Worker, s State) {
	p.states[w].Store(int32(s))
}

// Run starts the reader, analyzer and printer and blocks until all three
// have returned. Cancelling ctx sets the table's cancellation flag; the
// workers then shut down in pipeline order. A fatal worker error cancels the
// others and is returned; a clean shutdown returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, p.table.RequestCancel)
	defer stop()

	workers := [workerCount]func(context.Context) error{
		WorkerReader:   p.runReader,
		WorkerAnalyzer: p.runAnalyzer,
		WorkerPrinter:  p.runPrinter,
	}

	var (
		wg   sync.WaitGroup
		errs [workerCount]error
	)
	for w := Worker(0); w < workerCount; w++ {
		w := w // per-iteration copy; go.mod targets go1.21 loop semantics
		p.setState(w, StateRunning)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer p.setState(w, StateTerminated)
			errs[w] = workers[w](ctx)
			p.logger.Debug("worker stopped", "worker", w.String())
		}()
	}
	wg.Wait()

	p.lag.log(p.logger)
	return errors.Join(errs[:]...)
}

// fail cancels the pipeline on a fatal worker error. The error is returned
// from Run for the caller to report; it is only logged at debug level here.
func (p *Pipeline) fail(w Worker, err error) error {
	p.logger.Debug("worker failed", "worker", w.String(), "error", err)
	p.setState(w, StateCancelRequested)
	p.table.RequestCancel()
	return fmt.Errorf("%s: %w", w, err)
}
