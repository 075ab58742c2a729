package pipeline

import (
	"context"

	"gitlab.com/tinyland/lab/core-pulse/display/frame"
)

// runPrinter renders each closed window. It exits without a final render
// once cancellation is observed.
func (p *Pipeline) runPrinter(ctx context.Context) error {
	for {
		p.table.WaitPrint()

		if p.table.IsCancelled() {
			p.setState(WorkerPrinter, StateCancelRequested)
			return nil
		}
		if !p.table.ConsumePrintReady() {
			continue
		}

		if err := p.sink.Show(windowFrame(p.table.TakeWindow())); err != nil {
			return p.fail(WorkerPrinter, err)
		}
	}
}

// windowFrame converts a closed window into display rows.
func windowFrame(w Window) frame.Frame {
	n := len(w.Labels)
	if len(w.Averages) < n {
		n = len(w.Averages)
	}
	f := frame.Frame{
		Rows: make([]frame.Row, n),
		At:   w.ClosedAt,
	}
	for i := 0; i < n; i++ {
		f.Rows[i] = frame.Row{Label: w.Labels[i], Percent: w.Averages[i]}
	}
	return f
}
