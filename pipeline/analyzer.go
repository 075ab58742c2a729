package pipeline

import "context"

// runAnalyzer folds every published snapshot into the running window and
// wakes the printer each time a window closes.
func (p *Pipeline) runAnalyzer(ctx context.Context) error {
	for {
		p.table.WaitAnalyze()

		if p.table.IsCancelled() {
			p.setState(WorkerAnalyzer, StateCancelRequested)
			p.table.SignalPrint()
			return nil
		}
		if !p.table.ConsumeAnalyzeReady() {
			continue
		}

		c := p.table.Accumulate()
		if !c.Folded {
			continue
		}
		p.lag.record(c.Lag)
		if c.Closed {
			p.logger.Debug("window closed", "window", p.table.WindowSize())
			p.table.SetPrintReady()
			p.table.SignalPrint()
		}
	}
}
