package pipeline

import (
	"context"
	"time"
)

// runReader samples the source once per interval and hands each snapshot to
// the analyzer. A failed read is fatal: there is no retry.
func (p *Pipeline) runReader(ctx context.Context) error {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		if p.table.IsCancelled() {
			p.setState(WorkerReader, StateCancelRequested)
			p.table.SignalAnalyze()
			return nil
		}

		snap, err := p.src.ReadSnapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// Shutdown raced the read; let the next check propagate it.
				p.table.RequestCancel()
				continue
			}
			err = p.fail(WorkerReader, err)
			p.table.SignalAnalyze()
			return err
		}

		if err := p.table.Publish(snap); err != nil {
			err = p.fail(WorkerReader, err)
			p.table.SignalAnalyze()
			return err
		}
		p.table.SetAnalyzeReady()
		p.table.SignalAnalyze()

		timer.Reset(p.interval)
		select {
		case <-p.table.Done():
		case <-timer.C:
		}
	}
}
