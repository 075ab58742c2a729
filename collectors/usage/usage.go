// Package usage turns raw per-core tick counters into work/idle
// accumulators and the utilisation percentage between two samples.
package usage

import "gitlab.com/tinyland/lab/core-pulse/collectors/procstat"

// Usage is the work/idle split of one core's cumulative counters.
type Usage struct {
	Idle uint64 `json:"idle"`
	Work uint64 `json:"work"`
}

// Derive computes idle = idle+iowait and work = user+nice+system+irq+softirq+steal.
func Derive(c procstat.CoreCounters) Usage {
	return Usage{
		Idle: c.Idle + c.IOWait,
		Work: c.User + c.Nice + c.System + c.IRQ + c.SoftIRQ + c.Steal,
	}
}

// DeriveAll applies Derive to every core of a snapshot, preserving order.
func DeriveAll(s procstat.Snapshot) []Usage {
	out := make([]Usage, len(s))
	for i, c := range s {
		out[i] = Derive(c)
	}
	return out
}

// Delta returns the share of elapsed ticks spent working between prev and
// cur, as a percentage in [0,100]. When no ticks elapsed the result is 0.
func Delta(prev, cur Usage) float64 {
	if cur.Work < prev.Work || cur.Idle < prev.Idle {
		// Counters went backwards; callers validate snapshots first.
		return 0
	}

	workDelta := cur.Work - prev.Work
	totalDelta := workDelta + (cur.Idle - prev.Idle)
	if totalDelta == 0 {
		return 0
	}

	pct := 100 * float64(workDelta) / float64(totalDelta)
	if pct > 100 {
		pct = 100
	}
	return pct
}
