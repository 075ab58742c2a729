// Package procstat reads cumulative per-core CPU counters from /proc/stat.
// A snapshot holds the aggregate "cpu" line first, followed by one line per
// logical core, each carrying the eight tick counters the kernel exposes in
// fixed order: user, nice, system, idle, iowait, irq, softirq, steal.
package procstat

import (
	"errors"
	"fmt"
)

// AggregateLabel is the label of the first /proc/stat line, which sums all cores.
const AggregateLabel = "cpu"

var (
	// ErrSourceUnavailable is returned when the counter source cannot be opened.
	ErrSourceUnavailable = errors.New("counter source unavailable")

	// ErrRead is returned when a sample is truncated or malformed.
	ErrRead = errors.New("counter source read error")

	// ErrCounterRegression marks a counter that went backwards between two
	// snapshots of the same core. It is always wrapped together with ErrRead.
	ErrCounterRegression = errors.New("counter decreased")

	// ErrAllocation is returned when the pipeline cannot be sized at startup.
	ErrAllocation = errors.New("allocation failure")
)

// CoreCounters holds the cumulative tick counters of one logical core,
// or of the aggregate when Label is AggregateLabel.
type CoreCounters struct {
	Label   string `json:"label"`
	User    uint64 `json:"user"`
	Nice    uint64 `json:"nice"`
	System  uint64 `json:"system"`
	Idle    uint64 `json:"idle"`
	IOWait  uint64 `json:"iowait"`
	IRQ     uint64 `json:"irq"`
	SoftIRQ uint64 `json:"softirq"`
	Steal   uint64 `json:"steal"`
}

// fields returns pointers to the counters in /proc/stat column order.
func (c *CoreCounters) fields() []*uint64 {
	return []*uint64{
		&c.User, &c.Nice, &c.System, &c.Idle,
		&c.IOWait, &c.IRQ, &c.SoftIRQ, &c.Steal,
	}
}

// fieldNames matches the order of CoreCounters.fields.
var fieldNames = []string{"user", "nice", "system", "idle", "iowait", "irq", "softirq", "steal"}

// IsAggregate reports whether c is the all-cores line.
func (c CoreCounters) IsAggregate() bool {
	return c.Label == AggregateLabel
}

// Snapshot is one read of every core, aggregate first.
type Snapshot []CoreCounters

// Validate checks s against the previous snapshot of the same source.
// Labels must appear in the same order and no counter may decrease; a
// violation is reported as ErrRead wrapping ErrCounterRegression.
// An empty prev always validates.
func (s Snapshot) Validate(prev Snapshot) error {
	if len(prev) == 0 {
		return nil
	}
	if len(prev) != len(s) {
		return fmt.Errorf("%w: snapshot has %d lines, previous had %d", ErrRead, len(s), len(prev))
	}

	for i := range s {
		cur, old := s[i], prev[i]
		if cur.Label != old.Label {
			return fmt.Errorf("%w: line %d label %q, previous %q", ErrRead, i, cur.Label, old.Label)
		}
		curFields, oldFields := cur.fields(), old.fields()
		for j := range curFields {
			if *curFields[j] < *oldFields[j] {
				return fmt.Errorf("%w: %w: %s %s %d -> %d",
					ErrRead, ErrCounterRegression, cur.Label, fieldNames[j], *oldFields[j], *curFields[j])
			}
		}
	}
	return nil
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}
