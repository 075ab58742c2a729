package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// lagRecorder tracks how long published snapshots wait before the analyzer
// consumes them, in microseconds.
type lagRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLagRecorder() *lagRecorder {
	// 1us to 10s at 3 significant digits.
	return &lagRecorder{hist: hdrhistogram.New(1, 10_000_000, 3)}
}

func (r *lagRecorder) record(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	// Values above the highest trackable value are dropped.
	_ = r.hist.RecordValue(us)
}

// count returns the number of recorded hand-offs.
func (r *lagRecorder) count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hist.TotalCount()
}

// log writes a summary of the recorded hand-off lag at debug level.
func (r *lagRecorder) log(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.hist.TotalCount() == 0 {
		return
	}
	logger.Debug("analyzer hand-off lag",
		"samples", r.hist.TotalCount(),
		"p50", time.Duration(r.hist.ValueAtQuantile(50))*time.Microsecond,
		"p99", time.Duration(r.hist.ValueAtQuantile(99))*time.Microsecond,
		"max", time.Duration(r.hist.Max())*time.Microsecond,
	)
}
