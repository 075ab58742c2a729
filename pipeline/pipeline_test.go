package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/core-pulse/collectors/procstat"
	"gitlab.com/tinyland/lab/core-pulse/display/color"
	"gitlab.com/tinyland/lab/core-pulse/display/frame"
)

// scriptedReader returns its snapshots in order, then fails with err or,
// when err is nil, blocks until the context is cancelled.
type scriptedReader struct {
	mu    sync.Mutex
	snaps []procstat.Snapshot
	next  int
	err   error
	reads int
}

func (r *scriptedReader) ReadSnapshot(ctx context.Context) (procstat.Snapshot, error) {
	r.mu.Lock()
	r.reads++
	if r.next < len(r.snaps) {
		s := r.snaps[r.next]
		r.next++
		r.mu.Unlock()
		return s, nil
	}
	err := r.err
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

// endlessReader produces an ever-increasing 50% load snapshot on every read.
type endlessReader struct {
	mu   sync.Mutex
	tick uint64
}

func (r *endlessReader) ReadSnapshot(context.Context) (procstat.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tick += 50
	return busySnapshot(r.tick, r.tick), nil
}

// recordingSink keeps every frame and runs onShow inside Show.
type recordingSink struct {
	mu     sync.Mutex
	frames []frame.Frame
	shown  chan struct{}
	onShow func(frame.Frame)
	err    error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{shown: make(chan struct{}, 64)}
}

func (s *recordingSink) Show(f frame.Frame) error {
	if s.onShow != nil {
		s.onShow(f)
	}
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	select {
	case s.shown <- struct{}{}:
	default:
	}
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// runAsync starts p.Run and returns a channel carrying its result.
func runAsync(ctx context.Context, p *Pipeline) <-chan error {
	errc := make(chan error, 1)
	go func() { errc <- p.Run(ctx) }()
	return errc
}

func waitResult(t *testing.T, errc <-chan error, within time.Duration) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(within):
		t.Fatalf("pipeline did not stop within %v", within)
		return nil
	}
}

func assertTerminated(t *testing.T, p *Pipeline) {
	t.Helper()
	for w, s := range p.States() {
		if s != StateTerminated {
			t.Errorf("%s state = %s, want terminated", Worker(w), s)
		}
	}
}

// TestEndToEndHalfLoad feeds five 50% snapshots for one core plus the
// aggregate and expects a single 50.0% frame with the table reset after it.
func TestEndToEndHalfLoad(t *testing.T) {
	color.ForceDisable()

	tbl := newTestTable(t, 2, DefaultWindow)
	src := &scriptedReader{}
	for cycle := uint64(1); cycle <= DefaultWindow; cycle++ {
		src.snaps = append(src.snaps, busySnapshot(50*cycle, 50*cycle))
	}

	type observed struct {
		analyze, print bool
		sums           []float64
	}
	var seen observed
	sink := newRecordingSink()
	sink.onShow = func(frame.Frame) {
		seen.analyze, seen.print = peekFlags(tbl)
		seen.sums, _ = liveSums(tbl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := New(src, sink, tbl, 20*time.Millisecond, nil)
	errc := runAsync(ctx, p)

	select {
	case <-sink.shown:
	case <-time.After(5 * time.Second):
		t.Fatal("no frame rendered after five snapshots")
	}
	cancel()
	if err := waitResult(t, errc, 5*time.Second); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	if sink.count() != 1 {
		t.Fatalf("rendered %d frames, want 1", sink.count())
	}
	f := sink.frames[0]
	if len(f.Rows) != 2 {
		t.Fatalf("frame has %d rows, want 2", len(f.Rows))
	}
	if f.Rows[1].Label != "cpu0" || f.Rows[1].Percent != 50 {
		t.Errorf("row = %+v, want cpu0 at 50", f.Rows[1])
	}
	if got := frame.RenderRow(f.Rows[1]); got != "cpu0: 50.0%" {
		t.Errorf("rendered row = %q, want %q", got, "cpu0: 50.0%")
	}
	if !strings.HasPrefix(frame.RenderRow(f.Rows[0]), frame.TotalPrefix) {
		t.Errorf("aggregate row not rendered first with %s prefix", frame.TotalPrefix)
	}

	if seen.analyze || seen.print {
		t.Errorf("flags during render: analyze_ready=%v print_ready=%v, want both false", seen.analyze, seen.print)
	}
	for i, s := range seen.sums {
		if s != 0 {
			t.Errorf("accumulator[%d] = %v after window close, want 0", i, s)
		}
	}
	if again := tbl.TakeWindow(); again.Averages[1] != 0 {
		t.Errorf("printed window not reset: %v", again.Averages)
	}
	assertTerminated(t, p)
}

func TestRunCancellationLiveness(t *testing.T) {
	tbl := newTestTable(t, 2, DefaultWindow)
	sink := newRecordingSink()
	p := New(&endlessReader{}, sink, tbl, DefaultInterval, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, p)

	time.Sleep(50 * time.Millisecond)
	start := time.Now()
	cancel()

	if err := waitResult(t, errc, DefaultInterval+2*time.Second); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > DefaultInterval+500*time.Millisecond {
		t.Errorf("shutdown took %v, want under one interval plus overhead", elapsed)
	}
	if !tbl.IsCancelled() {
		t.Error("cancellation flag not set after context cancel")
	}
	assertTerminated(t, p)
}

func TestRunRendersEveryWindow(t *testing.T) {
	tbl := newTestTable(t, 2, 2)
	sink := newRecordingSink()
	p := New(&endlessReader{}, sink, tbl, time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, p)

	deadline := time.After(5 * time.Second)
	for sink.count() < 3 {
		select {
		case <-sink.shown:
		case <-deadline:
			cancel()
			t.Fatalf("rendered %d frames, want at least 3", sink.count())
		}
	}
	cancel()
	if err := waitResult(t, errc, 5*time.Second); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	// Later windows have dropped or merged samples but every delta is 50%.
	for i, f := range sink.frames {
		for _, r := range f.Rows {
			if r.Percent != 50 {
				t.Errorf("frame %d row %s = %v, want 50", i, r.Label, r.Percent)
			}
		}
	}
}

func TestRunReaderFailureCancelsPipeline(t *testing.T) {
	tbl := newTestTable(t, 2, DefaultWindow)
	src := &scriptedReader{
		snaps: []procstat.Snapshot{busySnapshot(50, 50)},
		err:   procstat.ErrSourceUnavailable,
	}
	sink := newRecordingSink()
	p := New(src, sink, tbl, time.Millisecond, nil)

	err := waitResult(t, runAsync(context.Background(), p), 5*time.Second)
	if !errors.Is(err, procstat.ErrSourceUnavailable) {
		t.Fatalf("Run() = %v, want ErrSourceUnavailable", err)
	}
	if !strings.Contains(err.Error(), "reader") {
		t.Errorf("error %q does not name the failing worker", err)
	}
	if !tbl.IsCancelled() {
		t.Error("reader failure did not set the cancellation flag")
	}
	if sink.count() != 0 {
		t.Errorf("rendered %d frames after failure, want 0", sink.count())
	}
	assertTerminated(t, p)
}

func TestRunFailureLeavesReportingToCaller(t *testing.T) {
	tests := []struct {
		name    string
		level   slog.Level
		wantLog bool
	}{
		{name: "default warn level", level: slog.LevelWarn, wantLog: false},
		{name: "debug level", level: slog.LevelDebug, wantLog: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: tt.level}))
			src := &scriptedReader{err: procstat.ErrSourceUnavailable}
			p := New(src, newRecordingSink(), newTestTable(t, 2, DefaultWindow), time.Millisecond, logger)

			err := waitResult(t, runAsync(context.Background(), p), 5*time.Second)
			if !errors.Is(err, procstat.ErrSourceUnavailable) {
				t.Fatalf("Run() = %v, want ErrSourceUnavailable", err)
			}

			out := buf.String()
			if tt.wantLog {
				if strings.Count(out, "worker failed") != 1 {
					t.Errorf("debug log = %q, want one worker failure record", out)
				}
				return
			}
			if out != "" {
				t.Errorf("log at warn level = %q, want nothing besides the returned error", out)
			}
		})
	}
}

func TestRunCounterRegressionIsFatal(t *testing.T) {
	tbl := newTestTable(t, 2, DefaultWindow)
	src := &scriptedReader{snaps: []procstat.Snapshot{
		busySnapshot(100, 100),
		busySnapshot(90, 120),
	}}
	p := New(src, newRecordingSink(), tbl, time.Millisecond, nil)

	err := waitResult(t, runAsync(context.Background(), p), 5*time.Second)
	if !errors.Is(err, procstat.ErrCounterRegression) {
		t.Fatalf("Run() = %v, want ErrCounterRegression", err)
	}
	if !errors.Is(err, procstat.ErrRead) {
		t.Errorf("Run() = %v, want ErrRead", err)
	}
	assertTerminated(t, p)
}

func TestRunSinkFailureCancelsPipeline(t *testing.T) {
	tbl := newTestTable(t, 2, 1)
	sink := newRecordingSink()
	sink.err = errors.New("terminal gone")
	p := New(&endlessReader{}, sink, tbl, time.Millisecond, nil)

	err := waitResult(t, runAsync(context.Background(), p), 5*time.Second)
	if err == nil || !strings.Contains(err.Error(), "terminal gone") {
		t.Fatalf("Run() = %v, want sink error", err)
	}
	if !strings.Contains(err.Error(), "printer") {
		t.Errorf("error %q does not name the printer", err)
	}
	assertTerminated(t, p)
}

func TestRunAlreadyCancelled(t *testing.T) {
	tbl := newTestTable(t, 2, DefaultWindow)
	sink := newRecordingSink()
	p := New(&endlessReader{}, sink, tbl, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := waitResult(t, runAsync(ctx, p), 5*time.Second); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if sink.count() != 0 {
		t.Errorf("rendered %d frames, want 0", sink.count())
	}
}

func TestHandOffLagRecorded(t *testing.T) {
	tbl := newTestTable(t, 2, DefaultWindow)
	src := &scriptedReader{snaps: []procstat.Snapshot{busySnapshot(50, 50), busySnapshot(100, 100)}}
	p := New(src, newRecordingSink(), tbl, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := runAsync(ctx, p)

	deadline := time.Now().Add(5 * time.Second)
	for p.lag.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()
	if err := waitResult(t, errc, 5*time.Second); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := p.lag.count(); got != 2 {
		t.Errorf("recorded %d hand-offs, want 2", got)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateRunning, "running"},
		{StateCancelRequested, "cancel_requested"},
		{StateTerminated, "terminated"},
		{State(7), "unknown(7)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int32(tt.s), got, tt.want)
		}
	}
	if WorkerAnalyzer.String() != "analyzer" {
		t.Errorf("WorkerAnalyzer.String() = %q", WorkerAnalyzer.String())
	}
}

func TestWindowFrame(t *testing.T) {
	w := Window{
		Labels:   []string{"cpu", "cpu0"},
		Averages: []float64{12.5, 25},
	}
	f := windowFrame(w)
	if len(f.Rows) != 2 || f.Rows[0].Label != "cpu" || f.Rows[1].Percent != 25 {
		t.Errorf("windowFrame = %+v", f)
	}

	if got := windowFrame(Window{Averages: []float64{1, 2}}); len(got.Rows) != 0 {
		t.Errorf("window without labels produced %d rows", len(got.Rows))
	}
}
