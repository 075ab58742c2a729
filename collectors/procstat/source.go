package procstat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the kernel-exposed counter source.
const DefaultPath = "/proc/stat"

// counterColumns is the number of numeric columns read per line.
const counterColumns = 8

// Source reads snapshots of a fixed number of lines from DefaultPath.
// The line count is decided once, at construction, from the detected core count.
type Source struct {
	path  string
	lines int

	// open is overridable for testing.
	open func() (io.ReadCloser, error)
}

// NewSource creates a Source for cores logical cores plus the aggregate line.
func NewSource(cores int) (*Source, error) {
	if cores < 1 {
		return nil, fmt.Errorf("procstat: %w: core count %d", ErrAllocation, cores)
	}
	s := &Source{
		path:  DefaultPath,
		lines: cores + 1,
	}
	s.open = func() (io.ReadCloser, error) {
		return os.Open(s.path)
	}
	return s, nil
}

// Path returns the counter source path.
func (s *Source) Path() string {
	return s.path
}

// Lines returns the number of lines read per snapshot.
func (s *Source) Lines() int {
	return s.lines
}

// ReadSnapshot reads exactly Lines() lines from the source. A missing or
// unopenable source yields ErrSourceUnavailable; a short or malformed sample
// yields ErrRead.
func (s *Source) ReadSnapshot(ctx context.Context) (Snapshot, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := s.open()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("procstat: %w: %s does not exist", ErrSourceUnavailable, s.path)
		}
		return nil, fmt.Errorf("procstat: %w: open %s: %v", ErrSourceUnavailable, s.path, err)
	}
	defer f.Close()

	return parseSnapshot(f, s.lines)
}

// parseSnapshot reads n counter lines from r.
func parseSnapshot(r io.Reader, n int) (Snapshot, error) {
	snap := make(Snapshot, 0, n)
	scanner := bufio.NewScanner(r)
	for len(snap) < n && scanner.Scan() {
		line := len(snap) + 1
		cc, err := parseLine(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("procstat: %w: line %d: %v", ErrRead, line, err)
		}
		if line == 1 && !cc.IsAggregate() {
			return nil, fmt.Errorf("procstat: %w: line 1: want %q, got %q", ErrRead, AggregateLabel, cc.Label)
		}
		snap = append(snap, cc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("procstat: %w: %v", ErrRead, err)
	}
	if len(snap) < n {
		return nil, fmt.Errorf("procstat: %w: got %d lines, want %d", ErrRead, len(snap), n)
	}
	return snap, nil
}

// parseLine parses "cpuN user nice system idle iowait irq softirq steal [...]".
// Trailing guest columns are ignored.
func parseLine(line string) (CoreCounters, error) {
	fields := strings.Fields(line)
	if len(fields) < counterColumns+1 {
		return CoreCounters{}, fmt.Errorf("%d fields, want at least %d", len(fields), counterColumns+1)
	}
	if !strings.HasPrefix(fields[0], AggregateLabel) {
		return CoreCounters{}, fmt.Errorf("label %q is not a cpu line", fields[0])
	}

	cc := CoreCounters{Label: fields[0]}
	for i, ptr := range cc.fields() {
		v, err := strconv.ParseUint(fields[i+1], 10, 64)
		if err != nil {
			return CoreCounters{}, fmt.Errorf("parse %s: %v", fieldNames[i], err)
		}
		*ptr = v
	}
	return cc, nil
}
