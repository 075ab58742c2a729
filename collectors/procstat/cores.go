package procstat

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
)

// logicalCounts is overridable for testing.
var logicalCounts = func(ctx context.Context) (int, error) {
	return cpu.CountsWithContext(ctx, true)
}

// DetectCores returns the number of logical cores, physical and virtual.
// It asks gopsutil first, then the platform fallback, then the Go runtime.
func DetectCores(ctx context.Context) (int, error) {
	if n, err := logicalCounts(ctx); err == nil && n > 0 {
		return n, nil
	}
	if n := platformCores(); n > 0 {
		return n, nil
	}
	if n := runtime.NumCPU(); n > 0 {
		return n, nil
	}
	return 0, fmt.Errorf("procstat: %w: no cores detected", ErrAllocation)
}
