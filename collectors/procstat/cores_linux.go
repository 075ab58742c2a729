//go:build linux

package procstat

import "golang.org/x/sys/unix"

// platformCores counts the cores in the scheduler affinity mask.
func platformCores() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0
	}
	return set.Count()
}
