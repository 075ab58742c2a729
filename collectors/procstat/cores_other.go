//go:build !linux

package procstat

func platformCores() int {
	return 0
}
