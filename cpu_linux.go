//go:build linux

package tpool

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// LogicalCPUCount reports how many logical CPUs this process may run on.
// The scheduler affinity mask wins over runtime.NumCPU.
func LogicalCPUCount() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return max(runtime.NumCPU(), 1)
}
