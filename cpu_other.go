//go:build !linux

package tpool

import "runtime"

// LogicalCPUCount reports how many logical CPUs this process may run on.
func LogicalCPUCount() int {
	return max(runtime.NumCPU(), 1)
}
