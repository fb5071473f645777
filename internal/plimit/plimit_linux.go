//go:build linux

package plimit

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// availableCPUs reads the process's CPU affinity mask on Linux, falling back
// to runtime.NumCPU if the syscall is unavailable (e.g. restricted
// namespaces).
func availableCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return runtime.NumCPU()
	}
	return set.Count()
}
