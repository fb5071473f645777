//go:build !linux

package plimit

import "runtime"

// availableCPUs falls back to runtime.NumCPU on platforms without a cheap
// affinity-mask syscall.
func availableCPUs() int {
	return runtime.NumCPU()
}
