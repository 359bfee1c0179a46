//go:build !linux

package loopd

import "runtime"

// residentMemory approximates the resident set with the memory the Go runtime
// obtained from the OS, since there's no statm to read.
func residentMemory() (uint64, error) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys, nil
}
