//go:build linux

package engine

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// bindToCPU pins the calling goroutine's OS thread to one CPU so a worker
// stays on its core (and NUMA node) for the life of the search. The
// goroutine is locked to its thread first; Go would otherwise migrate it
// off the pinned thread.
func bindToCPU(workerID int) {
	runtime.LockOSThread()

	cpu := workerID % runtime.NumCPU()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Debugf("cpu affinity for worker %d: %v", workerID, err)
	}
}
