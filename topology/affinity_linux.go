//go:build linux

package topology

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its OS thread and restricts that thread to cpu.
// The goroutine stays locked even if setting the affinity fails.
func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("sched_setaffinity to cpu %d: %w", cpu, err)
	}
	return nil
}

// PinnedCall runs fn on a thread restricted to cpus, then restores the thread's previous affinity
// and unlocks it.
func PinnedCall(cpus []int, fn func()) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		fn()
		return fmt.Errorf("sched_getaffinity: %w", err)
	}

	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	pinErr := unix.SchedSetaffinity(0, &set)
	fn()
	if pinErr != nil {
		return fmt.Errorf("sched_setaffinity: %w", pinErr)
	}
	if err := unix.SchedSetaffinity(0, &prev); err != nil {
		// The extra lock outlives the deferred unlock on purpose: the thread keeps a foreign mask,
		// so it must stay locked and be discarded when the goroutine exits.
		runtime.LockOSThread()
		return fmt.Errorf("restoring affinity: %w", err)
	}
	return nil
}
