//go:build !linux

package topology

import (
	"errors"
	"runtime"
)

var errAffinityUnsupported = errors.New("cpu affinity is not supported on this platform")

func PinCurrentThread(cpu int) error {
	runtime.LockOSThread()
	return errAffinityUnsupported
}

func PinnedCall(cpus []int, fn func()) error {
	fn()
	return errAffinityUnsupported
}
