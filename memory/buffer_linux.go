//go:build linux

package memory

import (
	"log/slog"

	"golang.org/x/sys/unix"
)

func allocate(size int, hugePages bool) ([]byte, bool, error) {
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, err
	}
	if hugePages {
		if err := unix.Madvise(mem, unix.MADV_HUGEPAGE); err != nil {
			slog.Warn("transparent huge pages unavailable", slog.String("error", err.Error()))
		}
	}
	return mem, true, nil
}

func unmap(mem []byte) error {
	return unix.Munmap(mem)
}
