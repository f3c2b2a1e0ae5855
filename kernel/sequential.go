package kernel

import (
	"sync/atomic"
	"unsafe"
)

const (
	writePattern   = ^uint64(0)
	writePattern32 = ^uint32(0)
)

// sink keeps read kernels from being optimised away.
var sink atomic.Uint64

// seqBounds returns the base pointer, the byte offset of the first access, the byte step between
// accesses and the number of accesses for one sequential pass.
func seqBounds(mem []byte, w, stride int) (unsafe.Pointer, int, int, int) {
	n := len(mem) / w
	if n == 0 {
		return nil, 0, 0, 0
	}
	first := 0
	if stride < 0 {
		first = n - 1
	}
	return unsafe.Pointer(unsafe.SliceData(mem)), first * w, stride * w, accessCount(n, stride)
}

func sequential(mode RWMode, c ChunkSize, stride int) Func {
	w := c.Bytes()
	if mode == Write {
		switch c {
		case Chunk32b:
			return func(mem []byte) {
				base, off, step, count := seqBounds(mem, w, stride)
				for ; count > 0; count-- {
					*(*uint32)(unsafe.Add(base, off)) = writePattern32
					off += step
				}
			}
		case Chunk64b:
			return func(mem []byte) {
				base, off, step, count := seqBounds(mem, w, stride)
				for ; count > 0; count-- {
					*(*uint64)(unsafe.Add(base, off)) = writePattern
					off += step
				}
			}
		case Chunk128b:
			return func(mem []byte) {
				base, off, step, count := seqBounds(mem, w, stride)
				for ; count > 0; count-- {
					p := unsafe.Add(base, off)
					*(*uint64)(p) = writePattern
					*(*uint64)(unsafe.Add(p, 8)) = writePattern
					off += step
				}
			}
		case Chunk256b:
			return func(mem []byte) {
				base, off, step, count := seqBounds(mem, w, stride)
				for ; count > 0; count-- {
					p := unsafe.Add(base, off)
					*(*uint64)(p) = writePattern
					*(*uint64)(unsafe.Add(p, 8)) = writePattern
					*(*uint64)(unsafe.Add(p, 16)) = writePattern
					*(*uint64)(unsafe.Add(p, 24)) = writePattern
					off += step
				}
			}
		}
		return nil
	}

	switch c {
	case Chunk32b:
		return func(mem []byte) {
			base, off, step, count := seqBounds(mem, w, stride)
			var acc uint32
			for ; count > 0; count-- {
				acc ^= *(*uint32)(unsafe.Add(base, off))
				off += step
			}
			sink.Add(uint64(acc))
		}
	case Chunk64b:
		return func(mem []byte) {
			base, off, step, count := seqBounds(mem, w, stride)
			var acc uint64
			for ; count > 0; count-- {
				acc ^= *(*uint64)(unsafe.Add(base, off))
				off += step
			}
			sink.Add(acc)
		}
	case Chunk128b:
		return func(mem []byte) {
			base, off, step, count := seqBounds(mem, w, stride)
			var acc uint64
			for ; count > 0; count-- {
				p := unsafe.Add(base, off)
				acc ^= *(*uint64)(p) ^ *(*uint64)(unsafe.Add(p, 8))
				off += step
			}
			sink.Add(acc)
		}
	case Chunk256b:
		return func(mem []byte) {
			base, off, step, count := seqBounds(mem, w, stride)
			var acc uint64
			for ; count > 0; count-- {
				p := unsafe.Add(base, off)
				acc ^= *(*uint64)(p) ^ *(*uint64)(unsafe.Add(p, 8)) ^
					*(*uint64)(unsafe.Add(p, 16)) ^ *(*uint64)(unsafe.Add(p, 24))
				off += step
			}
			sink.Add(acc)
		}
	}
	return nil
}

func sequentialDummy(c ChunkSize, stride int) Func {
	w := c.Bytes()
	return func(mem []byte) {
		_, off, step, count := seqBounds(mem, w, stride)
		var acc int
		for ; count > 0; count-- {
			acc ^= off
			off += step
		}
		sink.Add(uint64(acc))
	}
}
