package kernel

import "unsafe"

const randomSeed = 0x9e3779b97f4a7c15

// xorshift advances a 64-bit xorshift generator.
func xorshift(x uint64) uint64 {
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return x
}

func randBounds(mem []byte, w int) (unsafe.Pointer, uint64) {
	n := len(mem) / w
	if n == 0 {
		return nil, 0
	}
	return unsafe.Pointer(unsafe.SliceData(mem)), uint64(n)
}

// random kernels touch len(mem)/chunk pseudo-random chunks per pass. The sequence is the same on
// every pass so repeated passes do identical work.
func random(mode RWMode, c ChunkSize) Func {
	w := c.Bytes()
	uw := uint64(w)
	if mode == Write {
		switch c {
		case Chunk32b:
			return func(mem []byte) {
				base, n := randBounds(mem, w)
				x := uint64(randomSeed)
				for i := n; i > 0; i-- {
					x = xorshift(x)
					*(*uint32)(unsafe.Add(base, (x%n)*uw)) = writePattern32
				}
			}
		case Chunk64b:
			return func(mem []byte) {
				base, n := randBounds(mem, w)
				x := uint64(randomSeed)
				for i := n; i > 0; i-- {
					x = xorshift(x)
					*(*uint64)(unsafe.Add(base, (x%n)*uw)) = writePattern
				}
			}
		case Chunk128b:
			return func(mem []byte) {
				base, n := randBounds(mem, w)
				x := uint64(randomSeed)
				for i := n; i > 0; i-- {
					x = xorshift(x)
					p := unsafe.Add(base, (x%n)*uw)
					*(*uint64)(p) = writePattern
					*(*uint64)(unsafe.Add(p, 8)) = writePattern
				}
			}
		case Chunk256b:
			return func(mem []byte) {
				base, n := randBounds(mem, w)
				x := uint64(randomSeed)
				for i := n; i > 0; i-- {
					x = xorshift(x)
					p := unsafe.Add(base, (x%n)*uw)
					*(*uint64)(p) = writePattern
					*(*uint64)(unsafe.Add(p, 8)) = writePattern
					*(*uint64)(unsafe.Add(p, 16)) = writePattern
					*(*uint64)(unsafe.Add(p, 24)) = writePattern
				}
			}
		}
		return nil
	}

	switch c {
	case Chunk32b:
		return func(mem []byte) {
			base, n := randBounds(mem, w)
			x := uint64(randomSeed)
			var acc uint32
			for i := n; i > 0; i-- {
				x = xorshift(x)
				acc ^= *(*uint32)(unsafe.Add(base, (x%n)*uw))
			}
			sink.Add(uint64(acc))
		}
	case Chunk64b:
		return func(mem []byte) {
			base, n := randBounds(mem, w)
			x := uint64(randomSeed)
			var acc uint64
			for i := n; i > 0; i-- {
				x = xorshift(x)
				acc ^= *(*uint64)(unsafe.Add(base, (x%n)*uw))
			}
			sink.Add(acc)
		}
	case Chunk128b:
		return func(mem []byte) {
			base, n := randBounds(mem, w)
			x := uint64(randomSeed)
			var acc uint64
			for i := n; i > 0; i-- {
				x = xorshift(x)
				p := unsafe.Add(base, (x%n)*uw)
				acc ^= *(*uint64)(p) ^ *(*uint64)(unsafe.Add(p, 8))
			}
			sink.Add(acc)
		}
	case Chunk256b:
		return func(mem []byte) {
			base, n := randBounds(mem, w)
			x := uint64(randomSeed)
			var acc uint64
			for i := n; i > 0; i-- {
				x = xorshift(x)
				p := unsafe.Add(base, (x%n)*uw)
				acc ^= *(*uint64)(p) ^ *(*uint64)(unsafe.Add(p, 8)) ^
					*(*uint64)(unsafe.Add(p, 16)) ^ *(*uint64)(unsafe.Add(p, 24))
			}
			sink.Add(acc)
		}
	}
	return nil
}

func randomDummy(c ChunkSize) Func {
	w := c.Bytes()
	uw := uint64(w)
	return func(mem []byte) {
		_, n := randBounds(mem, w)
		x := uint64(randomSeed)
		var acc uint64
		for i := n; i > 0; i-- {
			x = xorshift(x)
			acc ^= (x % n) * uw
		}
		sink.Add(acc)
	}
}
