package kernel

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrNoKernel = errors.New("no benchmark kernel for this combination")

type PatternMode string

const (
	Sequential PatternMode = "sequential"
	Random     PatternMode = "random"
)

type RWMode string

const (
	Read  RWMode = "read"
	Write RWMode = "write"
)

// ChunkSize is the width of one memory access, in bits.
type ChunkSize int

const (
	Chunk32b  ChunkSize = 32
	Chunk64b  ChunkSize = 64
	Chunk128b ChunkSize = 128
	Chunk256b ChunkSize = 256
)

func (c ChunkSize) Bytes() int {
	return int(c) / 8
}

// Func performs one pass over mem.
type Func func(mem []byte)

// Variant identifies one kernel in the table. Stride is in units of chunks and is always 0 for
// random kernels.
type Variant struct {
	Pattern PatternMode
	Mode    RWMode
	Chunk   ChunkSize
	Stride  int
}

func (v Variant) String() string {
	return fmt.Sprintf("%s/%s/%db/stride=%d", v.Pattern, v.Mode, v.Chunk, v.Stride)
}

type Kernel struct {
	Variant Variant
	Run     Func

	// Dummy has the same loop and index arithmetic as Run without touching memory.
	Dummy Func
}

// BytesPerPass returns the number of bytes one call to Run touches on an n-byte slice.
func (k Kernel) BytesPerPass(n int) uint64 {
	w := k.Variant.Chunk.Bytes()
	if w == 0 {
		return 0
	}
	return uint64(accessCount(n/w, k.Variant.Stride)) * uint64(w)
}

// accessCount is the number of chunk accesses per pass over n chunks.
func accessCount(n, stride int) int {
	if stride == 0 {
		return n
	}
	s := abs(stride)
	return (n + s - 1) / s
}

var (
	chunkSizes = []ChunkSize{Chunk32b, Chunk64b, Chunk128b, Chunk256b}
	strides    = []int{1, -1, 2, -2, 4, -4, 8, -8, 16, -16}
	table      = buildTable()
)

func buildTable() map[Variant]Kernel {
	t := map[Variant]Kernel{}
	for _, c := range chunkSizes {
		for _, mode := range []RWMode{Read, Write} {
			for _, s := range strides {
				v := Variant{Pattern: Sequential, Mode: mode, Chunk: c, Stride: s}
				t[v] = Kernel{Variant: v, Run: sequential(mode, c, s), Dummy: sequentialDummy(c, s)}
			}
			v := Variant{Pattern: Random, Mode: mode, Chunk: c}
			t[v] = Kernel{Variant: v, Run: random(mode, c), Dummy: randomDummy(c)}
		}
	}
	return t
}

// Resolve returns the kernel and its dummy for v, or an error wrapping ErrNoKernel.
func Resolve(v Variant) (Kernel, error) {
	k, ok := table[v]
	if !ok {
		return Kernel{}, fmt.Errorf("%w: %s", ErrNoKernel, v)
	}
	return k, nil
}

// Variants lists every resolvable variant in a stable order.
func Variants() []Variant {
	out := make([]Variant, 0, len(table))
	for v := range table {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b Variant) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

func ParsePatternMode(s string) (PatternMode, error) {
	switch p := PatternMode(strings.ToLower(s)); p {
	case Sequential, Random:
		return p, nil
	case "":
		return Sequential, nil
	}
	return "", fmt.Errorf("unknown pattern mode: %q", s)
}

func ParseRWMode(s string) (RWMode, error) {
	switch m := RWMode(strings.ToLower(s)); m {
	case Read, Write:
		return m, nil
	case "":
		return Read, nil
	}
	return "", fmt.Errorf("unknown read/write mode: %q", s)
}

func ParseChunkSize(bits int) (ChunkSize, error) {
	c := ChunkSize(bits)
	if !slices.Contains(chunkSizes, c) {
		return 0, fmt.Errorf("unsupported chunk size: %d bits", bits)
	}
	return c, nil
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
