package kernel

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryVariantResolves(t *testing.T) {
	variants := Variants()
	// 4 chunk sizes x 2 modes x (10 strides + 1 random)
	require.Len(t, variants, 88)

	for _, v := range variants {
		k, err := Resolve(v)
		require.NoError(t, err, v.String())
		assert.Equal(t, v, k.Variant)
		assert.NotNil(t, k.Run, v.String())
		assert.NotNil(t, k.Dummy, v.String())
	}
}

func TestResolveRejectsUnknownCombinations(t *testing.T) {
	cases := []Variant{
		{Pattern: Sequential, Mode: Read, Chunk: Chunk64b, Stride: 0},
		{Pattern: Sequential, Mode: Read, Chunk: Chunk64b, Stride: 3},
		{Pattern: Sequential, Mode: Write, Chunk: 512, Stride: 1},
		{Pattern: Random, Mode: Read, Chunk: Chunk64b, Stride: 1},
		{Pattern: "strided", Mode: Read, Chunk: Chunk64b, Stride: 1},
		{Pattern: Sequential, Mode: "copy", Chunk: Chunk64b, Stride: 1},
	}
	for _, v := range cases {
		_, err := Resolve(v)
		assert.ErrorIs(t, err, ErrNoKernel, v.String())
	}
}

func TestBytesPerPass(t *testing.T) {
	cases := []struct {
		v    Variant
		n    int
		want uint64
	}{
		{Variant{Sequential, Read, Chunk64b, 1}, 4096, 4096},
		{Variant{Sequential, Read, Chunk64b, -1}, 4096, 4096},
		{Variant{Sequential, Read, Chunk64b, 2}, 4096, 2048},
		{Variant{Sequential, Write, Chunk32b, 16}, 4096, 256},
		{Variant{Sequential, Read, Chunk256b, 4}, 4096, 1024},
		{Variant{Sequential, Read, Chunk64b, 4}, 40, 16},
		{Variant{Random, Read, Chunk128b, 0}, 4096, 4096},
		{Variant{Sequential, Read, Chunk256b, 1}, 16, 0},
	}
	for _, c := range cases {
		k, err := Resolve(c.v)
		require.NoError(t, err)
		assert.Equal(t, c.want, k.BytesPerPass(c.n), c.v.String())
	}
}

func TestSequentialWriteTouchesStridedChunks(t *testing.T) {
	for _, stride := range []int{1, 2, 4, -2, -4} {
		k, err := Resolve(Variant{Sequential, Write, Chunk64b, stride})
		require.NoError(t, err)

		mem := make([]byte, 8*16)
		k.Run(mem)

		written := 0
		for i := 0; i < 16; i++ {
			chunk := mem[i*8 : (i+1)*8]
			if bytes.Equal(chunk, bytes.Repeat([]byte{0xff}, 8)) {
				written++
				if stride > 0 {
					assert.Zero(t, i%stride, "stride %d chunk %d", stride, i)
				} else {
					assert.Zero(t, (15-i)%(-stride), "stride %d chunk %d", stride, i)
				}
			} else {
				assert.Equal(t, make([]byte, 8), chunk)
			}
		}
		assert.Equal(t, int(k.BytesPerPass(len(mem))/8), written, "stride %d", stride)
	}
}

func TestWriteKernelsStayInBounds(t *testing.T) {
	for _, v := range Variants() {
		if v.Mode != Write {
			continue
		}
		k, err := Resolve(v)
		require.NoError(t, err)

		// the slice covers the middle of a larger array, with a ragged tail
		backing := make([]byte, 3*1024+7)
		mem := backing[1024 : 2*1024+5]
		k.Run(mem)

		assert.Equal(t, make([]byte, 1024), backing[:1024], v.String())
		assert.Equal(t, make([]byte, len(backing)-(2*1024+5)), backing[2*1024+5:], v.String())
	}
}

func TestDummyDoesNotTouchMemory(t *testing.T) {
	for _, v := range Variants() {
		k, err := Resolve(v)
		require.NoError(t, err)

		mem := make([]byte, 4096)
		k.Dummy(mem)
		assert.Equal(t, make([]byte, 4096), mem, v.String())
	}
}

func TestKernelsHandleTinySlices(t *testing.T) {
	for _, v := range Variants() {
		k, err := Resolve(v)
		require.NoError(t, err)
		assert.NotPanics(t, func() {
			k.Run(nil)
			k.Run(make([]byte, 3))
			k.Dummy(make([]byte, 3))
		}, v.String())
	}
}

func TestRandomWriteIsDeterministic(t *testing.T) {
	k, err := Resolve(Variant{Random, Write, Chunk32b, 0})
	require.NoError(t, err)

	a := make([]byte, 4096)
	b := make([]byte, 4096)
	k.Run(a)
	k.Run(b)
	assert.Equal(t, a, b)
	assert.NotEqual(t, make([]byte, 4096), a)
}

func TestParse(t *testing.T) {
	p, err := ParsePatternMode("Random")
	require.NoError(t, err)
	assert.Equal(t, Random, p)
	p, err = ParsePatternMode("")
	require.NoError(t, err)
	assert.Equal(t, Sequential, p)
	_, err = ParsePatternMode("zigzag")
	assert.Error(t, err)

	m, err := ParseRWMode("WRITE")
	require.NoError(t, err)
	assert.Equal(t, Write, m)
	_, err = ParseRWMode("copy")
	assert.Error(t, err)

	c, err := ParseChunkSize(128)
	require.NoError(t, err)
	assert.Equal(t, Chunk128b, c)
	assert.Equal(t, 16, c.Bytes())
	_, err = ParseChunkSize(48)
	assert.Error(t, err)
}
