package memory

import (
	"os"
	"testing"

	"github.com/Octogonapus/MemBenchmark/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocate(t *testing.T) {
	size := 8*os.Getpagesize() + 100
	buf, err := Allocate(&AllocateInput{
		SizeBytes:       size,
		Node:            0,
		Topology:        topology.New(map[int][]int{0: {0}}),
		InitConcurrency: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, size, buf.Len())
	assert.Len(t, buf.Bytes(), size)

	mem := buf.Bytes()
	mem[0] = 1
	mem[size-1] = 2
	assert.Equal(t, byte(2), mem[size-1])

	require.NoError(t, buf.Free())
	assert.Nil(t, buf.Bytes())
	require.NoError(t, buf.Free())
}

func TestAllocateWithoutNode(t *testing.T) {
	buf, err := Allocate(&AllocateInput{SizeBytes: 4096, Node: -1, HugePages: true})
	require.NoError(t, err)
	defer buf.Free()
	assert.Equal(t, 4096, buf.Len())
}

func TestAllocateRejectsEmpty(t *testing.T) {
	_, err := Allocate(&AllocateInput{SizeBytes: 0})
	assert.Error(t, err)
}
