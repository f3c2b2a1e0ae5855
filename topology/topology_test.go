package topology

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCPUList(t *testing.T) {
	cases := []struct {
		in   string
		want []int
	}{
		{"0", []int{0}},
		{"0-3\n", []int{0, 1, 2, 3}},
		{"0-1,4,6-7", []int{0, 1, 4, 6, 7}},
		{"", nil},
	}
	for _, c := range cases {
		got, err := ParseCPUList(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, bad := range []string{"a", "3-1", "0-x", "1,,2"} {
		_, err := ParseCPUList(bad)
		assert.Error(t, err, bad)
	}
}

func writeNode(t *testing.T, root string, node, cpulist string) {
	dir := filepath.Join(root, "devices", "system", "node", "node"+node)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cpulist"), []byte(cpulist), 0o644))
}

func TestDiscoverFrom(t *testing.T) {
	root := t.TempDir()
	writeNode(t, root, "0", "0-3,8-11\n")
	writeNode(t, root, "1", "4-7,12-15\n")
	// not a node directory
	require.NoError(t, os.MkdirAll(filepath.Join(root, "devices", "system", "node", "power"), 0o755))

	topo := DiscoverFrom(root)
	assert.Equal(t, 2, topo.NumNodes())
	assert.Equal(t, []int{4, 5, 6, 7, 12, 13, 14, 15}, topo.CPUsInNode(1))
	assert.Equal(t, 0, topo.CPUIDInNode(0, 0))
	assert.Equal(t, 8, topo.CPUIDInNode(0, 4))
	assert.Equal(t, 15, topo.CPUIDInNode(1, 7))
	assert.Equal(t, -1, topo.CPUIDInNode(1, 8))
	assert.Equal(t, -1, topo.CPUIDInNode(2, 0))
	assert.Equal(t, -1, topo.CPUIDInNode(0, -1))
}

func TestDiscoverFallsBackToSingleNode(t *testing.T) {
	topo := DiscoverFrom(t.TempDir())
	assert.Equal(t, 1, topo.NumNodes())
	assert.Len(t, topo.CPUsInNode(0), runtime.NumCPU())
	assert.Equal(t, runtime.NumCPU()-1, topo.CPUIDInNode(0, runtime.NumCPU()-1))
}

func TestNewCopiesAndSorts(t *testing.T) {
	cpus := []int{3, 1, 2}
	topo := New(map[int][]int{0: cpus})
	cpus[0] = 99
	assert.Equal(t, []int{1, 2, 3}, topo.CPUsInNode(0))
}

func TestHasNodeWithSparseIDs(t *testing.T) {
	topo := New(map[int][]int{0: {0, 1}, 2: {2, 3}})
	assert.True(t, topo.HasNode(0))
	assert.False(t, topo.HasNode(1))
	assert.True(t, topo.HasNode(2))
	assert.Equal(t, 2, topo.NumNodes())
}

func TestPinnedCallRunsFunction(t *testing.T) {
	called := false
	// errors are expected on platforms or sandboxes without affinity support
	_ = PinnedCall([]int{0}, func() { called = true })
	assert.True(t, called)
}
