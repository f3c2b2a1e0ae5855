package topology

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
)

const sysfsRoot = "/sys"

// Topology maps NUMA nodes to the logical CPUs they contain.
type Topology struct {
	nodes map[int][]int
}

func New(nodes map[int][]int) *Topology {
	t := &Topology{nodes: map[int][]int{}}
	for node, cpus := range nodes {
		c := slices.Clone(cpus)
		slices.Sort(c)
		t.nodes[node] = c
	}
	return t
}

// Discover reads the NUMA layout from sysfs.
func Discover() *Topology {
	return DiscoverFrom(sysfsRoot)
}

// DiscoverFrom reads <root>/devices/system/node/node*/cpulist. If nothing can be read, every CPU
// is placed in node 0.
func DiscoverFrom(root string) *Topology {
	nodes, err := readNodes(root)
	if err != nil || len(nodes) == 0 {
		if err != nil {
			slog.Debug("NUMA topology unavailable, assuming a single node", slog.String("error", err.Error()))
		}
		cpus := make([]int, runtime.NumCPU())
		for i := range cpus {
			cpus[i] = i
		}
		return New(map[int][]int{0: cpus})
	}
	return New(nodes)
}

func readNodes(root string) (map[int][]int, error) {
	dirs, err := filepath.Glob(filepath.Join(root, "devices", "system", "node", "node[0-9]*"))
	if err != nil {
		return nil, err
	}
	nodes := map[int][]int{}
	for _, dir := range dirs {
		id, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "node"))
		if err != nil {
			continue
		}
		buf, err := os.ReadFile(filepath.Join(dir, "cpulist"))
		if err != nil {
			return nil, fmt.Errorf("reading cpulist of node %d: %w", id, err)
		}
		cpus, err := ParseCPUList(string(buf))
		if err != nil {
			return nil, fmt.Errorf("parsing cpulist of node %d: %w", id, err)
		}
		nodes[id] = cpus
	}
	return nodes, nil
}

// ParseCPUList parses the kernel's list format, e.g. "0-3,8,10-11".
func ParseCPUList(s string) ([]int, error) {
	var cpus []int
	s = strings.TrimSpace(s)
	if s == "" {
		return cpus, nil
	}
	for _, part := range strings.Split(s, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad cpu %q: %w", lo, err)
		}
		last := first
		if isRange {
			last, err = strconv.Atoi(hi)
			if err != nil {
				return nil, fmt.Errorf("bad cpu %q: %w", hi, err)
			}
		}
		if last < first {
			return nil, fmt.Errorf("bad cpu range %q", part)
		}
		for c := first; c <= last; c++ {
			cpus = append(cpus, c)
		}
	}
	return cpus, nil
}

func (t *Topology) NumNodes() int {
	return len(t.nodes)
}

// HasNode reports whether node exists. Node ids need not be contiguous.
func (t *Topology) HasNode(node int) bool {
	_, ok := t.nodes[node]
	return ok
}

func (t *Topology) CPUsInNode(node int) []int {
	return slices.Clone(t.nodes[node])
}

// CPUIDInNode returns the index-th logical CPU of node, or -1 if there is no such CPU.
func (t *Topology) CPUIDInNode(node, index int) int {
	cpus, ok := t.nodes[node]
	if !ok || index < 0 || index >= len(cpus) {
		return -1
	}
	return cpus[index]
}
