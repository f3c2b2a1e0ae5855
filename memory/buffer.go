package memory

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Octogonapus/MemBenchmark/topology"
	"github.com/alitto/pond"
)

type AllocateInput struct {
	SizeBytes int
	// Node is the NUMA node whose CPUs first-touch the pages. Negative disables pinning.
	Node      int
	Topology  *topology.Topology
	HugePages bool
	// InitConcurrency bounds the number of goroutines touching pages. Defaults to the number of
	// CPUs in Node.
	InitConcurrency int
}

// Buffer is the shared region the benchmarks partition between their workers.
type Buffer struct {
	mem    []byte
	mapped bool
}

func (b *Buffer) Bytes() []byte {
	return b.mem
}

func (b *Buffer) Len() int {
	return len(b.mem)
}

func (b *Buffer) Free() error {
	if b.mem == nil {
		return nil
	}
	var err error
	if b.mapped {
		err = unmap(b.mem)
	}
	b.mem = nil
	return err
}

// Allocate reserves the buffer and writes every page from CPUs of the requested node so that a
// first-touch NUMA policy places the pages on that node.
func Allocate(input *AllocateInput) (*Buffer, error) {
	if input.SizeBytes <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", input.SizeBytes)
	}

	mem, mapped, err := allocate(input.SizeBytes, input.HugePages)
	if err != nil {
		return nil, fmt.Errorf("allocating %d bytes failed: %w", input.SizeBytes, err)
	}
	buf := &Buffer{mem: mem, mapped: mapped}

	var cpus []int
	if input.Node >= 0 && input.Topology != nil {
		cpus = input.Topology.CPUsInNode(input.Node)
		if len(cpus) == 0 {
			slog.Warn("memory node has no CPUs, pages will be placed by the default policy", slog.Int("node", input.Node))
		}
	}
	firstTouch(mem, cpus, input.InitConcurrency)

	slog.Debug("allocated benchmark buffer",
		slog.Int("bytes", len(mem)),
		slog.Int("node", input.Node),
		slog.Bool("mapped", mapped),
		slog.Bool("hugePages", input.HugePages),
	)
	return buf, nil
}

func firstTouch(mem []byte, cpus []int, concurrency int) {
	if concurrency <= 0 {
		concurrency = max(len(cpus), 1)
	}
	page := os.Getpagesize()
	pages := (len(mem) + page - 1) / page
	perTask := max((pages+concurrency-1)/concurrency, 1) * page

	pool := pond.New(concurrency, 0, pond.MinWorkers(concurrency))
	for start := 0; start < len(mem); start += perTask {
		piece := mem[start:min(start+perTask, len(mem))]
		pool.Submit(func() {
			touch := func() {
				for i := 0; i < len(piece); i += page {
					piece[i] = 0
				}
			}
			if len(cpus) == 0 {
				touch()
				return
			}
			if err := topology.PinnedCall(cpus, touch); err != nil {
				slog.Debug("first touch ran unpinned", slog.String("error", err.Error()))
			}
		})
	}
	pool.StopAndWait()
}
