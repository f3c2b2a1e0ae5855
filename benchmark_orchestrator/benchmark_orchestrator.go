package benchmarkorchestrator

import (
	"github.com/Octogonapus/MemBenchmark/benchmark"
	"github.com/Octogonapus/MemBenchmark/report"
)

type BenchmarkConfig struct {
	// BufferBytes is the size of the buffer shared by every benchmark.
	BufferBytes int
	// MemNode is the NUMA node the buffer is placed on. Negative leaves placement to the kernel.
	MemNode   int
	HugePages bool
	Runs      int
	Verbose   bool
}

// Runs benchmarks on a platform (e.g. the local host).
type BenchmarkOrchestrator interface {
	// Add a benchmark to be ran later.
	AddBenchmark(benchmark.Benchmark) error

	// Set up the environment.
	SetUp(*BenchmarkConfig) error

	// Run benchmarks and return a report.
	RunBenchmarks() (*report.Report, error)

	// Tear down the environment.
	TearDown() error
}
