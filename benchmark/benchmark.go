package benchmark

import (
	"fmt"

	"github.com/Octogonapus/MemBenchmark/timer"
	"github.com/Octogonapus/MemBenchmark/topology"
)

type BenchmarkContext struct {
	// Mem is the shared buffer. Benchmarks partition it between their workers.
	Mem          []byte
	Timer        timer.Timer
	Topology     *topology.Topology
	PowerReaders []PowerReader
	Verbose      bool
	// OnIteration is called after every completed iteration. May be nil.
	OnIteration func()
}

type Benchmark interface {
	// Set up the benchmark against the shared buffer and host facilities. Configuration errors are
	// reported here, before anything runs.
	SetUp(*BenchmarkContext) error

	// Run every iteration of the benchmark once.
	Run() (*BenchmarkOutput, error)

	// A human-friendly name the user can set for this benchmark.
	GetName() string

	// Any input given to this benchmark by the user. Included in the benchmark's report.
	GetInput() map[string]any

	// The number of iterations one Run performs.
	GetIterations() int
}

type BenchmarkOutput struct {
	MetricUnits   string
	MetricOnIter  []float64
	IterWarnings  []bool
	AverageMetric float64
	MinMetric     float64
	MaxMetric     float64
	MedianMetric  float64
}

type benchmarkType string

type benchmarkFactory func(map[string]any) (Benchmark, error)

var benchmarks map[benchmarkType]benchmarkFactory

// All benchmarks must register themselves at module load time so that deserialization can create a benchmark of that type.
func RegisterBenchmark(btype string, f benchmarkFactory) {
	if benchmarks == nil {
		benchmarks = map[benchmarkType]benchmarkFactory{}
	}
	benchmarks[benchmarkType(btype)] = f
}

type SerializedBenchmark struct {
	Type  benchmarkType
	Input map[string]any
}

type BenchmarkFile []SerializedBenchmark

func DeserializeBenchmark(sb *SerializedBenchmark) (Benchmark, error) {
	factory, ok := benchmarks[sb.Type]
	if !ok {
		return nil, fmt.Errorf("unknown benchmark type: %s", sb.Type)
	}
	return factory(sb.Input)
}
