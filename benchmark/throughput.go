package benchmark

import (
	"fmt"

	"github.com/Octogonapus/MemBenchmark/util"
	"github.com/mitchellh/mapstructure"
)

type throughput struct {
	input *ThroughputBenchmarkInput
	ctx   *BenchmarkContext
}

func init() {
	RegisterBenchmark("throughput", func(a map[string]any) (Benchmark, error) {
		input := &ThroughputBenchmarkInput{}
		err := mapstructure.Decode(a, input)
		if err != nil {
			return nil, fmt.Errorf("can't convert input to ThroughputBenchmarkInput: %w", err)
		}
		return NewThroughput(input)
	})
}

// NewThroughput wraps a ThroughputBenchmark so it can be driven by a BenchmarkRunner. Every call to
// Run measures with a fresh ThroughputBenchmark.
func NewThroughput(input *ThroughputBenchmarkInput) (Benchmark, error) {
	if input.Name == "" {
		return nil, fmt.Errorf("%w: a name is required", ErrInvalidConfig)
	}
	return &throughput{input: input}, nil
}

func (b *throughput) SetUp(ctx *BenchmarkContext) error {
	b.ctx = ctx
	_, err := b.newCore()
	return err
}

func (b *throughput) newCore() (*ThroughputBenchmark, error) {
	if b.ctx == nil {
		return nil, fmt.Errorf("benchmark %s was not set up", b.input.Name)
	}
	env := &Environment{
		Timer:        b.ctx.Timer,
		PowerReaders: b.ctx.PowerReaders,
		Verbose:      b.ctx.Verbose,
		OnIteration:  b.ctx.OnIteration,
	}
	if b.ctx.Topology != nil {
		env.CPUs = b.ctx.Topology
	}
	return NewThroughputBenchmark(b.ctx.Mem, b.input, env)
}

func (b *throughput) Run() (*BenchmarkOutput, error) {
	core, err := b.newCore()
	if err != nil {
		return nil, err
	}
	if err := core.Run(); err != nil {
		return nil, err
	}
	return core.Output()
}

func (b *throughput) GetName() string {
	return b.input.Name
}

func (b *throughput) GetInput() map[string]any {
	return util.StructMap(b.input)
}

func (b *throughput) GetIterations() int {
	return b.input.Iterations
}
