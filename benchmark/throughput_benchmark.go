package benchmark

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/Octogonapus/MemBenchmark/kernel"
	"github.com/Octogonapus/MemBenchmark/timer"
	"github.com/Octogonapus/MemBenchmark/topology"
)

const (
	MB              = 1 << 20
	ThroughputUnits = "MB/s"

	defaultDurationMs = 250
)

var ErrInvalidConfig = errors.New("invalid benchmark configuration")

// A PowerReader measures power over the benchmark's measurement window.
type PowerReader interface {
	Name() string
	Start() error
	Stop() error
}

// CPUResolver returns the index-th logical CPU of a NUMA node, or -1 if there is none.
type CPUResolver interface {
	CPUIDInNode(node, index int) int
}

type ThroughputBenchmarkInput struct {
	Name       string
	Iterations int
	Workers    int
	MemNode    int
	CPUNode    int
	Pattern    kernel.PatternMode
	Mode       kernel.RWMode
	ChunkSize  int // bits
	Stride     int
	// WorkingSetBytes limits the benchmark to a prefix of the shared buffer. 0 uses all of it.
	WorkingSetBytes int
	// DurationMs is how long each worker runs its kernel per iteration.
	DurationMs int
	// PassesPerIteration, when non-zero, makes every worker run exactly this many passes.
	PassesPerIteration uint64
	// JoinTimeoutMs bounds how long an iteration waits for its workers. 0 derives it from the
	// duration.
	JoinTimeoutMs int
}

type Environment struct {
	Timer        timer.Timer
	CPUs         CPUResolver
	PowerReaders []PowerReader
	// Resolve defaults to kernel.Resolve.
	Resolve func(kernel.Variant) (kernel.Kernel, error)
	// NewWorker defaults to NewThroughputWorker.
	NewWorker   func(*WorkerInput) Worker
	Verbose     bool
	OnIteration func()
}

// ThroughputBenchmark measures aggregate memory throughput of several pinned workers. It runs once.
type ThroughputBenchmark struct {
	mem         []byte
	input       ThroughputBenchmarkInput
	env         Environment
	variant     kernel.Variant
	duration    time.Duration
	joinTimeout time.Duration

	metricOnIter  []float64
	iterWarnings  []bool
	averageMetric float64
	hasRun        bool
}

func NewThroughputBenchmark(mem []byte, input *ThroughputBenchmarkInput, env *Environment) (*ThroughputBenchmark, error) {
	in := *input
	e := *env

	if in.Iterations < 1 {
		return nil, fmt.Errorf("%w: iterations must be at least 1, got %d", ErrInvalidConfig, in.Iterations)
	}
	if in.Workers < 1 {
		return nil, fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, in.Workers)
	}
	if in.WorkingSetBytes < 0 || in.WorkingSetBytes > len(mem) {
		return nil, fmt.Errorf("%w: working set of %d bytes does not fit the %d byte buffer", ErrInvalidConfig, in.WorkingSetBytes, len(mem))
	}
	if in.WorkingSetBytes > 0 {
		mem = mem[:in.WorkingSetBytes]
	}
	if len(mem)/in.Workers < 1 {
		return nil, fmt.Errorf("%w: %d bytes cannot be split between %d workers", ErrInvalidConfig, len(mem), in.Workers)
	}
	if in.DurationMs < 0 || in.JoinTimeoutMs < 0 {
		return nil, fmt.Errorf("%w: durations must not be negative", ErrInvalidConfig)
	}
	if e.Timer == nil {
		return nil, fmt.Errorf("%w: a timer is required", ErrInvalidConfig)
	}
	if e.Timer.NsPerTick() <= 0 {
		return nil, fmt.Errorf("%w: timer reports %f ns per tick", ErrInvalidConfig, e.Timer.NsPerTick())
	}

	if in.Pattern == "" {
		in.Pattern = kernel.Sequential
	}
	if in.Mode == "" {
		in.Mode = kernel.Read
	}
	if in.Pattern == kernel.Sequential && in.Stride == 0 {
		in.Stride = 1
	}
	if in.DurationMs == 0 {
		in.DurationMs = defaultDurationMs
	}
	if e.CPUs == nil {
		e.CPUs = topology.Discover()
	}
	if e.Resolve == nil {
		e.Resolve = kernel.Resolve
	}
	if e.NewWorker == nil {
		e.NewWorker = NewThroughputWorker
	}

	b := &ThroughputBenchmark{
		mem:   mem,
		input: in,
		env:   e,
		variant: kernel.Variant{
			Pattern: in.Pattern,
			Mode:    in.Mode,
			Chunk:   kernel.ChunkSize(in.ChunkSize),
			Stride:  in.Stride,
		},
		duration: time.Duration(in.DurationMs) * time.Millisecond,
	}
	switch {
	case in.JoinTimeoutMs > 0:
		b.joinTimeout = time.Duration(in.JoinTimeoutMs) * time.Millisecond
	case in.PassesPerIteration > 0:
		b.joinTimeout = time.Minute
	default:
		b.joinTimeout = 4*b.duration + time.Second
	}
	return b, nil
}

func (b *ThroughputBenchmark) Name() string {
	return b.input.Name
}

func (b *ThroughputBenchmark) MetricUnits() string {
	return ThroughputUnits
}

func (b *ThroughputBenchmark) HasRun() bool {
	return b.hasRun
}

// MetricOnIter returns the throughput of every iteration in order. Empty until the run succeeded.
func (b *ThroughputBenchmark) MetricOnIter() []float64 {
	return slices.Clone(b.metricOnIter)
}

// IterWarnings flags the iterations whose measurements may be unreliable.
func (b *ThroughputBenchmark) IterWarnings() []bool {
	return slices.Clone(b.iterWarnings)
}

func (b *ThroughputBenchmark) AverageMetric() float64 {
	return b.averageMetric
}

// Run executes every iteration. On error nothing is recorded and HasRun stays false.
func (b *ThroughputBenchmark) Run() error {
	if b.hasRun {
		return fmt.Errorf("benchmark %s has already run", b.input.Name)
	}

	slog.Info("running benchmark",
		slog.String("name", b.input.Name),
		slog.String("kernel", b.variant.String()),
		slog.Int("iterations", b.input.Iterations),
		slog.Int("workers", b.input.Workers),
		slog.Int("memNode", b.input.MemNode),
		slog.Int("cpuNode", b.input.CPUNode),
		slog.Int("workingSetBytes", len(b.mem)),
	)

	k, err := b.env.Resolve(b.variant)
	if err != nil {
		slog.Error("failed to find appropriate benchmark kernel", slog.String("name", b.input.Name), slog.String("error", err.Error()))
		return fmt.Errorf("resolving kernel for %s failed: %w", b.input.Name, err)
	}

	powerFailed := b.startPowerReaders()

	perWorker := len(b.mem) / b.input.Workers
	metrics := make([]float64, b.input.Iterations)
	warnings := make([]bool, b.input.Iterations)
	sum := 0.0
	for i := range metrics {
		metrics[i], warnings[i] = b.runIteration(i, k, perWorker)
		sum += metrics[i]
		if b.env.OnIteration != nil {
			b.env.OnIteration()
		}
	}

	// Power covers the whole run, so a reader failure degrades every iteration.
	if b.stopPowerReaders() || powerFailed {
		for i := range warnings {
			warnings[i] = true
		}
	}

	b.metricOnIter = metrics
	b.iterWarnings = warnings
	b.averageMetric = sum / float64(b.input.Iterations)
	b.hasRun = true
	return nil
}

// startPowerReaders reports whether any reader failed to start.
func (b *ThroughputBenchmark) startPowerReaders() bool {
	failed := false
	for _, r := range b.env.PowerReaders {
		if err := r.Start(); err != nil {
			slog.Warn("failed to start power measurement", slog.String("reader", r.Name()), slog.String("error", err.Error()))
			failed = true
		} else if b.env.Verbose {
			slog.Info("started power measurement", slog.String("reader", r.Name()))
		}
	}
	return failed
}

// stopPowerReaders reports whether any reader failed to stop.
func (b *ThroughputBenchmark) stopPowerReaders() bool {
	failed := false
	for _, r := range b.env.PowerReaders {
		if err := r.Stop(); err != nil {
			slog.Warn("failed to stop power measurement", slog.String("reader", r.Name()), slog.String("error", err.Error()))
			failed = true
		} else if b.env.Verbose {
			slog.Info("stopped power measurement", slog.String("reader", r.Name()))
		}
	}
	return failed
}

// runIteration returns the iteration's throughput and whether it should be flagged.
func (b *ThroughputBenchmark) runIteration(iter int, k kernel.Kernel, perWorker int) (float64, bool) {
	n := b.input.Workers
	iterWarning := false

	// Every worker is built before any starts so they begin as close together as possible.
	workers := make([]Worker, n)
	for t := range workers {
		cpu := b.env.CPUs.CPUIDInNode(b.input.CPUNode, t)
		if cpu < 0 {
			slog.Warn("failed to find logical CPU in NUMA node, worker runs unpinned", slog.Int("worker", t), slog.Int("cpuNode", b.input.CPUNode))
			iterWarning = true
		}
		lo, hi := t*perWorker, (t+1)*perWorker
		workers[t] = b.env.NewWorker(&WorkerInput{
			Index:    t,
			Offset:   lo,
			Mem:      b.mem[lo:hi:hi],
			Kernel:   k,
			CPU:      cpu,
			Timer:    b.env.Timer,
			Duration: b.duration,
			Passes:   b.input.PassesPerIteration,
		})
	}

	done := make([]chan struct{}, n)
	for t, w := range workers {
		t, w := t, w
		done[t] = make(chan struct{})
		go func() {
			defer close(done[t])
			w.Run()
		}()
	}

	// The deadline only flags the iteration. Every worker is still joined so no worker outlives
	// its iteration.
	deadline := time.NewTimer(b.joinTimeout)
	defer deadline.Stop()
	expired := false
	for t := range workers {
		if !expired {
			select {
			case <-done[t]:
				continue
			case <-deadline.C:
				expired = true
			}
		}
		select {
		case <-done[t]:
			continue
		default:
		}
		slog.Warn("a worker failed to complete by the expected time", slog.Int("worker", t), slog.Duration("timeout", b.joinTimeout))
		iterWarning = true
		<-done[t]
	}

	var totalPasses, totalAdjustedTicks, totalDummyTicks uint64
	bytesPerPass := workers[0].BytesPerPass()
	for _, w := range workers {
		totalPasses += w.Passes()
		totalAdjustedTicks += w.AdjustedTicks()
		totalDummyTicks += w.DummyTicks()
		iterWarning = iterWarning || w.HadWarning()
	}
	avgAdjustedTicks := totalAdjustedTicks / uint64(n)
	if avgAdjustedTicks == 0 {
		slog.Warn("iteration measured no adjusted ticks", slog.String("name", b.input.Name), slog.Int("iteration", iter+1))
		iterWarning = true
	}

	nsPerTick := b.env.Timer.NsPerTick()
	metric := throughputMetric(totalPasses, bytesPerPass, avgAdjustedTicks, nsPerTick)

	if b.env.Verbose {
		slog.Info("iteration finished",
			slog.String("name", b.input.Name),
			slog.Int("iteration", iter+1),
			slog.Int("workers", n),
			slog.Uint64("totalPasses", totalPasses),
			slog.Uint64("bytesPerPass", bytesPerPass),
			slog.Uint64("totalAdjustedTicks", totalAdjustedTicks),
			slog.Uint64("totalDummyTicks", totalDummyTicks),
			slog.Float64("totalAdjustedNs", float64(totalAdjustedTicks)*nsPerTick),
			slog.Float64("totalDummyNs", float64(totalDummyTicks)*nsPerTick),
			slog.Float64("totalAdjustedSec", float64(totalAdjustedTicks)*nsPerTick/1e9),
			slog.Float64("metric", metric),
			slog.Bool("warning", iterWarning),
		)
	}
	return metric, iterWarning
}

// throughputMetric is the megabytes moved by all workers divided by the average seconds one worker
// spent moving them. It is 0 instead of infinite or NaN.
func throughputMetric(totalPasses, bytesPerPass, avgAdjustedTicks uint64, nsPerTick float64) float64 {
	secs := float64(avgAdjustedTicks) * nsPerTick / 1e9
	if secs <= 0 {
		return 0
	}
	m := (float64(totalPasses) * float64(bytesPerPass) / MB) / secs
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return m
}

// Output summarizes a finished run.
func (b *ThroughputBenchmark) Output() (*BenchmarkOutput, error) {
	if !b.hasRun {
		return nil, fmt.Errorf("benchmark %s has not run", b.input.Name)
	}
	sorted := slices.Clone(b.metricOnIter)
	slices.Sort(sorted)
	return &BenchmarkOutput{
		MetricUnits:   ThroughputUnits,
		MetricOnIter:  b.MetricOnIter(),
		IterWarnings:  b.IterWarnings(),
		AverageMetric: b.averageMetric,
		MinMetric:     sorted[0],
		MaxMetric:     sorted[len(sorted)-1],
		MedianMetric:  median(sorted),
	}, nil
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
