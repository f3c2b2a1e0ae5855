package benchmarkorchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Octogonapus/MemBenchmark/benchmark"
	"github.com/Octogonapus/MemBenchmark/memory"
	"github.com/Octogonapus/MemBenchmark/profile"
	"github.com/Octogonapus/MemBenchmark/report"
	systemmonitor "github.com/Octogonapus/MemBenchmark/system_monitor"
	"github.com/Octogonapus/MemBenchmark/timer"
	"github.com/Octogonapus/MemBenchmark/topology"
	"github.com/schollz/progressbar/v3"
)

const defaultCalibrationWindow = 100 * time.Millisecond

type LocalBenchmarkOrchestratorInput struct {
	ToolVersion string
	// Timer defaults to a MonotonicTimer calibrated over CalibrationWindow.
	Timer             timer.Timer
	CalibrationWindow time.Duration
	// Topology defaults to the host's topology.
	Topology *topology.Topology
	// NewMonitors creates fresh system monitors for each benchmark. May be nil.
	NewMonitors    func() []systemmonitor.SystemMonitor
	ProfilerKind   profile.ProfilerKind
	ProfileSaveDir string
	// HostInfo adds platform details to the report. May be nil.
	HostInfo HostInfoProvider
	Progress bool
}

type localBenchmarkOrchestrator struct {
	input      *LocalBenchmarkOrchestratorInput
	benchmarks []benchmark.Benchmark
	cfg        *BenchmarkConfig
	timer      timer.Timer
	topo       *topology.Topology
	buf        *memory.Buffer
	host       *report.HostInfo
}

// NewLocalBenchmarkOrchestrator runs every benchmark on this host, one after another, against a
// single shared buffer.
func NewLocalBenchmarkOrchestrator(input *LocalBenchmarkOrchestratorInput) (*localBenchmarkOrchestrator, error) {
	if input.ProfilerKind == "" {
		input.ProfilerKind = profile.None
	}
	return &localBenchmarkOrchestrator{input: input}, nil
}

func (o *localBenchmarkOrchestrator) AddBenchmark(b benchmark.Benchmark) error {
	o.benchmarks = append(o.benchmarks, b)
	return nil
}

func (o *localBenchmarkOrchestrator) SetUp(cfg *BenchmarkConfig) error {
	if cfg.BufferBytes <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", cfg.BufferBytes)
	}
	o.cfg = cfg

	o.timer = o.input.Timer
	if o.timer == nil {
		window := o.input.CalibrationWindow
		if window <= 0 {
			window = defaultCalibrationWindow
		}
		t, err := timer.Calibrate(window)
		if err != nil {
			return fmt.Errorf("calibrating timer failed: %w", err)
		}
		slog.Info("calibrated timer", slog.Float64("nsPerTick", t.NsPerTick()), slog.Uint64("resolutionTicks", t.Resolution()))
		o.timer = t
	}

	o.topo = o.input.Topology
	if o.topo == nil {
		o.topo = topology.Discover()
	}
	if cfg.MemNode >= 0 && !o.topo.HasNode(cfg.MemNode) {
		return fmt.Errorf("memory node %d does not exist, the host has %d nodes", cfg.MemNode, o.topo.NumNodes())
	}

	o.host = localHostInfo(o.topo)
	if o.input.HostInfo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.input.HostInfo.Describe(ctx, o.host); err != nil {
			slog.Warn("failed to collect host metadata", slog.String("error", err.Error()))
		}
	}

	buf, err := memory.Allocate(&memory.AllocateInput{
		SizeBytes: cfg.BufferBytes,
		Node:      cfg.MemNode,
		Topology:  o.topo,
		HugePages: cfg.HugePages,
	})
	if err != nil {
		return err
	}
	o.buf = buf
	slog.Info("allocated shared buffer", slog.Int("bytes", buf.Len()), slog.Int("memNode", cfg.MemNode))
	return nil
}

func (o *localBenchmarkOrchestrator) RunBenchmarks() (*report.Report, error) {
	if o.buf == nil {
		return nil, fmt.Errorf("orchestrator was not set up")
	}
	runs := max(o.cfg.Runs, 1)

	var onIteration func()
	if o.input.Progress {
		total := 0
		for _, b := range o.benchmarks {
			total += b.GetIterations() * runs
		}
		p := progressbar.Default(int64(total), "Running benchmarks:")
		defer p.Finish()
		onIteration = func() {
			p.Add(1)
		}
	}

	rep := &report.Report{
		ToolVersion: o.input.ToolVersion,
		Host:        o.host,
		Config: &report.Config{
			BufferBytes: o.buf.Len(),
			MemNode:     o.cfg.MemNode,
			NsPerTick:   o.timer.NsPerTick(),
			Runs:        runs,
		},
		Reports: []*report.BenchmarkReport{},
	}

	// Benchmarks share the buffer and the memory bus, so they never overlap.
	for _, b := range o.benchmarks {
		var monitors []systemmonitor.SystemMonitor
		if o.input.NewMonitors != nil {
			monitors = o.input.NewMonitors()
		}

		br := benchmark.NewBenchmarkRunner(b, o.input.ProfilerKind, o.input.ProfileSaveDir, runs)
		err := br.SetUp(&benchmark.BenchmarkContext{
			Mem:         o.buf.Bytes(),
			Timer:       o.timer,
			Topology:    o.topo,
			Verbose:     o.cfg.Verbose,
			OnIteration: onIteration,
		}, monitors)
		if err != nil {
			slog.Error("benchmark failed", slog.String("benchmark", b.GetName()), slog.String("error", err.Error()))
			rep.Reports = append(rep.Reports, &report.BenchmarkReport{
				Name:  b.GetName(),
				Input: b.GetInput(),
				Error: err.Error(),
			})
			continue
		}
		rep.Reports = append(rep.Reports, br.Run())
	}
	return rep, nil
}

func (o *localBenchmarkOrchestrator) TearDown() error {
	if o.buf == nil {
		return nil
	}
	err := o.buf.Free()
	o.buf = nil
	if err != nil {
		return fmt.Errorf("freeing shared buffer failed: %w", err)
	}
	return nil
}
