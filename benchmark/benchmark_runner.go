package benchmark

import (
	"fmt"
	"log/slog"

	"github.com/Octogonapus/MemBenchmark/profile"
	"github.com/Octogonapus/MemBenchmark/report"
	systemmonitor "github.com/Octogonapus/MemBenchmark/system_monitor"
)

type benchmarkRunner struct {
	b              Benchmark
	monitors       []systemmonitor.SystemMonitor
	prof           profile.Profiler
	ctx            *BenchmarkContext
	profilerKind   profile.ProfilerKind
	profileSaveDir string
	runs           int
}

// Helps implement a benchmark orchestrator. Handles the system monitors and profiler.
// Wrap each benchmark in this interface via NewBenchmarkRunner.
type BenchmarkRunner interface {
	// Set up the benchmark and supporting machinery (e.g. system monitors, profiler).
	SetUp(ctx *BenchmarkContext, monitors []systemmonitor.SystemMonitor) error

	// Run the benchmark and supporting machinery.
	Run() *report.BenchmarkReport
}

func NewBenchmarkRunner(b Benchmark, profilerKind profile.ProfilerKind, profileSaveDir string, runs int) BenchmarkRunner {
	if profilerKind == "" {
		profilerKind = profile.None
	}
	return &benchmarkRunner{b: b, profilerKind: profilerKind, profileSaveDir: profileSaveDir, runs: max(runs, 1)}
}

func (br *benchmarkRunner) SetUp(ctx *BenchmarkContext, monitors []systemmonitor.SystemMonitor) error {
	slog.Info("starting benchmark setup", slog.String("name", br.b.GetName()))

	// A monitor that fails to set up is dropped.
	br.monitors = nil
	for _, mon := range monitors {
		if err := mon.SetUp(); err != nil {
			slog.Warn("setting up SystemMonitor failed, continuing without it", slog.String("monitor", mon.Name()), slog.String("error", err.Error()))
			continue
		}
		br.monitors = append(br.monitors, mon)
	}

	c := *ctx
	c.PowerReaders = append([]PowerReader(nil), ctx.PowerReaders...)
	for _, mon := range br.monitors {
		c.PowerReaders = append(c.PowerReaders, mon)
	}
	br.ctx = &c

	err := br.b.SetUp(br.ctx)
	if err != nil {
		return fmt.Errorf("setting up benchmark failed: %w", err)
	}

	if br.profilerKind != profile.None {
		br.prof, err = profile.NewProfiler(br.profilerKind, br.profileSaveDir)
		if err != nil {
			return fmt.Errorf("creating profiler failed: %w", err)
		}

		err = br.prof.SetUp()
		if err != nil {
			return fmt.Errorf("setting up Profiler failed: %w", err)
		}
	}

	slog.Info("finished benchmark setup", slog.String("name", br.b.GetName()))
	return nil
}

func (br *benchmarkRunner) Run() *report.BenchmarkReport {
	slog.Info("starting benchmark", slog.String("name", br.b.GetName()))
	rep := &report.BenchmarkReport{Name: br.b.GetName(), MetricUnits: ThroughputUnits}
	rep.Input = br.b.GetInput()

	for run := 0; run < br.runs; run++ {
		meta := map[string]string{"profiler": string(br.profilerKind)}

		var out *BenchmarkOutput
		var err error
		if br.prof != nil {
			var resultPath string
			resultPath, err = br.prof.Profile(br.b.GetName(), func() error {
				var runErr error
				out, runErr = br.b.Run()
				return runErr
			})
			meta["profilingResultPath"] = resultPath
		} else {
			out, err = br.b.Run()
		}
		if err != nil {
			slog.Error("running benchmark failed", slog.String("name", br.b.GetName()), slog.Int("run", run+1), slog.String("error", err.Error()))
			rep.Error = fmt.Errorf("running benchmark failed: %w", err).Error()
			return rep
		}

		rep.MetricUnits = out.MetricUnits
		rep.Metadata = append(rep.Metadata, &meta)
		rep.Runs = append(rep.Runs, report.RunResult{
			MetricOnIter:  out.MetricOnIter,
			IterWarnings:  out.IterWarnings,
			AverageMetric: out.AverageMetric,
			MinMetric:     out.MinMetric,
			MaxMetric:     out.MaxMetric,
			MedianMetric:  out.MedianMetric,
		})
		slog.Info("finished benchmark run",
			slog.String("name", br.b.GetName()),
			slog.Int("run", run+1),
			slog.Float64("average", out.AverageMetric),
			slog.String("units", out.MetricUnits),
		)
	}

	if len(br.monitors) > 0 {
		rep.SystemMeasurements = &report.SystemMeasurements{}
		for _, mon := range br.monitors {
			rep.SystemMeasurements.Merge(mon.GetSystemMeasurements())
		}
		rep.Power = systemmonitor.Summarize(rep.SystemMeasurements)
	}

	slog.Info("finished benchmark", slog.String("name", br.b.GetName()))
	return rep
}
