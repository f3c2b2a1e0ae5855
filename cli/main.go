package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/Octogonapus/MemBenchmark/benchmark"
	benchmarkorchestrator "github.com/Octogonapus/MemBenchmark/benchmark_orchestrator"
	"github.com/Octogonapus/MemBenchmark/profile"
	"github.com/Octogonapus/MemBenchmark/report"
	systemmonitor "github.com/Octogonapus/MemBenchmark/system_monitor"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
)

const toolVersion = "1.0.0"

type benchmarkFiles []string

func (bfs *benchmarkFiles) String() string {
	return "string rep"
}

func (bfs *benchmarkFiles) Set(value string) error {
	*bfs = append(*bfs, value)
	return nil
}

func main() {
	bufferMiB := flag.Int("buffer-mib", 1024, "The size of the buffer shared by all benchmarks, in MiB.")
	memNode := flag.Int("mem-node", 0, "The NUMA node the buffer is placed on. A negative value leaves placement to the operating system.")
	hugePages := flag.Bool("huge-pages", false, "Advise the kernel to back the buffer with transparent huge pages.")
	runs := flag.Int("runs", 1, "The number of times to run each benchmark.")
	verbose := flag.Bool("verbose", false, "Log the measurements of every iteration.")
	sysMonitor := flag.Bool("system-monitor", false, "Sample CPU and memory usage while benchmarks run.")
	dramPower := flag.Bool("dram-power", false, "Sample DRAM power from the RAPL energy counters while benchmarks run.")
	sampleInterval := flag.Duration("sample-interval", time.Second, "How often the system monitor samples.")
	profiler := flag.String("profiler", "none", fmt.Sprintf("The type of profiler to use. No profiler is used by default. Must be one of: %s.", profile.ExplainProfilers()))
	profileSaveDir := flag.String("profile-dir", ".", "Save profiling results into this directory.")
	resultDir := flag.String("result-dir", "results", "Write report.json into this directory.")
	progress := flag.Bool("progress", true, "Show a progress bar.")
	baseline := flag.String("baseline", "", "A previous report.json to compare the results against.")
	reportBucket := flag.String("report-bucket", "", "Upload report.json into this S3 bucket.")
	reportPrefix := flag.String("report-prefix", "reports", "The key prefix used when uploading report.json.")
	ec2Metadata := flag.Bool("ec2-metadata", false, "Describe the EC2 instance type in the report.")
	bfiles := benchmarkFiles{}
	flag.Var(&bfiles, "benchmark-file", "The benchmark configuration file containing all the benchmark specifications. Can be used multiple times; all benchmarks will be loaded. At least one is required.")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if len(bfiles) == 0 {
		panic(fmt.Errorf("benchmark-file is a required flag"))
	}

	var awsCfg *aws.Config
	if *reportBucket != "" || *ec2Metadata {
		cfg, err := config.LoadDefaultConfig(context.Background(), config.WithEC2IMDSRegion())
		if err != nil {
			panic(err)
		}
		awsCfg = &cfg
	}

	input := &benchmarkorchestrator.LocalBenchmarkOrchestratorInput{
		ToolVersion:    toolVersion,
		ProfilerKind:   profile.ProfilerKind(*profiler),
		ProfileSaveDir: *profileSaveDir,
		Progress:       *progress,
	}
	if *ec2Metadata {
		input.HostInfo = benchmarkorchestrator.NewEC2HostInfo(*awsCfg)
	}
	if *sysMonitor || *dramPower {
		input.NewMonitors = func() []systemmonitor.SystemMonitor {
			var monitors []systemmonitor.SystemMonitor
			if *sysMonitor {
				monitors = append(monitors, systemmonitor.NewSystemMonitor(&systemmonitor.SystemMonitorInput{
					SampleInterval: *sampleInterval,
					CPU:            true,
					Memory:         true,
				}))
			}
			if *dramPower {
				monitors = append(monitors, systemmonitor.NewDRAMPowerReader("", *sampleInterval))
			}
			return monitors
		}
	}

	orch, err := benchmarkorchestrator.NewLocalBenchmarkOrchestrator(input)
	if err != nil {
		panic(err)
	}

	for _, bf := range bfiles {
		bfData, err := os.ReadFile(bf)
		if err != nil {
			panic(err)
		}
		benchmarks := benchmark.BenchmarkFile{}
		err = json.Unmarshal(bfData, &benchmarks)
		if err != nil {
			panic(err)
		}
		for _, sb := range benchmarks {
			b, err := benchmark.DeserializeBenchmark(&sb)
			if err != nil {
				panic(err)
			}
			err = orch.AddBenchmark(b)
			if err != nil {
				panic(err)
			}
		}
	}

	err = orch.SetUp(&benchmarkorchestrator.BenchmarkConfig{
		BufferBytes: *bufferMiB << 20,
		MemNode:     *memNode,
		HugePages:   *hugePages,
		Runs:        *runs,
		Verbose:     *verbose,
	})
	defer orch.TearDown()
	if err != nil {
		panic(err)
	}

	rep, err := orch.RunBenchmarks()
	if err != nil {
		panic(err)
	}

	bytes, err := json.Marshal(rep)
	if err != nil {
		panic(err)
	}
	err = os.MkdirAll(*resultDir, fs.ModePerm)
	if err != nil {
		panic(err)
	}
	reportPath := path.Join(*resultDir, "report.json")
	err = os.WriteFile(reportPath, bytes, 0o644)
	if err != nil {
		panic(err)
	}
	slog.Info("wrote report", slog.String("path", reportPath))

	for _, br := range rep.Reports {
		if br.Error != "" {
			slog.Error("benchmark failed", slog.String("name", br.Name), slog.String("error", br.Error))
			continue
		}
		slog.Info("benchmark result", slog.String("name", br.Name), slog.Float64("average", br.AverageMetric()), slog.String("units", br.MetricUnits))
	}

	if *baseline != "" {
		compareToBaseline(*baseline, rep)
	}

	if *reportBucket != "" {
		key := path.Join(*reportPrefix, time.Now().UTC().Format("20060102T150405Z"), "report.json")
		err = report.Upload(context.Background(), *awsCfg, *reportBucket, key, bytes)
		if err != nil {
			panic(err)
		}
		slog.Info("uploaded report", slog.String("bucket", *reportBucket), slog.String("key", key))
	}
}

func compareToBaseline(baselinePath string, current *report.Report) {
	buf, err := os.ReadFile(baselinePath)
	if err != nil {
		panic(err)
	}
	base := &report.Report{}
	err = json.Unmarshal(buf, base)
	if err != nil {
		panic(err)
	}
	deltas, err := report.Compare(base, current)
	if err != nil {
		slog.Warn("can't compare against baseline", slog.String("baseline", baselinePath), slog.String("error", err.Error()))
		return
	}
	for _, d := range deltas {
		slog.Info("change from baseline",
			slog.String("name", d.Name),
			slog.Float64("baseline", d.Baseline),
			slog.Float64("current", d.Current),
			slog.Float64("changePct", d.ChangePct),
		)
	}
}
