package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path"
	"strconv"

	"github.com/Octogonapus/MemBenchmark/benchmark"
	benchmarkorchestrator "github.com/Octogonapus/MemBenchmark/benchmark_orchestrator"
	"github.com/Octogonapus/MemBenchmark/kernel"
	"github.com/Octogonapus/MemBenchmark/profile"
	"github.com/Octogonapus/MemBenchmark/topology"
)

// Runs every kernel variant on node 0 with one worker and with the whole node.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	topo := topology.Discover()
	orch, err := benchmarkorchestrator.NewLocalBenchmarkOrchestrator(&benchmarkorchestrator.LocalBenchmarkOrchestratorInput{
		ToolVersion:  "1.0.0",
		Topology:     topo,
		ProfilerKind: profile.None,
		Progress:     true,
	})
	if err != nil {
		panic(err)
	}

	for _, workers := range []int{1, len(topo.CPUsInNode(0))} {
		for _, v := range kernel.Variants() {
			b, err := benchmark.NewThroughput(&benchmark.ThroughputBenchmarkInput{
				Name:       v.String() + ", " + strconv.Itoa(workers) + " workers",
				Iterations: 5,
				Workers:    workers,
				Pattern:    v.Pattern,
				Mode:       v.Mode,
				ChunkSize:  int(v.Chunk),
				Stride:     v.Stride,
				DurationMs: 200,
			})
			if err != nil {
				panic(err)
			}
			orch.AddBenchmark(b)
		}
	}

	resultDir := "results"
	err = orch.SetUp(&benchmarkorchestrator.BenchmarkConfig{
		BufferBytes: 1 << 30,
		MemNode:     0,
		Runs:        3,
	})
	defer orch.TearDown()
	if err != nil {
		panic(err)
	}

	report, err := orch.RunBenchmarks()
	if err != nil {
		panic(err)
	}

	bytes, err := json.Marshal(report)
	if err != nil {
		panic(err)
	}
	err = os.MkdirAll(resultDir, os.ModePerm)
	if err != nil {
		panic(err)
	}
	err = os.WriteFile(path.Join(resultDir, "kernels.json"), bytes, 0o644)
	if err != nil {
		panic(err)
	}
}
