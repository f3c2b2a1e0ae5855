package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"

	"github.com/Octogonapus/MemBenchmark/benchmark"
	benchmarkorchestrator "github.com/Octogonapus/MemBenchmark/benchmark_orchestrator"
	"github.com/Octogonapus/MemBenchmark/kernel"
	"github.com/Octogonapus/MemBenchmark/profile"
	"github.com/Octogonapus/MemBenchmark/report"
	systemmonitor "github.com/Octogonapus/MemBenchmark/system_monitor"
	"github.com/Octogonapus/MemBenchmark/topology"
)

// Measures sequential read and write throughput from the CPUs of every node to the memory of
// every node. One report is produced per memory node because the buffer lives on a single node.
func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	topo := topology.Discover()
	reports := []*report.Report{}
	for memNode, n := 0, topo.NumNodes(); memNode < n; memNode++ {
		reports = append(reports, runMemNode(topo, memNode))
	}

	resultDir := "results"
	bytes, err := json.Marshal(reports)
	if err != nil {
		panic(err)
	}
	err = os.MkdirAll(resultDir, os.ModePerm)
	if err != nil {
		panic(err)
	}
	err = os.WriteFile(path.Join(resultDir, "numa-matrix.json"), bytes, 0o644)
	if err != nil {
		panic(err)
	}
}

func runMemNode(topo *topology.Topology, memNode int) *report.Report {
	orch, err := benchmarkorchestrator.NewLocalBenchmarkOrchestrator(&benchmarkorchestrator.LocalBenchmarkOrchestratorInput{
		ToolVersion:  "1.0.0",
		Topology:     topo,
		ProfilerKind: profile.None,
		NewMonitors: func() []systemmonitor.SystemMonitor {
			return []systemmonitor.SystemMonitor{systemmonitor.NewDRAMPowerReader("", 0)}
		},
		Progress: true,
	})
	if err != nil {
		panic(err)
	}

	for cpuNode, n := 0, topo.NumNodes(); cpuNode < n; cpuNode++ {
		for _, mode := range []kernel.RWMode{kernel.Read, kernel.Write} {
			b, err := benchmark.NewThroughput(&benchmark.ThroughputBenchmarkInput{
				Name:       fmt.Sprintf("cpu node %d, mem node %d, sequential %s", cpuNode, memNode, mode),
				Iterations: 10,
				Workers:    len(topo.CPUsInNode(cpuNode)),
				MemNode:    memNode,
				CPUNode:    cpuNode,
				Pattern:    kernel.Sequential,
				Mode:       mode,
				ChunkSize:  int(kernel.Chunk256b),
				Stride:     1,
			})
			if err != nil {
				panic(err)
			}
			orch.AddBenchmark(b)
		}
	}

	err = orch.SetUp(&benchmarkorchestrator.BenchmarkConfig{
		BufferBytes: 4 << 30,
		MemNode:     memNode,
		HugePages:   true,
		Runs:        1,
	})
	defer orch.TearDown()
	if err != nil {
		panic(err)
	}

	rep, err := orch.RunBenchmarks()
	if err != nil {
		panic(err)
	}
	return rep
}
