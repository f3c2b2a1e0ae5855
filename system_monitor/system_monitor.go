package systemmonitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Octogonapus/MemBenchmark/report"
)

// A SystemMonitor samples the host while a benchmark runs. It satisfies the benchmark package's
// power reader interface, so benchmarks start and stop it around their measurement window.
type SystemMonitor interface {
	Name() string
	SetUp() error
	Start() error
	Stop() error
	GetSystemMeasurements() *report.SystemMeasurements
}

type SystemMonitorInput struct {
	Name           string
	SampleInterval time.Duration
	CPU            bool
	Memory         bool
	DRAMPower      bool
	// Root is prepended to /proc and /sys paths. Empty means the real filesystem.
	Root string
}

type systemMonitor struct {
	input *SystemMonitorInput
	mu    sync.Mutex
	stop  chan struct{}
	wg    *sync.WaitGroup
	sm    *report.SystemMeasurements
	rapl  []*raplZone
}

func NewSystemMonitor(input *SystemMonitorInput) SystemMonitor {
	in := *input
	if in.SampleInterval <= 0 {
		in.SampleInterval = loopTime
	}
	if in.Name == "" {
		in.Name = "system"
	}
	return &systemMonitor{
		input: &in,
		wg:    &sync.WaitGroup{},
		sm:    &report.SystemMeasurements{},
	}
}

// NewDRAMPowerReader samples only the RAPL DRAM energy counters.
func NewDRAMPowerReader(root string, interval time.Duration) SystemMonitor {
	return NewSystemMonitor(&SystemMonitorInput{Name: "dram-power", SampleInterval: interval, DRAMPower: true, Root: root})
}

func (mon *systemMonitor) Name() string {
	return mon.input.Name
}

func (mon *systemMonitor) path(p string) string {
	return filepath.Join(mon.input.Root, p)
}

func (mon *systemMonitor) SetUp() error {
	if mon.input.CPU {
		if _, err := os.Stat(mon.path("/proc/stat")); err != nil {
			return fmt.Errorf("cpu usage source unavailable: %w", err)
		}
	}
	if mon.input.Memory {
		if _, err := os.Stat(mon.path("/proc/meminfo")); err != nil {
			return fmt.Errorf("memory usage source unavailable: %w", err)
		}
	}
	if mon.input.DRAMPower {
		zones, err := discoverDRAMZones(mon.path("/sys/class/powercap"))
		if err != nil {
			return err
		}
		mon.rapl = zones
	}
	return nil
}

func (mon *systemMonitor) Start() error {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if mon.stop != nil {
		return fmt.Errorf("%s monitor is already running", mon.input.Name)
	}
	if mon.input.DRAMPower && len(mon.rapl) == 0 {
		return fmt.Errorf("%s monitor has no DRAM power zones, was SetUp called?", mon.input.Name)
	}
	mon.stop = make(chan struct{})
	mon.wg.Add(1)
	go mon.runMonitor(mon.stop)
	return nil
}

// Stop ends sampling and waits for the sampler to exit.
func (mon *systemMonitor) Stop() error {
	mon.mu.Lock()
	defer mon.mu.Unlock()
	if mon.stop == nil {
		return fmt.Errorf("%s monitor is not running", mon.input.Name)
	}
	close(mon.stop)
	mon.wg.Wait()
	mon.stop = nil
	return nil
}

func (mon *systemMonitor) GetSystemMeasurements() *report.SystemMeasurements {
	return mon.sm
}

var loopTime = 1 * time.Second
var maxJitter = 1 * time.Second

func (mon *systemMonitor) runMonitor(stop <-chan struct{}) {
	var prevCPU *cpuTimeStat
	defer mon.wg.Done()

	for _, z := range mon.rapl {
		z.reset()
	}

	ticker := time.NewTicker(mon.input.SampleInterval)
	defer ticker.Stop()
	lastWakeTime := time.Now()
	for {
		select {
		case <-stop:
			slog.Debug("SystemMonitor: stopped", slog.String("name", mon.input.Name))
			return
		case <-ticker.C:
		}

		jitterMs := time.Since(lastWakeTime).Milliseconds() - mon.input.SampleInterval.Milliseconds()
		if jitterMs > maxJitter.Milliseconds() {
			slog.Warn("SystemMonitor: jitter exceeded maximum", slog.Int64("jitterMs", jitterMs), slog.Int64("maxJitterMs", maxJitter.Milliseconds()))
		}
		lastWakeTime = time.Now()

		if mon.input.CPU {
			buf := mon.readFile("/proc/stat")
			currCPU := parseCPUTimeStat(buf)
			if prevCPU != nil && currCPU != nil {
				mon.appendCPUMetrics(time.Now(), currCPU, prevCPU)
			}
			prevCPU = currCPU
		}

		if mon.input.Memory {
			mon.appendMemoryMetrics(time.Now(), mon.readFile("/proc/meminfo"))
		}

		for _, z := range mon.rapl {
			mon.appendDRAMPowerMetrics(time.Now(), z)
		}
	}
}

func (mon *systemMonitor) readFile(p string) []byte {
	buf, err := os.ReadFile(mon.path(p))
	if err != nil {
		slog.Warn("SystemMonitor: failed to read", slog.String("path", p), slog.String("error", err.Error()))
		return nil
	}
	return buf
}
