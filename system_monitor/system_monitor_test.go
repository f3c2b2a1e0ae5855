package systemmonitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Octogonapus/MemBenchmark/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procStat = `cpu  100 0 50 800 10 0 5 0 0 0
cpu0 50 0 25 400 5 0 2 0 0 0
`

const procStatLater = `cpu  200 0 100 1600 20 0 10 0 0 0
`

const meminfo = `MemTotal:       16000 kB
MemFree:         4000 kB
MemAvailable:    8000 kB
Buffers:         1000 kB
Cached:          2000 kB
SReclaimable:    1000 kB
`

func writeFile(t *testing.T, root, p, content string) {
	full := filepath.Join(root, p)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestParseCPUTimeStat(t *testing.T) {
	st := parseCPUTimeStat([]byte(procStat))
	require.NotNil(t, st)
	assert.Equal(t, 100, st.user)
	assert.Equal(t, 800, st.idle)
	assert.Equal(t, 965, st.totalCPUTime())

	assert.Nil(t, parseCPUTimeStat([]byte("cpu0 1 2 3\n")))
	assert.Nil(t, parseCPUTimeStat([]byte("cpu  1 2 3\n")))
}

func TestAppendCPUMetrics(t *testing.T) {
	mon := NewSystemMonitor(&SystemMonitorInput{CPU: true}).(*systemMonitor)
	prev := parseCPUTimeStat([]byte(procStat))
	curr := parseCPUTimeStat([]byte(procStatLater))
	mon.appendCPUMetrics(time.Unix(10, 0), curr, prev)

	sm := mon.GetSystemMeasurements()
	require.Len(t, sm.CpuUsageIdle, 1)
	assert.InDelta(t, 100*800.0/965.0, sm.CpuUsageIdle[0].Value, 1e-9)
	assert.InDelta(t, 100*100.0/965.0, sm.CpuUsageUser[0].Value, 1e-9)
	assert.Equal(t, int64(10), sm.CpuUsageIdle[0].Time)

	// counters going backwards are ignored
	mon.appendCPUMetrics(time.Unix(11, 0), prev, curr)
	assert.Len(t, sm.CpuUsageIdle, 1)
}

func TestAppendMemoryMetrics(t *testing.T) {
	mon := NewSystemMonitor(&SystemMonitorInput{Memory: true}).(*systemMonitor)
	mon.appendMemoryMetrics(time.Unix(0, 0), []byte(meminfo))

	sm := mon.GetSystemMeasurements()
	require.Len(t, sm.MemUsedBytes, 1)
	assert.Equal(t, (16000-4000-1000-3000)*1024, sm.MemUsedBytes[0].Value)
	assert.InDelta(t, 50.0, sm.MemUsedPct[0].Value, 1e-9)
	assert.InDelta(t, 50.0, sm.MemAvailPct[0].Value, 1e-9)

	mon.appendMemoryMetrics(time.Unix(0, 0), nil)
	assert.Len(t, sm.MemUsedBytes, 1)
}

func fakeRAPL(t *testing.T, root string) string {
	zone := "sys/class/powercap/intel-rapl:0/intel-rapl:0:0"
	writeFile(t, root, "sys/class/powercap/intel-rapl:0/name", "package-0\n")
	writeFile(t, root, zone+"/name", "dram\n")
	writeFile(t, root, zone+"/max_energy_range_uj", "1000000\n")
	writeFile(t, root, zone+"/energy_uj", "0\n")
	writeFile(t, root, "sys/class/powercap/intel-rapl:0/intel-rapl:0:1/name", "core\n")
	return filepath.Join(root, zone)
}

func TestDiscoverDRAMZones(t *testing.T) {
	root := t.TempDir()
	fakeRAPL(t, root)

	zones, err := discoverDRAMZones(filepath.Join(root, "sys/class/powercap"))
	require.NoError(t, err)
	require.Len(t, zones, 1)
	assert.Equal(t, "intel-rapl:0:0", zones[0].name)
	assert.Equal(t, uint64(1000000), zones[0].maxRange)

	_, err = discoverDRAMZones(filepath.Join(t.TempDir(), "sys/class/powercap"))
	assert.Error(t, err)
}

func TestRAPLSampleHandlesWrap(t *testing.T) {
	root := t.TempDir()
	dir := fakeRAPL(t, root)
	zones, err := discoverDRAMZones(filepath.Join(root, "sys/class/powercap"))
	require.NoError(t, err)
	z := zones[0]

	start := time.Unix(100, 0)
	writeFile(t, dir, "energy_uj", "900000\n")
	_, ok, err := z.sample(start)
	require.NoError(t, err)
	assert.False(t, ok)

	// 200000 uJ over two seconds, across the wrap point
	writeFile(t, dir, "energy_uj", "100000\n")
	watts, ok, err := z.sample(start.Add(2 * time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.1, watts, 1e-9)
}

func TestSummarize(t *testing.T) {
	sm := &report.SystemMeasurements{DRAMPowerWatts: []report.DeviceMeasurement[float64]{
		{DeviceName: "a", Measurement: report.Measurement[float64]{Value: 2}},
		{DeviceName: "b", Measurement: report.Measurement[float64]{Value: 5}},
		{DeviceName: "a", Measurement: report.Measurement[float64]{Value: 4}},
	}}
	got := Summarize(sm)
	require.Len(t, got, 2)
	assert.Equal(t, report.PowerSummary{DeviceName: "a", AverageWatts: 3, PeakWatts: 4, Samples: 2}, got[0])
	assert.Equal(t, report.PowerSummary{DeviceName: "b", AverageWatts: 5, PeakWatts: 5, Samples: 1}, got[1])
	assert.Nil(t, Summarize(nil))
}

func TestMonitorLifecycle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "proc/stat", procStat)
	writeFile(t, root, "proc/meminfo", meminfo)
	fakeRAPL(t, root)

	mon := NewSystemMonitor(&SystemMonitorInput{
		SampleInterval: 5 * time.Millisecond,
		CPU:            true,
		Memory:         true,
		DRAMPower:      true,
		Root:           root,
	})
	require.NoError(t, mon.SetUp())
	assert.Error(t, mon.Stop())
	require.NoError(t, mon.Start())
	assert.Error(t, mon.Start())
	time.Sleep(40 * time.Millisecond)
	require.NoError(t, mon.Stop())

	sm := mon.GetSystemMeasurements()
	assert.NotEmpty(t, sm.MemUsedBytes)
	// the counter never moves, so every sample reads zero watts
	require.NotEmpty(t, sm.DRAMPowerWatts)
	assert.Equal(t, 0.0, sm.DRAMPowerWatts[0].Measurement.Value)

	// a stopped monitor can be started again
	require.NoError(t, mon.Start())
	require.NoError(t, mon.Stop())
}

func TestSetUpFailsWithoutSources(t *testing.T) {
	root := t.TempDir()
	assert.Error(t, NewSystemMonitor(&SystemMonitorInput{CPU: true, Root: root}).SetUp())
	assert.Error(t, NewSystemMonitor(&SystemMonitorInput{Memory: true, Root: root}).SetUp())
	assert.Error(t, NewDRAMPowerReader(root, time.Second).SetUp())

	assert.Error(t, NewDRAMPowerReader(root, time.Second).Start())
}
