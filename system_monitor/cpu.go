package systemmonitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/Octogonapus/MemBenchmark/report"
)

type cpuTimeStat struct {
	user      int
	system    int
	idle      int
	nice      int
	iowait    int
	irq       int
	softIrq   int
	steal     int
	guest     int
	guestNice int
}

func (ts *cpuTimeStat) totalCPUTime() int {
	return ts.user + ts.system + ts.nice + ts.iowait + ts.irq + ts.softIrq + ts.steal + ts.idle
}

func parseCPUTimeStat(buf []byte) *cpuTimeStat {
	for _, line := range strings.Split(string(buf), "\n") {
		// Only the aggregate line, the workers are pinned so per-core lines are mostly noise
		if !strings.HasPrefix(line, "cpu ") {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 11 {
			return nil
		}
		vals := make([]int, 10)
		for i := range vals {
			vals[i], _ = strconv.Atoi(parts[i+1])
		}
		return &cpuTimeStat{
			user:      vals[0],
			nice:      vals[1],
			system:    vals[2],
			idle:      vals[3],
			iowait:    vals[4],
			irq:       vals[5],
			softIrq:   vals[6],
			steal:     vals[7],
			guest:     vals[8],
			guestNice: vals[9],
		}
	}
	return nil
}

func (mon *systemMonitor) appendCPUMetrics(now time.Time, curr *cpuTimeStat, prev *cpuTimeStat) {
	delta := float64(curr.totalCPUTime() - prev.totalCPUTime())
	if delta <= 0 {
		return
	}
	pct := func(c, p int) report.Measurement[float64] {
		return report.Measurement[float64]{Time: now.Unix(), Value: float64(100*(c-p)) / delta}
	}
	mon.sm.CpuUsageUser = append(mon.sm.CpuUsageUser, pct(curr.user-curr.guest, prev.user-prev.guest))
	mon.sm.CpuUsageSystem = append(mon.sm.CpuUsageSystem, pct(curr.system, prev.system))
	mon.sm.CpuUsageIdle = append(mon.sm.CpuUsageIdle, pct(curr.idle, prev.idle))
	mon.sm.CpuUsageIowait = append(mon.sm.CpuUsageIowait, pct(curr.iowait, prev.iowait))
	mon.sm.CpuUsageIrq = append(mon.sm.CpuUsageIrq, pct(curr.irq, prev.irq))
	mon.sm.CpuUsageSoftIrq = append(mon.sm.CpuUsageSoftIrq, pct(curr.softIrq, prev.softIrq))
	mon.sm.CpuUsageSteal = append(mon.sm.CpuUsageSteal, pct(curr.steal, prev.steal))
}
