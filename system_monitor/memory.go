package systemmonitor

import (
	"strconv"
	"strings"
	"time"

	"github.com/Octogonapus/MemBenchmark/report"
)

type memInfo struct {
	total, free, buffers, cached, available int
}

func parseMemInfo(buf []byte) memInfo {
	var mi memInfo
	for _, line := range strings.Split(string(buf), "\n") {
		parts := strings.Fields(line)
		if len(parts) != 3 {
			continue
		}
		value, _ := strconv.Atoi(parts[1])
		bytes := value * 1024
		switch strings.TrimSuffix(parts[0], ":") {
		case "MemTotal":
			mi.total = bytes
		case "MemFree":
			mi.free = bytes
		case "MemAvailable":
			mi.available = bytes
		case "Buffers":
			mi.buffers = bytes
		case "Cached":
			mi.cached += bytes
		case "SReclaimable":
			mi.cached += bytes
		}
	}
	return mi
}

func (mon *systemMonitor) appendMemoryMetrics(now time.Time, buf []byte) {
	mi := parseMemInfo(buf)
	if mi.total == 0 {
		return
	}

	used := mi.total - mi.free - mi.buffers - mi.cached
	usedPct := 100 * (float64(used) / float64(mi.total))
	availablePct := 100 * (float64(mi.available) / float64(mi.total))

	mon.sm.MemUsedBytes = append(mon.sm.MemUsedBytes, report.Measurement[int]{
		Time:  now.Unix(),
		Value: used,
	})
	mon.sm.MemUsedPct = append(mon.sm.MemUsedPct, report.Measurement[float64]{
		Time:  now.Unix(),
		Value: usedPct,
	})
	mon.sm.MemAvailBytes = append(mon.sm.MemAvailBytes, report.Measurement[int]{
		Time:  now.Unix(),
		Value: mi.available,
	})
	mon.sm.MemAvailPct = append(mon.sm.MemAvailPct, report.Measurement[float64]{
		Time:  now.Unix(),
		Value: availablePct,
	})
}
