package systemmonitor

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Octogonapus/MemBenchmark/report"
)

// raplZone is one RAPL powercap zone whose name is "dram".
type raplZone struct {
	name     string
	dir      string
	maxRange uint64

	prevUJ   uint64
	prevTime time.Time
	primed   bool
}

func discoverDRAMZones(powercap string) ([]*raplZone, error) {
	nameFiles, err := filepath.Glob(filepath.Join(powercap, "intel-rapl:*", "intel-rapl:*", "name"))
	if err != nil {
		return nil, err
	}
	top, err := filepath.Glob(filepath.Join(powercap, "intel-rapl:*", "name"))
	if err != nil {
		return nil, err
	}
	nameFiles = append(nameFiles, top...)
	sort.Strings(nameFiles)

	var zones []*raplZone
	for _, nf := range nameFiles {
		buf, err := os.ReadFile(nf)
		if err != nil || strings.TrimSpace(string(buf)) != "dram" {
			continue
		}
		dir := filepath.Dir(nf)
		z := &raplZone{name: filepath.Base(dir), dir: dir}
		if buf, err := os.ReadFile(filepath.Join(dir, "max_energy_range_uj")); err == nil {
			z.maxRange, _ = strconv.ParseUint(strings.TrimSpace(string(buf)), 10, 64)
		}
		zones = append(zones, z)
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("no RAPL DRAM zones found under %s", powercap)
	}
	return zones, nil
}

func (z *raplZone) read() (uint64, error) {
	buf, err := os.ReadFile(filepath.Join(z.dir, "energy_uj"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(buf)), 10, 64)
}

func (z *raplZone) reset() {
	z.primed = false
	if uj, err := z.read(); err == nil {
		z.prevUJ = uj
		z.prevTime = time.Now()
		z.primed = true
	}
}

// sample returns the average power since the previous sample. The counter wraps at maxRange.
func (z *raplZone) sample(now time.Time) (float64, bool, error) {
	uj, err := z.read()
	if err != nil {
		return 0, false, err
	}
	if !z.primed {
		z.prevUJ, z.prevTime, z.primed = uj, now, true
		return 0, false, nil
	}
	var delta uint64
	if uj >= z.prevUJ {
		delta = uj - z.prevUJ
	} else if z.maxRange > 0 {
		delta = z.maxRange - z.prevUJ + uj
	} else {
		z.prevUJ, z.prevTime = uj, now
		return 0, false, nil
	}
	dt := now.Sub(z.prevTime).Seconds()
	z.prevUJ, z.prevTime = uj, now
	if dt <= 0 {
		return 0, false, nil
	}
	return float64(delta) / 1e6 / dt, true, nil
}

func (mon *systemMonitor) appendDRAMPowerMetrics(now time.Time, z *raplZone) {
	watts, ok, err := z.sample(now)
	if err != nil {
		slog.Warn("SystemMonitor: failed to read DRAM energy", slog.String("zone", z.name), slog.String("error", err.Error()))
		return
	}
	if !ok {
		return
	}
	mon.sm.DRAMPowerWatts = append(mon.sm.DRAMPowerWatts, report.DeviceMeasurement[float64]{
		DeviceName:  z.name,
		Measurement: report.Measurement[float64]{Time: now.Unix(), Value: watts},
	})
}

// Summarize reduces the DRAM power samples to one summary per zone.
func Summarize(sm *report.SystemMeasurements) []report.PowerSummary {
	if sm == nil {
		return nil
	}
	byZone := map[string]*report.PowerSummary{}
	var order []string
	for _, m := range sm.DRAMPowerWatts {
		s, ok := byZone[m.DeviceName]
		if !ok {
			s = &report.PowerSummary{DeviceName: m.DeviceName}
			byZone[m.DeviceName] = s
			order = append(order, m.DeviceName)
		}
		s.AverageWatts += m.Measurement.Value
		s.PeakWatts = max(s.PeakWatts, m.Measurement.Value)
		s.Samples++
	}
	out := make([]report.PowerSummary, 0, len(order))
	for _, name := range order {
		s := byZone[name]
		s.AverageWatts /= float64(s.Samples)
		out = append(out, *s)
	}
	return out
}
