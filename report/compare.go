package report

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

type Delta struct {
	Name      string
	Baseline  float64
	Current   float64
	ChangePct float64
}

// Compare matches benchmarks by name and reports how their average metric moved. Reports written
// by a different major version of the tool are not comparable.
func Compare(baseline, current *Report) ([]Delta, error) {
	bv, err := version.NewVersion(baseline.ToolVersion)
	if err != nil {
		return nil, fmt.Errorf("baseline has an invalid tool version %q: %w", baseline.ToolVersion, err)
	}
	cv, err := version.NewVersion(current.ToolVersion)
	if err != nil {
		return nil, fmt.Errorf("report has an invalid tool version %q: %w", current.ToolVersion, err)
	}
	if bv.Segments()[0] != cv.Segments()[0] {
		return nil, fmt.Errorf("baseline version %s is not comparable with %s", bv, cv)
	}

	byName := map[string]*BenchmarkReport{}
	for _, r := range baseline.Reports {
		if r.Error == "" {
			byName[r.Name] = r
		}
	}

	var deltas []Delta
	for _, r := range current.Reports {
		b, ok := byName[r.Name]
		if !ok || r.Error != "" {
			continue
		}
		d := Delta{Name: r.Name, Baseline: b.AverageMetric(), Current: r.AverageMetric()}
		if d.Baseline != 0 {
			d.ChangePct = 100 * (d.Current - d.Baseline) / d.Baseline
		}
		deltas = append(deltas, d)
	}
	return deltas, nil
}
