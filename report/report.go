package report

type Measurement[T any] struct {
	Time  int64
	Value T
}

type DeviceMeasurement[T any] struct {
	DeviceName  string
	Measurement Measurement[T]
}

type SystemMeasurements struct {
	CpuUsageUser    []Measurement[float64]
	CpuUsageSystem  []Measurement[float64]
	CpuUsageIdle    []Measurement[float64]
	CpuUsageIowait  []Measurement[float64]
	CpuUsageIrq     []Measurement[float64]
	CpuUsageSoftIrq []Measurement[float64]
	CpuUsageSteal   []Measurement[float64]

	MemUsedBytes  []Measurement[int]
	MemUsedPct    []Measurement[float64]
	MemAvailBytes []Measurement[int]
	MemAvailPct   []Measurement[float64]

	// one entry per RAPL DRAM zone per sample
	DRAMPowerWatts []DeviceMeasurement[float64]
}

type PowerSummary struct {
	DeviceName   string
	AverageWatts float64
	PeakWatts    float64
	Samples      int
}

// RunResult is the outcome of one repetition of a benchmark.
type RunResult struct {
	MetricOnIter  []float64
	IterWarnings  []bool
	AverageMetric float64
	MinMetric     float64
	MaxMetric     float64
	MedianMetric  float64
}

type BenchmarkReport struct {
	Name               string
	Metadata           []any // one entry for each repetition
	Input              map[string]any
	Error              string // non-empty iff the benchmark failed
	MetricUnits        string
	Runs               []RunResult // one entry for each repetition
	Power              []PowerSummary
	SystemMeasurements *SystemMeasurements
}

// AverageMetric is the mean of the per-run averages, or 0 if nothing ran.
func (r *BenchmarkReport) AverageMetric() float64 {
	if len(r.Runs) == 0 {
		return 0
	}
	sum := 0.0
	for _, run := range r.Runs {
		sum += run.AverageMetric
	}
	return sum / float64(len(r.Runs))
}

type HostInfo struct {
	Hostname     string
	NumCPU       int
	NUMANodes    int
	InstanceType string `json:",omitempty"`
	VCPUs        int32  `json:",omitempty"`
	MemoryMiB    int64  `json:",omitempty"`
}

type Config struct {
	BufferBytes int
	MemNode     int
	NsPerTick   float64
	Runs        int
}

type Report struct {
	ToolVersion string
	Host        *HostInfo
	Config      *Config
	Reports     []*BenchmarkReport
}

// Merge appends every series of other to sm.
func (sm *SystemMeasurements) Merge(other *SystemMeasurements) {
	if other == nil {
		return
	}
	sm.CpuUsageUser = append(sm.CpuUsageUser, other.CpuUsageUser...)
	sm.CpuUsageSystem = append(sm.CpuUsageSystem, other.CpuUsageSystem...)
	sm.CpuUsageIdle = append(sm.CpuUsageIdle, other.CpuUsageIdle...)
	sm.CpuUsageIowait = append(sm.CpuUsageIowait, other.CpuUsageIowait...)
	sm.CpuUsageIrq = append(sm.CpuUsageIrq, other.CpuUsageIrq...)
	sm.CpuUsageSoftIrq = append(sm.CpuUsageSoftIrq, other.CpuUsageSoftIrq...)
	sm.CpuUsageSteal = append(sm.CpuUsageSteal, other.CpuUsageSteal...)
	sm.MemUsedBytes = append(sm.MemUsedBytes, other.MemUsedBytes...)
	sm.MemUsedPct = append(sm.MemUsedPct, other.MemUsedPct...)
	sm.MemAvailBytes = append(sm.MemAvailBytes, other.MemAvailBytes...)
	sm.MemAvailPct = append(sm.MemAvailPct, other.MemAvailPct...)
	sm.DRAMPowerWatts = append(sm.DRAMPowerWatts, other.DRAMPowerWatts...)
}
