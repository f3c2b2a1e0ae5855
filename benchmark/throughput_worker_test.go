package benchmark

import (
	"sync"
	"testing"
	"time"

	"github.com/Octogonapus/MemBenchmark/kernel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTimer returns its ticks in order and repeats the last one once they run out.
type scriptedTimer struct {
	mu    sync.Mutex
	ticks []uint64
	calls int
}

func (s *scriptedTimer) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.ticks)-1)
	s.calls++
	return s.ticks[i]
}

func (s *scriptedTimer) NsPerTick() float64 { return 1 }

// runWorker runs w on its own goroutine because Run locks the calling thread.
func runWorker(w Worker) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run()
	}()
	<-done
}

func countingKernel(t *testing.T, runs, dummies *int) kernel.Kernel {
	k, err := kernel.Resolve(kernel.Variant{Pattern: kernel.Sequential, Mode: kernel.Read, Chunk: kernel.Chunk64b, Stride: 1})
	require.NoError(t, err)
	run, dummy := k.Run, k.Dummy
	k.Run = func(mem []byte) {
		*runs++
		run(mem)
	}
	k.Dummy = func(mem []byte) {
		*dummies++
		dummy(mem)
	}
	return k
}

func TestWorkerFixedPasses(t *testing.T) {
	var runs, dummies int
	tm := &scriptedTimer{ticks: []uint64{
		0, 100_000, 200_000, 300_000, // kernel
		300_000, 300_100, 300_200, 300_300, // dummy
	}}
	w := NewThroughputWorker(&WorkerInput{
		Mem:    make([]byte, 4096),
		Kernel: countingKernel(t, &runs, &dummies),
		CPU:    -1,
		Timer:  tm,
		Passes: 3,
	})
	runWorker(w)

	assert.Equal(t, 3, runs)
	assert.Equal(t, 3, dummies)
	assert.Equal(t, uint64(3), w.Passes())
	assert.Equal(t, uint64(300), w.DummyTicks())
	assert.Equal(t, uint64(299_700), w.AdjustedTicks())
	assert.Equal(t, uint64(4096), w.BytesPerPass())
	assert.False(t, w.HadWarning())
}

func TestWorkerStopsAtDuration(t *testing.T) {
	var runs, dummies int
	tm := &scriptedTimer{ticks: []uint64{
		0, 40_000, 80_000, 120_000, 160_000,
		160_000, 160_010, 160_020, 160_030,
	}}
	w := NewThroughputWorker(&WorkerInput{
		Mem:      make([]byte, 1024),
		Kernel:   countingKernel(t, &runs, &dummies),
		CPU:      -1,
		Timer:    tm,
		Duration: 100 * time.Microsecond,
	})
	runWorker(w)

	// 100us at 1ns per tick is reached by the third pass
	assert.Equal(t, uint64(3), w.Passes())
	assert.Equal(t, 3, dummies)
	assert.Equal(t, uint64(120_000-30), w.AdjustedTicks())
	assert.False(t, w.HadWarning())
}

func TestWorkerClampsWhenDummyIsSlower(t *testing.T) {
	var runs, dummies int
	tm := &scriptedTimer{ticks: []uint64{0, 50_000, 50_000, 120_000}}
	w := NewThroughputWorker(&WorkerInput{
		Mem:    make([]byte, 1024),
		Kernel: countingKernel(t, &runs, &dummies),
		CPU:    -1,
		Timer:  tm,
		Passes: 1,
	})
	runWorker(w)

	assert.Equal(t, uint64(70_000), w.DummyTicks())
	assert.Zero(t, w.AdjustedTicks())
	assert.True(t, w.HadWarning())
}

func TestWorkerWarnsOnFewTicks(t *testing.T) {
	var runs, dummies int
	tm := &scriptedTimer{ticks: []uint64{0, 500, 500, 600}}
	w := NewThroughputWorker(&WorkerInput{
		Mem:    make([]byte, 1024),
		Kernel: countingKernel(t, &runs, &dummies),
		CPU:    -1,
		Timer:  tm,
		Passes: 1,
	})
	runWorker(w)

	assert.Equal(t, uint64(400), w.AdjustedTicks())
	assert.True(t, w.HadWarning())
}

func TestWorkerWarnsWhenPinningFails(t *testing.T) {
	var runs, dummies int
	tm := &scriptedTimer{ticks: []uint64{0, 100_000, 100_000, 100_010}}
	w := NewThroughputWorker(&WorkerInput{
		Mem:    make([]byte, 1024),
		Kernel: countingKernel(t, &runs, &dummies),
		// no such CPU, so the affinity mask is empty
		CPU:    1 << 20,
		Timer:  tm,
		Passes: 1,
	})
	runWorker(w)

	assert.Equal(t, uint64(1), w.Passes())
	assert.Equal(t, uint64(99_990), w.AdjustedTicks())
	assert.True(t, w.HadWarning())
}
