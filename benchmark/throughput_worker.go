package benchmark

import (
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Octogonapus/MemBenchmark/kernel"
	"github.com/Octogonapus/MemBenchmark/timer"
	"github.com/Octogonapus/MemBenchmark/topology"
)

// A Worker runs a kernel repeatedly over its slice of the buffer. The counters are only
// meaningful after Run returns.
type Worker interface {
	Run()
	Passes() uint64
	// AdjustedTicks is the kernel time minus the dummy time, never negative.
	AdjustedTicks() uint64
	DummyTicks() uint64
	BytesPerPass() uint64
	HadWarning() bool
}

type WorkerInput struct {
	Index  int
	Offset int
	Mem    []byte
	Kernel kernel.Kernel
	// CPU is the logical CPU to pin to, or -1 to run unpinned.
	CPU      int
	Timer    timer.Timer
	Duration time.Duration
	// Passes, when non-zero, replaces Duration with a fixed pass count.
	Passes uint64
}

// Below this many elapsed ticks the timer resolution dominates the measurement.
const minElapsedTicks = 10000

type throughputWorker struct {
	input        *WorkerInput
	bytesPerPass uint64

	passes        atomic.Uint64
	adjustedTicks atomic.Uint64
	dummyTicks    atomic.Uint64
	warning       atomic.Bool
}

func NewThroughputWorker(input *WorkerInput) Worker {
	return &throughputWorker{
		input:        input,
		bytesPerPass: input.Kernel.BytesPerPass(len(input.Mem)),
	}
}

func (w *throughputWorker) Run() {
	// The thread is never unlocked, so the runtime discards it when the goroutine exits and the
	// next iteration starts on fresh threads.
	if w.input.CPU >= 0 {
		if err := topology.PinCurrentThread(w.input.CPU); err != nil {
			slog.Warn("failed to pin worker", slog.Int("worker", w.input.Index), slog.Int("cpu", w.input.CPU), slog.String("error", err.Error()))
			w.warning.Store(true)
		}
	} else {
		runtime.LockOSThread()
	}

	tm := w.input.Timer
	mem := w.input.Mem
	k := w.input.Kernel
	targetTicks := uint64(float64(w.input.Duration.Nanoseconds()) / tm.NsPerTick())

	var passes, elapsed uint64
	start := tm.Ticks()
	for {
		k.Run(mem)
		passes++
		elapsed = tm.Ticks() - start
		if w.input.Passes > 0 {
			if passes >= w.input.Passes {
				break
			}
		} else if elapsed >= targetTicks {
			break
		}
	}

	var dummy uint64
	start = tm.Ticks()
	for p := uint64(0); p < passes; p++ {
		k.Dummy(mem)
		dummy = tm.Ticks() - start
	}

	var adjusted uint64
	if elapsed > dummy {
		adjusted = elapsed - dummy
	} else {
		slog.Warn("dummy kernel took at least as long as the real kernel", slog.Int("worker", w.input.Index), slog.Uint64("elapsedTicks", elapsed), slog.Uint64("dummyTicks", dummy))
		w.warning.Store(true)
	}
	if elapsed < minElapsedTicks {
		slog.Warn("worker measured very few ticks", slog.Int("worker", w.input.Index), slog.Uint64("elapsedTicks", elapsed))
		w.warning.Store(true)
	}

	w.adjustedTicks.Store(adjusted)
	w.dummyTicks.Store(dummy)
	w.passes.Store(passes)
}

func (w *throughputWorker) Passes() uint64 {
	return w.passes.Load()
}

func (w *throughputWorker) AdjustedTicks() uint64 {
	return w.adjustedTicks.Load()
}

func (w *throughputWorker) DummyTicks() uint64 {
	return w.dummyTicks.Load()
}

func (w *throughputWorker) BytesPerPass() uint64 {
	return w.bytesPerPass
}

func (w *throughputWorker) HadWarning() bool {
	return w.warning.Load()
}
