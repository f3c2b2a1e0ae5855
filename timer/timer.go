package timer

import (
	"fmt"
	"log/slog"
	"time"
)

// A Timer converts between ticks and nanoseconds. The conversion factor is fixed once the timer is
// created.
type Timer interface {
	Ticks() uint64
	NsPerTick() float64
}

// MonotonicTimer counts ticks of the runtime's monotonic clock since the timer was created.
type MonotonicTimer struct {
	base       time.Time
	nsPerTick  float64
	resolution uint64
}

func (t *MonotonicTimer) Ticks() uint64 {
	return uint64(time.Since(t.base))
}

func (t *MonotonicTimer) NsPerTick() float64 {
	return t.nsPerTick
}

// Resolution is the smallest non-zero tick delta seen during calibration.
func (t *MonotonicTimer) Resolution() uint64 {
	return t.resolution
}

const resolutionSamples = 1000

// Calibrate measures how many nanoseconds of wall time pass per tick over the given window.
func Calibrate(window time.Duration) (*MonotonicTimer, error) {
	if window <= 0 {
		return nil, fmt.Errorf("calibration window must be positive, got %s", window)
	}
	t := &MonotonicTimer{base: time.Now()}

	startWall := time.Now()
	startTicks := t.Ticks()
	time.Sleep(window)
	endTicks := t.Ticks()
	elapsedWall := time.Since(startWall)

	ticks := endTicks - startTicks
	if ticks == 0 {
		return nil, fmt.Errorf("timer did not advance during a %s calibration window", window)
	}
	t.nsPerTick = float64(elapsedWall.Nanoseconds()) / float64(ticks)

	prev := t.Ticks()
	for i := 0; i < resolutionSamples; i++ {
		now := t.Ticks()
		if d := now - prev; d > 0 && (t.resolution == 0 || d < t.resolution) {
			t.resolution = d
		}
		prev = now
	}

	slog.Debug("calibrated timer",
		slog.Float64("nsPerTick", t.nsPerTick),
		slog.Uint64("resolutionTicks", t.resolution),
		slog.Duration("window", window),
	)
	return t, nil
}

type fixed struct {
	nsPerTick float64
	start     time.Time
}

// Fixed returns a timer with a constant conversion factor whose ticks advance at that rate.
func Fixed(nsPerTick float64) Timer {
	return &fixed{nsPerTick: nsPerTick, start: time.Now()}
}

func (f *fixed) Ticks() uint64 {
	return uint64(float64(time.Since(f.start).Nanoseconds()) / f.nsPerTick)
}

func (f *fixed) NsPerTick() float64 {
	return f.nsPerTick
}
