package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalibrate(t *testing.T) {
	tm, err := Calibrate(20 * time.Millisecond)
	require.NoError(t, err)

	// ticks are monotonic nanoseconds, so the factor is close to 1
	assert.InDelta(t, 1.0, tm.NsPerTick(), 0.05)
	assert.Greater(t, tm.Resolution(), uint64(0))

	a := tm.Ticks()
	time.Sleep(time.Millisecond)
	assert.Greater(t, tm.Ticks(), a)
}

func TestCalibrateRejectsEmptyWindow(t *testing.T) {
	_, err := Calibrate(0)
	assert.Error(t, err)
}

func TestFixed(t *testing.T) {
	tm := Fixed(2)
	assert.Equal(t, 2.0, tm.NsPerTick())

	a := tm.Ticks()
	time.Sleep(2 * time.Millisecond)
	assert.GreaterOrEqual(t, tm.Ticks()-a, uint64(time.Millisecond/2))
}
