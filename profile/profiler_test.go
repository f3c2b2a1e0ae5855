package profile

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfiler(t *testing.T) {
	_, err := NewProfiler(None, t.TempDir())
	assert.Error(t, err)

	_, err = NewProfiler("vtune", t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownProfiler)

	assert.Equal(t, `"cpu", "none", "trace"`, ExplainProfilers())
}

func TestProfileWritesFile(t *testing.T) {
	for _, kind := range []ProfilerKind{CPU, Trace} {
		p, err := NewProfiler(kind, t.TempDir())
		require.NoError(t, err)
		require.NoError(t, p.SetUp())

		boom := errors.New("boom")
		path, err := p.Profile("Seq Read 64", func() error { return boom })
		assert.ErrorIs(t, err, boom)

		info, statErr := os.Stat(path)
		require.NoError(t, statErr, kind)
		assert.Greater(t, info.Size(), int64(0), kind)
	}
}
