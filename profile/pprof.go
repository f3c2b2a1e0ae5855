package profile

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"
	"runtime/trace"

	"github.com/Octogonapus/MemBenchmark/util"
)

type runtimeProfiler struct {
	dir   string
	ext   string
	start func(io.Writer) error
	stop  func()
}

func init() {
	RegisterProfiler(CPU, func(dir string) Profiler {
		return &runtimeProfiler{dir: dir, ext: "pprof", start: pprof.StartCPUProfile, stop: pprof.StopCPUProfile}
	})
	RegisterProfiler(Trace, func(dir string) Profiler {
		return &runtimeProfiler{dir: dir, ext: "trace", start: trace.Start, stop: trace.Stop}
	})
}

func (p *runtimeProfiler) SetUp() error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating profile dir failed: %w", err)
	}
	return nil
}

func (p *runtimeProfiler) Profile(name string, fn func() error) (string, error) {
	resultPath := filepath.Join(p.dir, fmt.Sprintf("%s-%s.%s", util.Slugify(name), util.Randstring(8), p.ext))
	f, err := os.Create(resultPath)
	if err != nil {
		return "", fmt.Errorf("creating profile file failed: %w", err)
	}
	defer f.Close()

	if err := p.start(f); err != nil {
		return "", fmt.Errorf("starting profiler failed: %w", err)
	}
	runErr := fn()
	p.stop()

	slog.Debug("wrote profile", slog.String("name", name), slog.String("path", resultPath))
	return resultPath, runErr
}
