package profile

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrUnknownProfiler = errors.New("unknown profiler kind")

type Profiler interface {
	SetUp() error

	// Profile runs fn under the profiler and returns the path of the written profile. The error
	// from fn is returned as is; a profile is still written when fn fails.
	Profile(name string, fn func() error) (string, error)
}

type ProfilerKind string

const (
	None  ProfilerKind = "none"
	CPU   ProfilerKind = "cpu"
	Trace ProfilerKind = "trace"
)

// ProfilerFactory creates a profiler that saves its results into dir.
type ProfilerFactory func(dir string) Profiler

var allProfilers map[ProfilerKind]ProfilerFactory

func RegisterProfiler(kind ProfilerKind, factory ProfilerFactory) {
	if allProfilers == nil {
		allProfilers = map[ProfilerKind]ProfilerFactory{
			None: func(string) Profiler { panic("Profiler kind none is reserved and can't be created") },
		}
	}
	allProfilers[kind] = factory
}

func NewProfiler(kind ProfilerKind, dir string) (Profiler, error) {
	if kind == None {
		return nil, fmt.Errorf("Profiler kind none is reserved and can't be created")
	}

	factory, ok := allProfilers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProfiler, kind)
	}
	return factory(dir), nil
}

func ExplainProfilers() string {
	kinds := make([]string, 0, len(allProfilers))
	for kind := range allProfilers {
		kinds = append(kinds, "\""+string(kind)+"\"")
	}
	slices.Sort(kinds)
	return strings.Join(kinds, ", ")
}
