package metainterp

import "go.uber.org/zap"

// Profiler counts how many ops each guest jitcode contributed to the
// current trace attempt, used by Blackhole to pick a greenkey for the
// "biggest function" heuristic (spec.md §4.4: "it identifies the biggest
// guest function in the trace to use as a greenkey for avoiding future
// attempts").
type Profiler struct {
	counts map[string]int
}

func NewProfiler() *Profiler {
	return &Profiler{counts: make(map[string]int)}
}

func (p *Profiler) Count(jitCodeName string) {
	p.counts[jitCodeName]++
}

func (p *Profiler) Reset() {
	p.counts = make(map[string]int)
}

// Biggest returns the jitcode name with the most recorded ops, and its
// count. Ties break on first-seen order of the underlying map, which is
// nondeterministic in Go; callers only use this as a heuristic, never for
// correctness.
func (p *Profiler) Biggest() (name string, count int) {
	for n, c := range p.counts {
		if c > count {
			name, count = n, c
		}
	}
	return name, count
}

// Blackhole abandons the current trace: the recorded History is discarded
// (its ResumeDescrs simply become unreachable and are collected by the Go
// GC, matching spec.md §5's cancellation note) and the biggest-function
// heuristic names a greenkey the driver should avoid re-tracing for a
// while.
func (m *MetaInterp) Blackhole() (avoidGreenkey string) {
	name, _ := m.profiler.Biggest()
	m.trace = nil
	m.logger.Debug("blackhole", zap.String("avoid", name))
	return name
}
