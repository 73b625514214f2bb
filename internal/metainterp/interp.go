// Package metainterp implements the meta-interpreter (L4): symbolic
// execution of guest jitcode that either runs concretely (no active trace)
// or concretely-while-recording (tracing), producing the IR a driver later
// optimizes and compiles.
package metainterp

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/JohnDoe117/mjit/internal/jitcode"
	"github.com/JohnDoe117/mjit/internal/resume"
	"go.uber.org/zap"
)

// Option configures a MetaInterp at construction, following the teacher's
// functional-options pattern (vm.VMOption).
type Option func(*MetaInterp)

// WithLogger attaches a zap logger; the default is a no-op logger so
// tracing never pays logging cost unless the embedder asks for it.
func WithLogger(l *zap.Logger) Option {
	return func(m *MetaInterp) { m.logger = l }
}

// WithTraceLimit overrides the default max operations per trace before a
// blackhole (spec.md §4.4/§7 TraceTooLong).
func WithTraceLimit(n int) Option {
	return func(m *MetaInterp) { m.traceLimit = n }
}

// MetaInterp is one guest-interpreter instance's symbolic-execution engine.
// It owns the guest heap, the frame pool, and the call stack; it is driven
// one guest instruction at a time by Step, mirroring the teacher's
// vm.VM.Run hot loop but dispatching into ir.History instead of a byte
// tape.
type MetaInterp struct {
	heap      *ir.Heap
	callTable *CallTable
	pool      framePool
	frames    []*MIFrame

	interp *ir.History // recording=false, reused for plain interpretation
	trace  *ir.History // recording=true, present only while tracing

	traceLimit int
	logger     *zap.Logger
	profiler   *Profiler

	jitted bool // read by WeAreJitted; nothing in this module ever sets it
	hooks  DriverHooks

	// lastReturn holds the most recent OpReturn's value; the demo guest's
	// call convention is opaque host calls (CallTable) rather than nested
	// jitcode activations, so there is no caller register to deposit into.
	lastReturn box.Box
}

// LastReturn returns the value of the most recently executed OpReturn.
func (m *MetaInterp) LastReturn() box.Box { return m.lastReturn }

func New(callTable *CallTable, opts ...Option) *MetaInterp {
	heap := ir.NewHeap()
	m := &MetaInterp{
		heap:       heap,
		callTable:  callTable,
		traceLimit: 4096,
		logger:     zap.NewNop(),
		profiler:   NewProfiler(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.interp = ir.NewHistory(heap, callTable, nil)
	m.interp.SetRecording(false)
	return m
}

func (m *MetaInterp) Heap() *ir.Heap { return m.heap }

// WeAreJitted reports whether the currently executing code is native
// compiled code rather than this interpreter. Native runs go through the
// driver's Emitter, and neither the driver nor this package sets the flag
// it reads, so it always returns false.
func (m *MetaInterp) WeAreJitted() bool { return m.jitted }

// PushFrame allocates (or reuses from the pool) a frame for jc and makes it
// current.
func (m *MetaInterp) PushFrame(jc *jitcode.JitCode) *MIFrame {
	f := m.pool.get(jc)
	m.frames = append(m.frames, f)
	return f
}

// PopFrame discards the current frame back into the pool.
func (m *MetaInterp) PopFrame() {
	n := len(m.frames)
	if n == 0 {
		invariantf("PopFrame with empty frame stack")
	}
	f := m.frames[n-1]
	m.frames = m.frames[:n-1]
	m.pool.put(f)
}

func (m *MetaInterp) Current() *MIFrame {
	if len(m.frames) == 0 {
		return nil
	}
	return m.frames[len(m.frames)-1]
}

// IsTracing reports whether a trace is currently being recorded.
func (m *MetaInterp) IsTracing() bool { return m.trace != nil }

// StartTracing begins a new trace with inputargs as its greenkey-adjacent
// live variable vector (the reds named at the enclosing merge point).
func (m *MetaInterp) StartTracing(inputargs []box.Box) {
	m.trace = ir.NewHistory(m.heap, m.callTable, inputargs)
	m.profiler.Reset()
	m.logger.Debug("trace started", zap.Int("inputargs", len(inputargs)))
}

// StopTracing ends the current trace and returns its History for the
// driver to optimize and compile.
func (m *MetaInterp) StopTracing() *ir.History {
	h := m.trace
	m.trace = nil
	return h
}

// active returns whichever History should receive the next executed op:
// the live trace while tracing, otherwise the silent interpretation
// history (so the exact same evaluation code path runs either way).
func (m *MetaInterp) active() *ir.History {
	if m.trace != nil {
		return m.trace
	}
	return m.interp
}

// generateGuard implements generate_guard from spec.md §4.4: a Const arg
// needs no guard (already known at record time); otherwise it records the
// guard op with a fresh ResumeGuardDescr capturing the current frame stack.
// This bypass is only correct for guards over an actual guest value
// (GUARD_TRUE/GUARD_FALSE/GUARD_VALUE/GUARD_OVERFLOW/GUARD_NO_OVERFLOW): a
// constant there really does mean the guard can never fail. Exception and
// forced guards carry a bookkeeping sentinel, not a guest value, and must
// go through recordGuardAlways/recordForcedGuard instead.
func (m *MetaInterp) generateGuard(opnum ir.Opnum, arg box.Box, extraArgs []box.Box) {
	if arg.IsConst() {
		return
	}
	if m.trace == nil {
		return // not tracing: guards only exist inside a recorded trace
	}
	descr := resume.NewResumeGuardDescr(m.captureSnapshot())
	args := append([]box.Box{arg}, extraArgs...)
	m.trace.Record(opnum, args, nil, descr)
}

func (m *MetaInterp) captureSnapshot() *resume.Snapshot {
	return resume.CaptureResumeData(m.frameSources())
}

// recordGuardAlways records opnum unconditionally, regardless of arg's
// constness: used for GUARD_EXCEPTION/GUARD_NO_EXCEPTION, whose arg is a
// bookkeeping sentinel (the exception box, or a 0 meaning "none raised")
// rather than a guest value generateGuard's const-skip could safely reason
// about. Spec.md §3 requires every CAN_RAISE op to be immediately followed
// by one of these two guards in the recorded trace.
func (m *MetaInterp) recordGuardAlways(opnum ir.Opnum, arg box.Box) {
	if m.trace == nil {
		return
	}
	descr := resume.NewResumeGuardDescr(m.captureSnapshot())
	m.trace.Record(opnum, []box.Box{arg}, nil, descr)
}

// recordForcedGuard records GUARD_NOT_FORCED after a CALL_MAY_FORCE that
// didn't raise (spec.md §4.4), carrying a ResumeGuardForcedDescr so a later
// failure can reconcile the snapshot with force's externally-observed
// replacement values rather than trusting the compiled frame alone.
func (m *MetaInterp) recordForcedGuard(arg box.Box, force resume.ForcePath) {
	if m.trace == nil {
		return
	}
	descr := resume.NewResumeGuardForcedDescr(m.captureSnapshot(), force)
	m.trace.Record(ir.GUARD_NOT_FORCED, []box.Box{arg}, nil, descr)
}

func (m *MetaInterp) frameSources() []resume.FrameSource {
	out := make([]resume.FrameSource, len(m.frames))
	for i, f := range m.frames {
		out[i] = f
	}
	return out
}

// CheckTraceLimit reports whether the current trace has grown past
// traceLimit and should blackhole (spec.md §7 TraceTooLong, §8 property 5).
func (m *MetaInterp) CheckTraceLimit() bool {
	return m.trace != nil && len(m.trace.Ops) > m.traceLimit
}
