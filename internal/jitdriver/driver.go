// Package jitdriver implements the JIT driver (L5): the top-level lifecycle
// from "guest is about to execute a loop" to "native code runs" described
// in spec.md §4.5. It owns the per-greenkey loop token table, hotness
// counters, and the guard-failure-to-bridge escalation policy.
package jitdriver

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/JohnDoe117/mjit/internal/jitcode"
	"github.com/JohnDoe117/mjit/internal/metainterp"
	"github.com/JohnDoe117/mjit/internal/resume"
	"go.uber.org/zap"
)

// Emitter is L1's ABI as seen by the driver: compile an optimized op list
// into native code and return an opaque entry handle. pkg/amd64 plus
// pkg/codebuf provide the concrete implementation; tests can swap in a
// fake that just records what it was asked to compile.
type Emitter interface {
	Assemble(token *ir.LoopToken) error
	Run(token *ir.LoopToken, args []box.Box) (result []box.Box, guardIdx int, failargs []box.Box, err error)
	PatchBridge(token *ir.LoopToken, guardIdx int, bridge *ir.LoopToken) error
}

// Spec names one merge point's green/red partition. Name prefixes the Descr
// of every loop the Driver compiles; Greens and Reds are kept as declared
// names only, and the Driver does not check call-site greenkey/redkey
// vectors against them.
type Spec struct {
	Name   string
	Greens []string
	Reds   []string
}

// Option configures a Driver, following the teacher's functional-options
// convention (vm.VMOption / WithMemorySize).
type Option func(*Driver)

func WithLogger(l *zap.Logger) Option      { return func(d *Driver) { d.logger = l } }
func WithEmitter(e Emitter) Option         { return func(d *Driver) { d.emitter = e } }
func WithInterp(m *metainterp.MetaInterp) Option { return func(d *Driver) { d.interp = m } }

// Params are the tunables set_param exposes to the guest interpreter
// (spec.md §6).
type Params struct {
	Threshold       int
	TraceLimit      int
	Inlining        bool
	EnableOpts      []string
	CompileThreshold int64 // guard failures before a bridge is attempted
}

func defaultParams() Params {
	return Params{Threshold: 1000, TraceLimit: 4096, CompileThreshold: 10}
}

// Driver is one guest interpreter instance's JIT state. Per spec.md §5,
// driver instances never share LoopToken tables across guest threads.
type Driver struct {
	spec   Spec
	interp *metainterp.MetaInterp

	emitter Emitter
	logger  *zap.Logger
	params  Params

	hot    map[string]int
	tokens map[string]*ir.LoopToken

	// loopJitCode remembers, per LoopToken.ID, which guest JitCode the loop
	// was traced from: traceBridge needs it to push a fresh MIFrame and
	// re-enter the meta-interpreter at a rebuilt resume point, and nothing
	// else in a LoopToken's own fields names it (ir can't import jitcode).
	loopJitCode map[string]*jitcode.JitCode

	tracingGreenkey string
	tracingStart    []box.Box
	tracingJitCode  *jitcode.JitCode
}

func New(spec Spec, opts ...Option) *Driver {
	d := &Driver{
		spec:        spec,
		logger:      zap.NewNop(),
		params:      defaultParams(),
		hot:         make(map[string]int),
		tokens:      make(map[string]*ir.LoopToken),
		loopJitCode: make(map[string]*jitcode.JitCode),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.interp != nil {
		d.interp.SetHooks(d)
	}
	return d
}

// SetParam implements the set_param driver ABI (spec.md §6).
func (d *Driver) SetParam(name string, value any) error {
	switch name {
	case "threshold":
		d.params.Threshold = value.(int)
	case "trace_limit":
		d.params.TraceLimit = value.(int)
	case "inlining":
		d.params.Inlining = value.(bool)
	case "enable_opts":
		d.params.EnableOpts = value.([]string)
	case "compile_threshold":
		d.params.CompileThreshold = int64(value.(int))
	default:
		return fmt.Errorf("jitdriver: unknown param %q", name)
	}
	return nil
}

// Tokens returns the compiled-loop table keyed by greenkey, for tooling
// that wants to inspect what got traced (e.g. a dump command) without
// reaching into driver internals.
func (d *Driver) Tokens() map[string]*ir.LoopToken { return d.tokens }

func greenkey(greens []box.Box) string {
	s := ""
	for _, g := range greens {
		s += g.String() + "|"
	}
	return s
}

// CanEnterJIT implements metainterp.DriverHooks: the first chance, on every
// backward branch, to dispatch to already-compiled native code or start
// tracing a new one.
func (d *Driver) CanEnterJIT(jc *jitcode.JitCode, greens, reds []box.Box) bool {
	key := greenkey(greens)
	if token, ok := d.tokens[key]; ok && token.CompiledAt != 0 {
		d.runCompiled(token, reds)
		return false
	}
	if d.interp.IsTracing() {
		return false
	}
	d.hot[key]++
	d.logger.Debug("hotness", zap.String("greenkey", key), zap.Int("count", d.hot[key]))
	if d.hot[key] < d.params.Threshold {
		return false
	}
	d.logger.Info("starting trace", zap.String("greenkey", key))
	d.tracingGreenkey = key
	d.tracingStart = reds
	d.tracingJitCode = jc
	d.interp.StartTracing(reds)
	return true
}

// JitMergePoint implements metainterp.DriverHooks: fired at the guest
// bytecode loop header. If greens match the trace-start greens and the
// history is non-empty, the trace closes here.
func (d *Driver) JitMergePoint(greens, reds []box.Box) bool {
	if !d.interp.IsTracing() {
		return false
	}
	if d.interp.CheckTraceLimit() {
		avoid := d.interp.Blackhole()
		d.logger.Warn("trace too long, blackholing", zap.String("avoid", avoid))
		d.hot[avoid] = -d.params.Threshold // suppress immediate re-attempts
		return false
	}
	key := greenkey(greens)
	if key != d.tracingGreenkey {
		return false
	}
	history := d.interp.StopTracing()
	if len(history.Ops) == 0 {
		// Nothing recorded yet (the trace started at the CAN_ENTER_JIT just
		// before this merge point): keep tracing through the loop body.
		d.interp.StartTracing(history.Inputargs)
		return false
	}
	history.Record(ir.JUMP, reds, nil, nil)
	d.compileNewLoop(key, history)
	return true
}

func (d *Driver) compileNewLoop(key string, history *ir.History) {
	ops := ir.Optimize(history.Ops)
	token := ir.NewLoopToken(newTokenID(), history.Inputargs, ops, d.spec.Name+":"+key)
	d.logger.Info("compiling loop", zap.String("greenkey", key), zap.Int("ops", len(ops)))
	if d.emitter != nil {
		if err := d.emitter.Assemble(token); err != nil {
			d.logger.Warn("compile failed, leaving interpreted", zap.Error(err))
			return
		}
	}
	d.tokens[key] = token
	d.loopJitCode[token.ID] = d.tracingJitCode
}

func (d *Driver) runCompiled(token *ir.LoopToken, reds []box.Box) {
	if d.emitter == nil {
		return
	}
	_, guardIdx, failargs, err := d.emitter.Run(token, reds)
	if err != nil {
		d.logger.Warn("native run failed", zap.Error(err))
		return
	}
	if guardIdx < 0 {
		return // ran to completion without a guard failure
	}
	d.onGuardFailure(token, guardIdx, failargs)
}

// onGuardFailure implements the guard-failure lifecycle from spec.md
// §4.3/§4.5: decode the guard's resume descr, increment its failure
// counter, and past threshold attempt a bridge.
func (d *Driver) onGuardFailure(token *ir.LoopToken, guardIdx int, failargs []box.Box) {
	guard := token.GuardAt(guardIdx)
	if guard == nil {
		d.logger.Error("guard failure at non-guard op index", zap.Int("idx", guardIdx))
		return
	}
	descr, ok := guard.Descr.(*resume.ResumeGuardDescr)
	if !ok {
		if forced, ok2 := guard.Descr.(*resume.ResumeGuardForcedDescr); ok2 {
			descr = &forced.ResumeGuardDescr
		} else {
			d.logger.Error("guard without resume descr")
			return
		}
	}
	n := descr.RecordFailure()
	if bridge, ok := token.Bridges[guardIdx]; ok {
		d.logger.Debug("transferring to existing bridge", zap.String("bridge", bridge.ID))
		return
	}
	if n < d.params.CompileThreshold {
		return
	}
	d.traceBridge(token, guardIdx, descr, failargs)
}

// traceBridge starts a fresh history from the failing guard and compiles
// it as a bridge, patched into the guard site so future failures of this
// exact guard jump straight there (spec.md §8 property 6). It does so by
// actually rebuilding the live frame(s) the guard's snapshot describes and
// driving the meta-interpreter forward from there, so the bridge's ops
// reflect whatever guard-failure path the guest program actually takes
// (scenario §8(b)'s "the other branch adds 1000 instead") rather than
// compiling an empty trace.
func (d *Driver) traceBridge(token *ir.LoopToken, guardIdx int, descr *resume.ResumeGuardDescr, failargs []box.Box) {
	frames, err := resume.RebuildFromResumeData(descr.Snapshot, failargs)
	if err != nil {
		d.logger.Warn("resume rebuild failed, staying interpreted", zap.Error(err))
		return
	}
	if len(frames) == 0 {
		d.logger.Warn("bridge resume snapshot carries no frames, staying interpreted")
		return
	}
	jc := d.loopJitCode[token.ID]
	if jc == nil {
		d.logger.Warn("no jitcode on record for bridged token, staying interpreted", zap.String("token", token.ID))
		return
	}
	d.logger.Info("tracing bridge", zap.Int("guard", guardIdx), zap.Int("frames", len(frames)))

	d.interp.StartTracing(failargs)

	// Re-entry runs with hooks detached: CAN_ENTER_JIT/JIT_MERGE_POINT
	// become plain no-ops (metainterp.Step only fires them when hooks is
	// non-nil), so stepping through the bridge body can't recursively
	// trigger another trace-start or clobber the main loop's token table.
	// The bridge's lifetime is bounded below instead of by a merge-point
	// close; whether a bridge can itself close back into a loop is left
	// for a future pass (see DESIGN.md).
	savedHooks := d.interp.Hooks()
	d.interp.SetHooks(nil)

	ok := true
	for _, rf := range frames {
		if rf.JitCodeID != jc.Name {
			d.logger.Warn("bridge frame jitcode mismatch, aborting bridge",
				zap.String("want", jc.Name), zap.String("got", rf.JitCodeID))
			ok = false
			break
		}
		f := d.interp.PushFrame(jc)
		f.Pc = rf.PC
		// Registers are reseeded positionally from the resume snapshot's
		// live-value lists. This guest never leaves register gaps among
		// the slots a guard's snapshot can see (every scenario initializes
		// its registers 0..k contiguously before any merge point), so the
		// nil-compacted LiveInts/LiveRefs/LiveFloats order matches the
		// frame's own 0..k register indices.
		copy(f.Ints, rf.Ints)
		copy(f.Refs, rf.Refs)
		copy(f.Floats, rf.Floats)
	}

	if ok {
		for steps := 0; steps < d.params.TraceLimit && !d.interp.CheckTraceLimit(); steps++ {
			done, stepErr := d.interp.Step()
			if stepErr != nil {
				d.logger.Warn("bridge step failed", zap.Error(stepErr))
				break
			}
			if done {
				break
			}
		}
	}

	d.interp.SetHooks(savedHooks)
	history := d.interp.StopTracing()

	ops := ir.Optimize(history.Ops)
	bridge := ir.NewLoopToken(newTokenID(), failargs, ops, token.Descr+"#bridge")
	if d.emitter != nil {
		if err := d.emitter.Assemble(bridge); err != nil {
			d.logger.Warn("bridge compile failed", zap.Error(err))
			return
		}
		if err := d.emitter.PatchBridge(token, guardIdx, bridge); err != nil {
			d.logger.Warn("bridge patch failed", zap.Error(err))
			return
		}
	}
	token.AttachBridge(guardIdx, bridge)
}
