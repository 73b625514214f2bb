package metainterp

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/JohnDoe117/mjit/internal/jitcode"
	"github.com/JohnDoe117/mjit/internal/resume"
)

// DriverHooks is the upward-facing half of the L4/L5 boundary: the two
// guest-interpreter hints spec.md §4.5 names. The jitdriver package
// implements this; metainterp only needs to fire the hooks at the right
// points in the dispatch loop.
type DriverHooks interface {
	CanEnterJIT(jc *jitcode.JitCode, greens, reds []box.Box) (shouldTrace bool)
	JitMergePoint(greens, reds []box.Box) (closed bool)
}

// SetHooks wires the driver's hint handlers into the dispatch loop.
func (m *MetaInterp) SetHooks(h DriverHooks) { m.hooks = h }

// Hooks returns the currently wired hint handler, nil if none. Used by the
// driver to temporarily detach itself (e.g. while stepping a bridge trace)
// without losing the handler it should restore afterward.
func (m *MetaInterp) Hooks() DriverHooks { return m.hooks }

// Step decodes and executes exactly one guest instruction in the current
// frame, returning done=true once the outermost frame has returned.
func (m *MetaInterp) Step() (done bool, err error) {
	f := m.Current()
	if f == nil {
		return true, nil
	}
	dec := jitcode.NewDecoder(f.JitCode.Code)
	dec.Seek(f.Pc)
	if dec.AtEnd() {
		m.PopFrame()
		return len(m.frames) == 0, nil
	}
	instr, derr := dec.Next()
	if derr != nil {
		return true, derr
	}

	switch instr.Op {
	case jitcode.OpGotoIfNot:
		// f.Pc must already name the resume point (NextPC or the branch
		// target) before generateGuard snapshots the frame: a guard that
		// fails on replay re-enters at this pc, and it must land past the
		// already-decided branch, not back on the GOTO_IF_NOT itself.
		cond := f.resolveInt(instr.IntArgs[0])
		taken := boxTruthy(cond)
		if taken {
			f.Pc = instr.NextPC
			m.generateGuard(ir.GUARD_TRUE, cond, nil)
		} else {
			f.Pc = resolveLabelTarget(instr.Labels[0])
			m.generateGuard(ir.GUARD_FALSE, cond, nil)
		}
		return false, nil

	case jitcode.OpPromote:
		v := f.resolveInt(instr.IntArgs[0])
		f.Pc = instr.NextPC
		if !v.IsConst() {
			f.setInt(instr.IntArgs[0].Reg, box.ConstBox(v))
			m.generateGuard(ir.GUARD_VALUE, v, []box.Box{box.ConstBox(v)})
		}
		return false, nil

	case jitcode.OpReturn:
		m.lastReturn = f.resolveInt(instr.IntArgs[0])
		m.PopFrame()
		return len(m.frames) == 0, nil

	case jitcode.OpRaise:
		excBox := f.resolveRef(instr.RefArgs[0])
		m.active().SetLastException(excBox)
		m.generateGuard(ir.GUARD_EXCEPTION, excBox, nil)
		f.Pc = instr.NextPC
		return false, nil

	case jitcode.OpGotoIfExceptionMismatch:
		// simplified: guest vtable matching is out of scope for the demo
		// guest; always falls through to the next instruction.
		f.Pc = instr.NextPC
		return false, nil

	case jitcode.OpCanEnterJIT:
		if m.hooks != nil {
			greens, reds := resolveGreenRed(f, instr.Greens, instr.Reds)
			m.hooks.CanEnterJIT(f.JitCode, greens, reds)
		}
		f.Pc = instr.NextPC
		return false, nil

	case jitcode.OpJitMergePoint:
		if m.hooks != nil {
			greens, reds := resolveGreenRed(f, instr.Greens, instr.Reds)
			if m.hooks.JitMergePoint(greens, reds) {
				return false, nil
			}
		}
		f.Pc = instr.NextPC
		return false, nil

	default:
		m.execDataOp(f, instr)
		f.Pc = instr.NextPC
		return false, nil
	}
}

// execDataOp handles every opcode that maps directly onto an ir.Opnum:
// arithmetic, comparisons, field/array access, allocation, calls.
func (m *MetaInterp) execDataOp(f *MIFrame, instr jitcode.Instr) {
	sig, ok := jitcode.SignatureOf(instr.Op)
	if !ok || !sig.HasIR {
		invariantf("unhandled opcode %d", instr.Op)
	}

	// Args must be assembled in signature order, not grouped by kind: e.g.
	// SETARRAYITEM_GC is (ref, index, value) which interleaves the ref and
	// int register files.
	intIdx, refIdx, floatIdx, boxesIdx := 0, 0, 0, 0
	args := make([]box.Box, 0, len(sig.Args))
	for _, kind := range sig.Args {
		switch kind {
		case jitcode.ArgBoxInt, jitcode.ArgBoxConst:
			args = append(args, f.resolveInt(instr.IntArgs[intIdx]))
			intIdx++
		case jitcode.ArgBoxRef:
			args = append(args, f.resolveRef(instr.RefArgs[refIdx]))
			refIdx++
		case jitcode.ArgBoxFloat:
			args = append(args, f.resolveFloat(instr.FloatArgs[floatIdx]))
			floatIdx++
		case jitcode.ArgBoxes:
			_ = boxesIdx // the demo guest only uses one ArgBoxes per instruction
			for _, a := range instr.Boxes {
				args = append(args, f.resolveInt(a))
			}
		}
	}

	var descr ir.Descr
	if len(instr.Descrs) > 0 {
		descr = f.JitCode.Descr(instr.Descrs[0])
	}

	result, raised := m.active().ExecuteAndRecord(sig.IR, args, descr)
	m.profiler.Count(f.JitCode.Name)

	switch sig.IR {
	case ir.INT_ADD_OVF, ir.INT_SUB_OVF, ir.INT_MUL_OVF:
		if raised {
			m.generateGuard(ir.GUARD_OVERFLOW, result, nil)
		} else {
			m.generateGuard(ir.GUARD_NO_OVERFLOW, result, nil)
		}
	case ir.INT_FLOORDIV, ir.INT_MOD, ir.UINT_FLOORDIV,
		ir.GETFIELD_GC, ir.SETFIELD_GC, ir.GETARRAYITEM_GC, ir.SETARRAYITEM_GC,
		ir.CALL, ir.CALL_ASSEMBLER, ir.CALL_LOOPINVARIANT:
		if raised {
			excBox := box.NewRef(0)
			m.active().SetLastException(excBox)
			m.recordGuardAlways(ir.GUARD_EXCEPTION, excBox)
			return
		}
		m.recordGuardAlways(ir.GUARD_NO_EXCEPTION, box.ConstInt{Value: 0})

	case ir.CALL_MAY_FORCE:
		if raised {
			excBox := box.NewRef(0)
			m.active().SetLastException(excBox)
			m.recordGuardAlways(ir.GUARD_EXCEPTION, excBox)
			return
		}
		m.recordForcedGuard(box.ConstInt{Value: 0}, forcePathFor(result))
	}

	if instr.HasResult && result != nil {
		switch result.Kind() {
		case box.KindRef:
			f.setRef(instr.Result.Reg, result)
		case box.KindFloat:
			f.setFloat(instr.Result.Reg, result)
		default:
			f.setInt(instr.Result.Reg, result)
		}
	}
}

// forcePathFor builds the ForcePath a GUARD_NOT_FORCED descr carries: a
// closure the driver can invoke to reconcile a forced value against what
// this CALL_MAY_FORCE actually returned. The demo guest has no real
// virtualizable fields to merge (DESIGN.md records this as a deliberate
// simplification), so it reports the call's own result under a fixed key.
func forcePathFor(result box.Box) resume.ForcePath {
	return func() map[string]any { return map[string]any{"result": result} }
}

func boxTruthy(b box.Box) bool {
	switch v := b.(type) {
	case box.ConstInt:
		return v.Value != 0
	case *box.BoxInt:
		return v.Value != 0
	default:
		invariantf("non-int box used as branch condition: %T", b)
		return false
	}
}

// resolveLabelTarget forwards a decoded label unchanged: the builder writes
// each label as an absolute pc in its two-byte slot, so the Decoder's value
// is already the branch target.
func resolveLabelTarget(pc int) int { return pc }

// resolveGreenRed reads a CAN_ENTER_JIT/JIT_MERGE_POINT's greenkey and
// redkey vectors out of the current frame's registers.
func resolveGreenRed(f *MIFrame, greenArgs, redArgs []jitcode.BoxArg) (greens, reds []box.Box) {
	for _, a := range greenArgs {
		greens = append(greens, f.resolveInt(a))
	}
	for _, a := range redArgs {
		reds = append(reds, f.resolveInt(a))
	}
	return greens, reds
}
