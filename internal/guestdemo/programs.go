package guestdemo

import (
	"github.com/JohnDoe117/mjit/internal/jitcode"
)

// Register layout shared by every program below: int registers 0-3 are
// reserved for (loop bound n, accumulator acc, loop counter i, scratch), so
// the bytecode listings can be read without a separate register map.
const (
	regN   = 0
	regAcc = 1
	regI   = 2
	regTmp = 3
	regTag = 4
)

// SumLoop builds the scenario (a)/(b) guest program from spec.md §8: a
// tight counting loop around INT_ADD/INT_LT with a jit_merge_point at the
// loop header, closing the trace back on itself once the greenkey (here,
// nothing — the loop has no green-resident state) repeats. Guest inputs:
// int register 0 holds the loop bound n; the result is left in the
// accumulator (int register 1) when the frame returns.
//
//	i = 0; acc = 0
//	loop:
//	    can_enter_jit()
//	    jit_merge_point()
//	    if not (i < n): goto done
//	    acc = acc + i
//	    i = i + 1
//	    goto loop
//	done:
//	    return acc
func SumLoop() *jitcode.JitCode {
	b := jitcode.NewBuilder()

	done := b.NewLabel()

	loopPC := b.PC()
	b.Emit(jitcode.OpCanEnterJIT, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))
	b.Emit(jitcode.OpJitMergePoint, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))

	b.Emit(jitcode.OpIntLt, jitcode.IntArg(regI), jitcode.IntArg(regN), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpGotoIfNot, jitcode.LabelArg(done), jitcode.IntArg(regTmp))

	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regAcc), jitcode.IntArg(regI), jitcode.ResultArg(regAcc))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regI), jitcode.ConstArg(1), jitcode.ResultArg(regI))

	gotoAlways(b, loopPC)

	b.PatchLabel(done, b.PC())
	b.Emit(jitcode.OpReturn, jitcode.IntArg(regAcc))

	return b.Finish("sumloop")
}

// gotoAlways encodes an unconditional backward branch to targetPC as
// GOTO_IF_NOT on a constant-false condition (the condition is never true,
// so the branch is always taken) — the builder's only control-transfer
// primitive is GOTO_IF_NOT, matching how the demo guest's own compiler
// would lower a bare `goto`.
func gotoAlways(b *jitcode.Builder, targetPC int) {
	label := b.NewLabel()
	b.Emit(jitcode.OpGotoIfNot, jitcode.LabelArg(label), jitcode.ConstArg(0))
	b.PatchLabel(label, targetPC)
}

// OverflowLoop builds scenario (c): a loop that repeatedly doubles an
// accumulator via INT_ADD_OVF, exercising GUARD_OVERFLOW once the value
// exceeds 62 bits. Guest input: int register 0 holds the iteration count.
//
//	i = 0; acc = 1
//	loop:
//	    can_enter_jit(); jit_merge_point()
//	    if not (i < n): goto done
//	    acc = acc +#ovf acc
//	    i = i + 1
//	    goto loop
//	done:
//	    return acc
func OverflowLoop() *jitcode.JitCode {
	b := jitcode.NewBuilder()

	done := b.NewLabel()

	loopPC := b.PC()
	b.Emit(jitcode.OpCanEnterJIT, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))
	b.Emit(jitcode.OpJitMergePoint, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))

	b.Emit(jitcode.OpIntLt, jitcode.IntArg(regI), jitcode.IntArg(regN), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpGotoIfNot, jitcode.LabelArg(done), jitcode.IntArg(regTmp))

	b.Emit(jitcode.OpIntAddOvf, jitcode.IntArg(regAcc), jitcode.IntArg(regAcc), jitcode.ResultArg(regAcc))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regI), jitcode.ConstArg(1), jitcode.ResultArg(regI))

	gotoAlways(b, loopPC)

	b.PatchLabel(done, b.PC())
	b.Emit(jitcode.OpReturn, jitcode.IntArg(regAcc))

	return b.Finish("overflowloop")
}

// CallLoop builds scenario (d): a loop that calls the pure "double" host
// function through CALL_PURE on the accumulator every iteration (spec.md
// §8's pure-call scenario). Guest input: int register 0 holds the loop
// bound; the loop has no greens, and register 3 is scratch that receives
// the call's result before it is added to the accumulator.
//
//	i = 0; acc = 0
//	loop:
//	    can_enter_jit(); jit_merge_point()
//	    if not (i < n): goto done
//	    acc = acc + call_pure(double, acc)
//	    i = i + 1
//	    goto loop
//	done:
//	    return acc
func CallLoop() *jitcode.JitCode {
	b := jitcode.NewBuilder()
	callDescr := jitcode.DescrArg(DoubleCallDescr)

	done := b.NewLabel()

	loopPC := b.PC()
	b.Emit(jitcode.OpCanEnterJIT, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))
	b.Emit(jitcode.OpJitMergePoint, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))

	b.Emit(jitcode.OpIntLt, jitcode.IntArg(regI), jitcode.IntArg(regN), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpGotoIfNot, jitcode.LabelArg(done), jitcode.IntArg(regTmp))

	b.Emit(jitcode.OpCallPure, callDescr, jitcode.BoxesArg(regAcc), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regAcc), jitcode.IntArg(regTmp), jitcode.ResultArg(regAcc))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regI), jitcode.ConstArg(1), jitcode.ResultArg(regI))

	gotoAlways(b, loopPC)

	b.PatchLabel(done, b.PC())
	b.Emit(jitcode.OpReturn, jitcode.IntArg(regAcc))

	return b.Finish("callloop")
}

// PromoteLoop builds scenario (e): the loop body promotes a supposedly
// near-constant register (PROMOTE) before using it as a CALL_PURE argument,
// exercising GUARD_VALUE the way a polymorphic-inline-cache guest op would
// (spec.md §8's promotion scenario). Guest input: register 0 holds the
// bound, register 4 the (usually-unchanging) tag value to promote.
//
//	i = 0; acc = 0
//	loop:
//	    can_enter_jit(); jit_merge_point()
//	    if not (i < n): goto done
//	    promote tag
//	    acc = acc + call_pure(double, tag)
//	    i = i + 1
//	    goto loop
//	done:
//	    return acc
func PromoteLoop() *jitcode.JitCode {
	b := jitcode.NewBuilder()
	callDescr := jitcode.DescrArg(DoubleCallDescr)

	done := b.NewLabel()

	loopPC := b.PC()
	b.Emit(jitcode.OpCanEnterJIT, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI, regTag))
	b.Emit(jitcode.OpJitMergePoint, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI, regTag))

	b.Emit(jitcode.OpIntLt, jitcode.IntArg(regI), jitcode.IntArg(regN), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpGotoIfNot, jitcode.LabelArg(done), jitcode.IntArg(regTmp))

	b.Emit(jitcode.OpPromote, jitcode.IntArg(regTag))
	b.Emit(jitcode.OpCallPure, callDescr, jitcode.BoxesArg(regTag), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regAcc), jitcode.IntArg(regTmp), jitcode.ResultArg(regAcc))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regI), jitcode.ConstArg(1), jitcode.ResultArg(regI))

	gotoAlways(b, loopPC)

	b.PatchLabel(done, b.PC())
	b.Emit(jitcode.OpReturn, jitcode.IntArg(regAcc))

	return b.Finish("promoteloop")
}

// ForceLoop builds scenario (f): a loop whose body issues CALL_MAY_FORCE to
// the "force" host function, which the resume-data machinery must be able
// to reconstruct a frame snapshot for on GUARD_NOT_FORCED failure — the
// simplified stand-in for a full virtualizable (see DESIGN.md's Open
// Question decision on scope).
//
//	i = 0; acc = 0
//	loop:
//	    can_enter_jit(); jit_merge_point()
//	    if not (i < n): goto done
//	    acc = call_may_force(force, acc)
//	    i = i + 1
//	    goto loop
//	done:
//	    return acc
func ForceLoop() *jitcode.JitCode {
	b := jitcode.NewBuilder()
	callDescr := jitcode.DescrArg(ForceCallDescr)

	done := b.NewLabel()

	loopPC := b.PC()
	b.Emit(jitcode.OpCanEnterJIT, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))
	b.Emit(jitcode.OpJitMergePoint, jitcode.GreensArg(), jitcode.RedsArg(regN, regAcc, regI))

	b.Emit(jitcode.OpIntLt, jitcode.IntArg(regI), jitcode.IntArg(regN), jitcode.ResultArg(regTmp))
	b.Emit(jitcode.OpGotoIfNot, jitcode.LabelArg(done), jitcode.IntArg(regTmp))

	b.Emit(jitcode.OpCallMayForce, callDescr, jitcode.BoxesArg(regAcc), jitcode.ResultArg(regAcc))
	b.Emit(jitcode.OpIntAdd, jitcode.IntArg(regI), jitcode.ConstArg(1), jitcode.ResultArg(regI))

	gotoAlways(b, loopPC)

	b.PatchLabel(done, b.PC())
	b.Emit(jitcode.OpReturn, jitcode.IntArg(regAcc))

	return b.Finish("forceloop")
}
