// Package jitemit implements a concrete jitdriver.Emitter: it lowers an
// optimized trace's integer arithmetic, comparison, and guard operations
// into native amd64 code via pkg/amd64, installs it into a pkg/codebuf
// arena, and runs it through a small assembly trampoline (the standard
// technique an in-process Go JIT uses to jump into code it just wrote,
// since Go cannot call a raw function pointer on its own).
//
// Coverage is intentionally partial: only INT_ADD/INT_SUB/INT_MUL/INT_AND/
// INT_OR/INT_XOR, the signed comparisons INT_LT..INT_GE, GUARD_TRUE/
// GUARD_FALSE and JUMP appear in compiled code. Assemble returns an error
// for anything else (other integer ops such as shifts and unsigned
// comparisons, field and array access, allocation, calls, overflow and
// exception guards), and
// jitdriver already treats that as "leave this loop interpreted" — the
// same graceful degradation spec.md describes for a trace the backend
// can't yet handle.
package jitemit

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/JohnDoe117/mjit/internal/jitdriver"
	"github.com/JohnDoe117/mjit/pkg/amd64"
	"github.com/JohnDoe117/mjit/pkg/codebuf"
)

const slotSize = 8

// bailoutSlot is how many bytes emitBailout always reserves for a guard's
// failure stub, padding with Nops past the interpreted-bailout form (mov
// eax, guardIdx; ret) so PatchBridge can later overwrite the whole slot
// with an absolute jump to a bridge's entry point (mov rax, imm64; jmp rax)
// without touching whatever code follows it.
const bailoutSlot = 13

// compiled is the side-table entry jitemit keeps per LoopToken; LoopToken
// itself only exposes an opaque CompiledAt entry point, not the bookkeeping
// an emitter needs to run it.
type compiled struct {
	arena    *codebuf.Arena
	entry    uintptr
	slots    map[box.Box]int
	slotBox  []box.Box   // slot index -> box, for reconstructing failargs
	bailouts map[int]int // guard op index -> byte offset of its bailout slot
}

// Emitter assembles LoopTokens into native code and runs them, implementing
// jitdriver.Emitter.
type Emitter struct {
	arenaSize int
	tokens    map[*ir.LoopToken]*compiled
}

func New(arenaSize int) *Emitter {
	if arenaSize <= 0 {
		arenaSize = 64 * 1024
	}
	return &Emitter{arenaSize: arenaSize, tokens: make(map[*ir.LoopToken]*compiled)}
}

var _ jitdriver.Emitter = (*Emitter)(nil)

// Assemble lowers token.Ops into native code and seals it into a fresh
// arena. On any unsupported op it leaves token uncompiled and returns an
// error, matching the teacher's own fail-soft build step (cmd_build's "-O"
// just skips an optimisation pass it can't apply; here a whole loop is
// skipped rather than miscompiled).
func (e *Emitter) Assemble(token *ir.LoopToken) error {
	slots := make(map[box.Box]int)
	var slotBox []box.Box
	slotOf := func(b box.Box) int {
		if idx, ok := slots[b]; ok {
			return idx
		}
		idx := len(slotBox)
		slots[b] = idx
		slotBox = append(slotBox, b)
		return idx
	}
	for _, in := range token.Inputargs {
		slotOf(in)
	}

	b := amd64.NewBuilder()
	entryPC := b.Offset()
	bailouts := make(map[int]int)

	for guardIdx, op := range token.Ops {
		if err := emitOp(b, op, guardIdx, slotOf, entryPC, bailouts); err != nil {
			return fmt.Errorf("jitemit: loop %s: %w", token.Descr, err)
		}
	}
	// Ops lacking an explicit guard or JUMP just fall through; a trace
	// that reaches here without bailing out ran to completion.
	b.MovRegImm32(amd64.RAX, -1)
	b.Ret()

	arena, err := codebuf.NewArena(e.arenaSize)
	if err != nil {
		return fmt.Errorf("jitemit: arena: %w", err)
	}
	arena.Write(b.Bytes())
	if err := arena.Seal(); err != nil {
		return fmt.Errorf("jitemit: seal: %w", err)
	}

	token.CompiledAt = arena.Base()
	e.tokens[token] = &compiled{arena: arena, entry: arena.Base(), slots: slots, slotBox: slotBox, bailouts: bailouts}
	return nil
}

// emitOp lowers one trace operation. entryPC is the loop body's own start
// offset, the JUMP target for a closed trace's back-edge. bailouts records
// where each guard's failure stub landed, keyed by its op index, for
// PatchBridge to rewrite later.
func emitOp(b *amd64.Builder, op *ir.Operation, idx int, slotOf func(box.Box) int, entryPC int, bailouts map[int]int) error {
	slotOff := func(i int) int32 { return int32(slotOf(op.Args[i]) * slotSize) }

	switch op.Opnum {
	case ir.INT_ADD, ir.INT_SUB, ir.INT_MUL,
		ir.INT_AND, ir.INT_OR, ir.INT_XOR:
		b.MovFromMem(amd64.RAX, amd64.RDI, slotOff(0))
		b.MovFromMem(amd64.RCX, amd64.RDI, slotOff(1))
		switch op.Opnum {
		case ir.INT_ADD:
			b.AddRegReg(amd64.RAX, amd64.RCX)
		case ir.INT_SUB:
			b.SubRegReg(amd64.RAX, amd64.RCX)
		case ir.INT_MUL:
			b.ImulRegReg(amd64.RAX, amd64.RCX)
		case ir.INT_AND:
			b.AndRegReg(amd64.RAX, amd64.RCX)
		case ir.INT_OR:
			b.OrRegReg(amd64.RAX, amd64.RCX)
		case ir.INT_XOR:
			b.XorRegReg2(amd64.RAX, amd64.RCX)
		}
		b.MovToMem(amd64.RDI, int32(slotOf(op.Result)*slotSize), amd64.RAX)
		return nil

	case ir.INT_LT, ir.INT_LE, ir.INT_EQ, ir.INT_NE, ir.INT_GT, ir.INT_GE:
		b.MovFromMem(amd64.RAX, amd64.RDI, slotOff(0))
		b.MovFromMem(amd64.RCX, amd64.RDI, slotOff(1))
		b.CmpRegReg(amd64.RAX, amd64.RCX)
		materializeBool(b, condFor(op.Opnum))
		b.MovToMem(amd64.RDI, int32(slotOf(op.Result)*slotSize), amd64.RAX)
		return nil

	case ir.GUARD_TRUE, ir.GUARD_FALSE:
		b.MovFromMem(amd64.RAX, amd64.RDI, slotOff(0))
		b.TestRegReg(amd64.RAX, amd64.RAX)
		failCond := amd64.CondE // GUARD_TRUE bails when the value is zero
		if op.Opnum == ir.GUARD_FALSE {
			failCond = amd64.CondNE
		}
		bailouts[idx] = emitBailout(b, failCond, idx)
		return nil

	case ir.JUMP:
		instrOff, patchOff := b.JmpRel32()
		b.PatchRel32(patchOff, instrOff+5, entryPC)
		return nil

	default:
		return fmt.Errorf("unsupported op %s", op.Opnum)
	}
}

// materializeBool turns the flags set by a preceding Cmp into a 0/1 value
// in RAX: true per cond, 1; otherwise 0.
func materializeBool(b *amd64.Builder, cond amd64.Cond) {
	b.MovRegImm32(amd64.RAX, 1)
	instrOff, patchOff := b.JccRel32(cond)
	b.MovRegImm32(amd64.RAX, 0)
	b.PatchRel32(patchOff, instrOff+6, b.Offset())
}

// emitBailout emits: if cond, return guardIdx immediately. The stub is
// padded out to bailoutSlot bytes so PatchBridge can later overwrite it
// wholesale with a jump to a bridge's entry point; it returns the stub's
// start offset, not the Jcc's.
func emitBailout(b *amd64.Builder, cond amd64.Cond, guardIdx int) int {
	instrOff, patchOff := b.JccRel32(invert(cond))
	stubOff := b.Offset()
	b.MovRegImm32(amd64.RAX, int32(guardIdx))
	b.Ret()
	for b.Offset() < stubOff+bailoutSlot {
		b.Nop()
	}
	b.PatchRel32(patchOff, instrOff+6, b.Offset())
	return stubOff
}

func invert(c amd64.Cond) amd64.Cond {
	switch c {
	case amd64.CondE:
		return amd64.CondNE
	case amd64.CondNE:
		return amd64.CondE
	case amd64.CondL:
		return amd64.CondGE
	case amd64.CondLE:
		return amd64.CondG
	case amd64.CondG:
		return amd64.CondLE
	case amd64.CondGE:
		return amd64.CondL
	default:
		return c
	}
}

func condFor(opnum ir.Opnum) amd64.Cond {
	switch opnum {
	case ir.INT_LT:
		return amd64.CondL
	case ir.INT_LE:
		return amd64.CondLE
	case ir.INT_EQ:
		return amd64.CondE
	case ir.INT_NE:
		return amd64.CondNE
	case ir.INT_GT:
		return amd64.CondG
	default: // INT_GE
		return amd64.CondGE
	}
}

// Run loads args into a fresh frame by slot order and jumps into the
// compiled loop. A non-negative guardIdx means the native code bailed out
// at that op index; failargs reconstructs the live boxes at that point from
// whatever the frame slots held when it returned, in the same slot order
// Assemble assigned (an approximation of the interpreter's own resume-data
// ordering — see DESIGN.md).
func (e *Emitter) Run(token *ir.LoopToken, args []box.Box) ([]box.Box, int, []box.Box, error) {
	c, ok := e.tokens[token]
	if !ok {
		return nil, -1, nil, fmt.Errorf("jitemit: token %s not assembled", token.ID)
	}
	frame := make([]int64, len(c.slotBox))
	for i, b := range c.slotBox {
		if v, ok := intValue(b); ok {
			frame[i] = v
		}
	}
	for i, in := range token.Inputargs {
		if i < len(args) {
			if v, ok := intValue(args[i]); ok {
				frame[slotIndex(c, in)] = v
			}
		}
	}

	guardIdx := callNative(c.entry, framePtr(frame))
	if guardIdx < 0 {
		return boxFrame(c.slotBox, frame), -1, nil, nil
	}
	return nil, int(guardIdx), boxFrame(c.slotBox, frame), nil
}

func slotIndex(c *compiled, b box.Box) int {
	if idx, ok := c.slots[b]; ok {
		return idx
	}
	return 0
}

func boxFrame(order []box.Box, frame []int64) []box.Box {
	out := make([]box.Box, len(frame))
	for i, v := range frame {
		out[i] = box.ConstInt{Value: v}
	}
	return out
}

func intValue(b box.Box) (int64, bool) {
	switch v := b.(type) {
	case *box.BoxInt:
		return v.Value, true
	case box.ConstInt:
		return v.Value, true
	default:
		return 0, false
	}
}

// PatchBridge installs bridge as the target a failing guard transfers to:
// it reopens the guard's arena (RW), overwrites its bailout stub in place
// with an absolute jump to the bridge's entry point, then reseals the
// arena (RX) — satisfying spec.md §8 property 6, that the next failure of
// this exact guard transfers straight to the bridge rather than bailing
// back out to the interpreter.
func (e *Emitter) PatchBridge(token *ir.LoopToken, guardIdx int, bridge *ir.LoopToken) error {
	tc, ok := e.tokens[token]
	if !ok {
		return fmt.Errorf("jitemit: token %s not assembled", token.ID)
	}
	bc, ok := e.tokens[bridge]
	if !ok {
		return fmt.Errorf("jitemit: bridge %s not assembled", bridge.ID)
	}
	off, ok := tc.bailouts[guardIdx]
	if !ok {
		return fmt.Errorf("jitemit: guard %d has no native bailout to patch", guardIdx)
	}

	patch := amd64.NewBuilder()
	patch.MovRegImm64(amd64.RAX, uint64(bc.entry))
	patch.JmpIndirect(amd64.RAX)
	if patch.Offset() > bailoutSlot {
		return fmt.Errorf("jitemit: bridge jump (%d bytes) exceeds reserved bailout slot (%d)", patch.Offset(), bailoutSlot)
	}

	if err := tc.arena.Reopen(); err != nil {
		return fmt.Errorf("jitemit: reopen for bridge patch: %w", err)
	}
	tc.arena.PatchBytes(off, patch.Bytes())
	if err := tc.arena.Seal(); err != nil {
		return fmt.Errorf("jitemit: reseal after bridge patch: %w", err)
	}
	return nil
}
