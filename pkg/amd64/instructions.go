package amd64

// Builder accumulates encoded instructions into a single growable buffer,
// the L1 analogue of the teacher's per-instruction byte-slice functions
// (MovabsR13, XorR12R12, ...) generalized to take any register operand
// instead of hardcoding r12/r13. Each encoder method appends one instruction
// and returns the buffer offset it started at, so callers building control
// flow can record patch sites before the jump target is known.
type Builder struct {
	buf []byte
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Bytes() []byte { return b.buf }

func (b *Builder) Offset() int { return len(b.buf) }

func (b *Builder) emit(bytes ...byte) int {
	off := len(b.buf)
	b.buf = append(b.buf, bytes...)
	return off
}

// MovRegReg encodes: mov dst, src (64-bit). REX.W 89 /r, src in reg field,
// dst in r/m field (Intel's AT&T-reversed operand order for opcode 0x89).
func (b *Builder) MovRegReg(dst, src Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, src, 0, dst, false, true), 0x89, modrmReg(src, dst))
	return off
}

// MovRegImm64 encodes: movabs $imm64, dst (REX.W B8+r <imm64>), the
// general form of the teacher's MovabsR13.
func (b *Builder) MovRegImm64(dst Reg, imm64 uint64) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, 0, 0, dst, false, true), 0xB8+dst.lowBits())
	b.buf = appendLE64(b.buf, imm64)
	return off
}

// MovRegImm32 encodes: mov $imm32, dst, sign-extended to 64 bits
// (REX.W C7 /0 id), preferred over MovRegImm64 whenever the constant fits
// in 32 bits since it's 3 bytes shorter (7 bytes against 10).
func (b *Builder) MovRegImm32(dst Reg, imm32 int32) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, 0, 0, dst, false, true), 0xC7, 0xC0|dst.lowBits())
	b.buf = appendLE32(b.buf, uint32(imm32))
	return off
}

// XorRegReg encodes: xor dst, dst (REX.WRB 31 /r), the general form of the
// teacher's XorR12R12 — the idiomatic zero-a-register idiom since it's
// shorter than mov $0 and doesn't need an immediate.
func (b *Builder) XorRegReg(dst Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, dst, 0, dst, false, true), 0x31, modrmReg(dst, dst))
	return off
}

// arithImm32 encodes the `81 /digit id` family: add/sub/cmp/and/or/xor
// reg, imm32, generalizing the teacher's AddqImm32R12.
func (b *Builder) arithImm32(digit byte, dst Reg, imm32 int32) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, 0, 0, dst, false, true), 0x81, 0xC0|(digit<<3)|dst.lowBits())
	b.buf = appendLE32(b.buf, uint32(imm32))
	return off
}

func (b *Builder) AddRegImm32(dst Reg, imm32 int32) int { return b.arithImm32(0, dst, imm32) }
func (b *Builder) SubRegImm32(dst Reg, imm32 int32) int { return b.arithImm32(5, dst, imm32) }
func (b *Builder) CmpRegImm32(dst Reg, imm32 int32) int { return b.arithImm32(7, dst, imm32) }
func (b *Builder) AndRegImm32(dst Reg, imm32 int32) int { return b.arithImm32(4, dst, imm32) }
func (b *Builder) OrRegImm32(dst Reg, imm32 int32) int  { return b.arithImm32(1, dst, imm32) }
func (b *Builder) XorRegImm32(dst Reg, imm32 int32) int { return b.arithImm32(6, dst, imm32) }

// arithRegReg encodes the `01/29/39/21/09/31 /r` family: reg-reg
// add/sub/cmp/and/or/xor, dst op= src.
func (b *Builder) arithRegReg(opcode byte, dst, src Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, src, 0, dst, false, true), opcode, modrmReg(src, dst))
	return off
}

func (b *Builder) AddRegReg(dst, src Reg) int { return b.arithRegReg(0x01, dst, src) }
func (b *Builder) SubRegReg(dst, src Reg) int { return b.arithRegReg(0x29, dst, src) }
func (b *Builder) CmpRegReg(dst, src Reg) int { return b.arithRegReg(0x39, dst, src) }
func (b *Builder) AndRegReg(dst, src Reg) int { return b.arithRegReg(0x21, dst, src) }
func (b *Builder) OrRegReg(dst, src Reg) int  { return b.arithRegReg(0x09, dst, src) }
func (b *Builder) XorRegReg2(dst, src Reg) int { return b.arithRegReg(0x31, dst, src) }

// ImulRegReg encodes: imul dst, src (REX.W 0F AF /r), dst *= src.
func (b *Builder) ImulRegReg(dst, src Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, dst, 0, src, false, true), 0x0F, 0xAF, modrmReg(dst, src))
	return off
}

// TestRegReg encodes: test reg, reg (REX.W 85 /r), used before Jcc to test
// a flag-producing comparison result stored in a register.
func (b *Builder) TestRegReg(a, c Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, a, 0, c, false, true), 0x85, modrmReg(a, c))
	return off
}

// MovFromMem encodes: mov dst, [base+disp] (REX.W 8B /r).
func (b *Builder) MovFromMem(dst Reg, base Reg, disp int32) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, dst, 0, base, false, true), 0x8B)
	b.buf = encodeMem(b.buf, dst, mem{base: base, disp: disp})
	return off
}

// MovToMem encodes: mov [base+disp], src (REX.W 89 /r).
func (b *Builder) MovToMem(base Reg, disp int32, src Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(true, src, 0, base, false, true), 0x89)
	b.buf = encodeMem(b.buf, src, mem{base: base, disp: disp})
	return off
}

// JmpRel32 encodes an unconditional near jump (E9 <rel32>) with a
// placeholder displacement; the caller patches it later via PatchRel32
// once the target offset is known (generalizes the teacher's
// codegen/linux jumpFixup pattern).
func (b *Builder) JmpRel32() (instrOff, patchOff int) {
	instrOff = len(b.buf)
	b.buf = append(b.buf, 0xE9, 0, 0, 0, 0)
	return instrOff, instrOff + 1
}

// Cond is a Jcc condition code (the low nibble of 0F 8x).
type Cond byte

const (
	CondE  Cond = 0x4 // ZF=1 (equal / zero)
	CondNE Cond = 0x5
	CondL  Cond = 0xC
	CondLE Cond = 0xE
	CondG  Cond = 0xF
	CondGE Cond = 0xD
	CondO  Cond = 0x0 // overflow
	CondNO Cond = 0x1
)

// JccRel32 encodes a near conditional jump (0F 8x <rel32>) with a
// placeholder, generalizing the teacher's JzRel32.
func (b *Builder) JccRel32(cond Cond) (instrOff, patchOff int) {
	instrOff = len(b.buf)
	b.buf = append(b.buf, 0x0F, 0x80|byte(cond), 0, 0, 0, 0)
	return instrOff, instrOff + 2
}

// CallRel32 encodes a near relative call (E8 <rel32>) with a placeholder,
// generalizing the teacher's CallRel32. Per spec.md §4.1's note on CALL
// overflow, a call target outside rel32 range must instead be loaded into
// a scratch register and issued as CallIndirect — that fallback is the
// emitter's responsibility, not this encoder's.
func (b *Builder) CallRel32() (instrOff, patchOff int) {
	instrOff = len(b.buf)
	b.buf = append(b.buf, 0xE8, 0, 0, 0, 0)
	return instrOff, instrOff + 1
}

// CallIndirect encodes: call reg (FF /2), used when a call target doesn't
// fit in a rel32 displacement from the current code buffer.
func (b *Builder) CallIndirect(target Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(false, 0, 0, target, false, true), 0xFF, 0xD0|target.lowBits())
	return off
}

// JmpIndirect encodes: jmp reg (FF /4), used to transfer to an absolute
// address (e.g. a bridge's entry point in a different arena) that may be
// too far away for a rel32 displacement to reach.
func (b *Builder) JmpIndirect(target Reg) int {
	off := len(b.buf)
	b.buf = append(b.buf, rex(false, 0, 0, target, false, true), 0xFF, 0xE0|target.lowBits())
	return off
}

// Nop encodes a single-byte no-op (90), used to pad a reserved code region
// out to a fixed size.
func (b *Builder) Nop() int { return b.emit(0x90) }

// Ret encodes: ret (C3).
func (b *Builder) Ret() int { return b.emit(0xC3) }

// PatchRel32 overwrites the 4 displacement bytes at patchOff so that the
// jump/call encoded there (whose next-instruction address is nextInsnOff)
// lands at targetOff.
func (b *Builder) PatchRel32(patchOff, nextInsnOff, targetOff int) {
	rel := int32(targetOff - nextInsnOff)
	b.buf[patchOff] = byte(rel)
	b.buf[patchOff+1] = byte(rel >> 8)
	b.buf[patchOff+2] = byte(rel >> 16)
	b.buf[patchOff+3] = byte(rel >> 24)
}
