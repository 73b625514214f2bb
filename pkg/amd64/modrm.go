package amd64

// mem is a memory operand: base register plus a 32-bit displacement. Every
// L1 field/array access compiles down to one of these (guest heap accesses
// are always base+const-offset since ir.Heap has no scaled-index
// addressing in scope).
type mem struct {
	base Reg
	disp int32
}

// rex computes the REX prefix byte for an instruction, or 0 if none of W/R/X/B
// are needed and the instruction doesn't otherwise require one (callers
// append it unconditionally for 64-bit operand-size instructions, which is
// every instruction this package emits — the spec's guest values are all
// 64-bit ints/refs/floats).
func rex(w bool, reg, index, base Reg, hasIndex, hasBase bool) byte {
	b := byte(0x40)
	if w {
		b |= 0x08
	}
	if reg.needsREXBit() {
		b |= 0x04
	}
	if hasIndex && index.needsREXBit() {
		b |= 0x02
	}
	if hasBase && base.needsREXBit() {
		b |= 0x01
	}
	return b
}

// modrmReg encodes a register-direct ModRM byte (mod=11): used by
// reg-to-reg instructions (MOV, ADD, CMP between two GPRs).
func modrmReg(regField, rm Reg) byte {
	return 0xC0 | (regField.lowBits() << 3) | rm.lowBits()
}

// encodeMem appends the ModRM (+ SIB, + displacement) bytes for a base+disp
// memory operand with regField in the reg position, following rx86.py's
// mem_reg_plus_const: rsp/r12 bases force a SIB byte with no index; rbp/r13
// bases with disp==0 are promoted to an explicit disp8=0 since mod=00
// r/m=101 means RIP-relative instead of [rbp].
func encodeMem(buf []byte, regField Reg, m mem) []byte {
	regBits := regField.lowBits() << 3
	base := m.base

	needsSIB := base.isSPLike()
	forceDisp8 := m.disp == 0 && base.isBPLike()

	var mod byte
	switch {
	case m.disp == 0 && !forceDisp8:
		mod = 0x00
	case fitsInt8(m.disp):
		mod = 0x40
	default:
		mod = 0x80
	}

	if needsSIB {
		buf = append(buf, mod|regBits|0x04) // r/m = 100 -> SIB follows
		buf = append(buf, 0x24|base.lowBits())  // scale=0,index=100(none),base
	} else {
		buf = append(buf, mod|regBits|base.lowBits())
	}

	switch {
	case mod == 0x00:
		// no displacement bytes
	case mod == 0x40:
		buf = append(buf, byte(int8(m.disp)))
	default:
		buf = appendLE32(buf, uint32(m.disp))
	}
	return buf
}

func fitsInt8(v int32) bool { return v >= -128 && v <= 127 }
