// Package amd64 implements the x86-64 code emitter (L1): a growable
// instruction buffer and a composable instruction encoder, generalizing the
// teacher's hardcoded r12/r13-specific encoders (pkg/amd64/instructions.go)
// into a real register-parameterized encoder in the style of PyPy's
// rx86.py (register()/immediate()/relative() composable encoding steps).
package amd64

// Reg names a general-purpose register by its 4-bit encoding (0-7 are the
// legacy registers, 8-15 require a REX prefix bit), matching rx86.py's R
// class for 64-bit mode.
type Reg int

const (
	RAX Reg = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// lowBits returns the 3-bit ModRM/SIB field for r (the low 3 bits of its
// encoding; the 4th bit goes into the REX prefix separately).
func (r Reg) lowBits() byte { return byte(r) & 0x7 }

// needsREXBit reports whether r requires REX.B/R/X (its encoding is >= 8).
func (r Reg) needsREXBit() bool { return r >= R8 }

// isSPLike reports whether r's low 3 bits are 0b100 (rsp/r12): these
// always require a SIB byte in a memory operand, even with no index,
// because ModRM's r/m=100 is reserved to mean "SIB follows" (rx86.py's
// stack_sp / mem_reg_plus_const special-casing).
func (r Reg) isSPLike() bool { return r.lowBits() == 0b100 }

// isBPLike reports whether r's low 3 bits are 0b101 (rbp/r13): ModRM
// mod=00, r/m=101 is reserved to mean RIP-relative/disp32-only, so a
// zero-displacement memory operand on rbp/r13 must be encoded as mod=01
// disp8=0 instead (rx86.py's mem_reg_plus_const rbp special case).
func (r Reg) isBPLike() bool { return r.lowBits() == 0b101 }
