// Package ir implements the trace intermediate representation (L2): the
// append-only operation log recorded while tracing, its optimizer, and the
// LoopToken handle a compiled trace is installed under.
package ir

import "fmt"

// Opnum identifies an IR operation. The set is closed and partitioned into
// contiguous ranges so range membership (ALWAYS_PURE, CAN_RAISE, overflow,
// GUARD_*) is a pair of integer comparisons rather than a lookup table.
type Opnum int

const (
	// --- ALWAYS_PURE range: side-effect-free, result depends only on args;
	// the optimizer may constant-fold and CSE these.
	INT_ADD Opnum = iota
	INT_SUB
	INT_MUL
	INT_AND
	INT_OR
	INT_XOR
	INT_LSHIFT
	INT_RSHIFT
	UINT_RSHIFT
	INT_LT
	INT_LE
	INT_EQ
	INT_NE
	INT_GT
	INT_GE
	UINT_LT
	UINT_LE
	UINT_GT
	UINT_GE
	FLOAT_ADD
	FLOAT_SUB
	FLOAT_MUL
	FLOAT_DIV
	FLOAT_NEG
	FLOAT_LT
	FLOAT_LE
	FLOAT_EQ
	FLOAT_NE
	FLOAT_GT
	FLOAT_GE
	GETFIELD_GC_PURE
	ARRAYLEN_GC
	CALL_PURE

	// --- Overflow-checked arithmetic: pure functions, but the result is
	// only valid once the immediately following GUARD_OVERFLOW or
	// GUARD_NO_OVERFLOW has been checked.
	INT_ADD_OVF
	INT_SUB_OVF
	INT_MUL_OVF

	// --- CAN_RAISE range: may fail; must be immediately followed by
	// GUARD_NO_EXCEPTION or GUARD_EXCEPTION.
	INT_FLOORDIV
	INT_MOD
	UINT_FLOORDIV
	GETFIELD_GC
	SETFIELD_GC
	GETARRAYITEM_GC
	SETARRAYITEM_GC
	CALL
	CALL_MAY_FORCE
	CALL_ASSEMBLER
	CALL_LOOPINVARIANT

	// --- Allocation: may be elided by the optimizer if the result box
	// never escapes the trace.
	NEW
	NEW_WITH_VTABLE
	NEW_ARRAY

	// --- GUARD_* range: every guard carries a ResumeDescr.
	GUARD_TRUE
	GUARD_FALSE
	GUARD_VALUE
	GUARD_CLASS
	GUARD_NONNULL
	GUARD_ISNULL
	GUARD_NO_EXCEPTION
	GUARD_EXCEPTION
	GUARD_OVERFLOW
	GUARD_NO_OVERFLOW
	GUARD_NOT_FORCED

	// --- Control flow.
	JUMP
	LABEL
)

// Range boundaries, named against the opcodes declared above rather than
// tracked as separate magic numbers.
const (
	alwaysPureFirst = INT_ADD
	alwaysPureLast  = CALL_PURE

	ovfFirst = INT_ADD_OVF
	ovfLast  = INT_MUL_OVF

	canRaiseFirst = INT_FLOORDIV
	canRaiseLast  = CALL_LOOPINVARIANT

	allocFirst = NEW
	allocLast  = NEW_ARRAY

	guardFirst = GUARD_TRUE
	guardLast  = GUARD_NOT_FORCED
)

// IsAlwaysPure reports whether op is in the ALWAYS_PURE range: the
// optimizer may constant-fold and CSE it.
func (op Opnum) IsAlwaysPure() bool { return op >= alwaysPureFirst && op <= alwaysPureLast }

// IsOverflowChecked reports whether op is one of the _OVF arithmetic ops,
// which are pure functions but must be immediately followed by a
// GUARD_OVERFLOW or GUARD_NO_OVERFLOW.
func (op Opnum) IsOverflowChecked() bool { return op >= ovfFirst && op <= ovfLast }

// IsCanRaise reports whether op is in the CAN_RAISE range: it must be
// immediately followed by GUARD_NO_EXCEPTION or GUARD_EXCEPTION.
func (op Opnum) IsCanRaise() bool { return op >= canRaiseFirst && op <= canRaiseLast }

// IsAlloc reports whether op allocates a new guest object.
func (op Opnum) IsAlloc() bool { return op >= allocFirst && op <= allocLast }

// IsGuard reports whether op is a GUARD_* opcode.
func (op Opnum) IsGuard() bool { return op >= guardFirst && op <= guardLast }

var opnumNames = map[Opnum]string{
	INT_ADD: "INT_ADD", INT_SUB: "INT_SUB", INT_MUL: "INT_MUL",
	INT_AND: "INT_AND", INT_OR: "INT_OR", INT_XOR: "INT_XOR",
	INT_LSHIFT: "INT_LSHIFT", INT_RSHIFT: "INT_RSHIFT", UINT_RSHIFT: "UINT_RSHIFT",
	INT_LT: "INT_LT", INT_LE: "INT_LE", INT_EQ: "INT_EQ", INT_NE: "INT_NE",
	INT_GT: "INT_GT", INT_GE: "INT_GE",
	UINT_LT: "UINT_LT", UINT_LE: "UINT_LE", UINT_GT: "UINT_GT", UINT_GE: "UINT_GE",
	FLOAT_ADD: "FLOAT_ADD", FLOAT_SUB: "FLOAT_SUB", FLOAT_MUL: "FLOAT_MUL",
	FLOAT_DIV: "FLOAT_DIV", FLOAT_NEG: "FLOAT_NEG",
	FLOAT_LT: "FLOAT_LT", FLOAT_LE: "FLOAT_LE", FLOAT_EQ: "FLOAT_EQ",
	FLOAT_NE: "FLOAT_NE", FLOAT_GT: "FLOAT_GT", FLOAT_GE: "FLOAT_GE",
	GETFIELD_GC_PURE: "GETFIELD_GC_PURE", ARRAYLEN_GC: "ARRAYLEN_GC",
	CALL_PURE:   "CALL_PURE",
	INT_ADD_OVF: "INT_ADD_OVF", INT_SUB_OVF: "INT_SUB_OVF", INT_MUL_OVF: "INT_MUL_OVF",
	INT_FLOORDIV: "INT_FLOORDIV", INT_MOD: "INT_MOD", UINT_FLOORDIV: "UINT_FLOORDIV",
	GETFIELD_GC: "GETFIELD_GC", SETFIELD_GC: "SETFIELD_GC",
	GETARRAYITEM_GC: "GETARRAYITEM_GC", SETARRAYITEM_GC: "SETARRAYITEM_GC",
	CALL: "CALL", CALL_MAY_FORCE: "CALL_MAY_FORCE",
	CALL_ASSEMBLER: "CALL_ASSEMBLER", CALL_LOOPINVARIANT: "CALL_LOOPINVARIANT",
	NEW: "NEW", NEW_WITH_VTABLE: "NEW_WITH_VTABLE", NEW_ARRAY: "NEW_ARRAY",
	GUARD_TRUE: "GUARD_TRUE", GUARD_FALSE: "GUARD_FALSE", GUARD_VALUE: "GUARD_VALUE",
	GUARD_CLASS: "GUARD_CLASS", GUARD_NONNULL: "GUARD_NONNULL", GUARD_ISNULL: "GUARD_ISNULL",
	GUARD_NO_EXCEPTION: "GUARD_NO_EXCEPTION", GUARD_EXCEPTION: "GUARD_EXCEPTION",
	GUARD_OVERFLOW: "GUARD_OVERFLOW", GUARD_NO_OVERFLOW: "GUARD_NO_OVERFLOW",
	GUARD_NOT_FORCED: "GUARD_NOT_FORCED",
	JUMP:             "JUMP", LABEL: "LABEL",
}

func (op Opnum) String() string {
	if name, ok := opnumNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Opnum(%d)", int(op))
}
