package ir

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/box"
)

// Kind re-exports box.Kind so descr.go's field/array/call signatures don't
// force every caller to import both packages.
type Kind = box.Kind

// Descr is opaque metadata attached to an Operation: field offsets, call
// signatures, array element layout, allocation sizes, switch tables, or
// resume-guard snapshots. Descrs are interned (two uses of the same
// (type, field) share one Descr) and immutable once created.
//
// IsDescr is exported (rather than an unexported marker method) so that
// package resume can implement Descr for ResumeGuardDescr and
// ResumeGuardForcedDescr without ir and resume importing each other.
type Descr interface {
	IsDescr()
}

// CallDescr describes a callee's signature and effect info for CALL* ops.
type CallDescr struct {
	Name       string
	ArgKinds   []Kind
	ResultKind Kind
	HasResult  bool
	// Pure marks a CallDescr usable with CALL_PURE: the callee must be a
	// total, side-effect-free function of its arguments.
	Pure bool
}

func (*CallDescr) IsDescr() {}

// FieldDescr describes one field of a guest object: its owning type name,
// byte offset, and value kind.
type FieldDescr struct {
	TypeName string
	Name     string
	Offset   uintptr
	Kind     Kind
}

func (*FieldDescr) IsDescr() {}

// ArrayDescr describes an array's element size and kind.
type ArrayDescr struct {
	TypeName   string
	ElemSize   uintptr
	ElemKind   Kind
	LengthOff  uintptr
	ElemsBase  uintptr // offset of element 0 within the array object
}

func (*ArrayDescr) IsDescr() {}

// SizeDescr describes the number of bytes to allocate for a plain NEW.
type SizeDescr struct {
	TypeName string
	Size     uintptr
}

func (*SizeDescr) IsDescr() {}

// SizeVtableDescr describes allocation of an object that carries a vtable
// pointer as its first word (NEW_WITH_VTABLE), used later by GUARD_CLASS to
// identify the concrete guest type of a ref box.
type SizeVtableDescr struct {
	TypeName string
	Size     uintptr
	VtableID uintptr
}

func (*SizeVtableDescr) IsDescr() {}

// SwitchDictDescr maps integer case values to jitcode labels, used by a
// guest-level dispatch/switch construct that the meta-interpreter lowers to
// a direct jump rather than a cascade of GUARD_VALUE ops.
type SwitchDictDescr struct {
	Cases map[int64]int // case value -> jitcode pc
}

func (*SwitchDictDescr) IsDescr() {}

func fieldDescrString(d *FieldDescr) string {
	return fmt.Sprintf("%s.%s@%d", d.TypeName, d.Name, d.Offset)
}
