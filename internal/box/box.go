// Package box defines the runtime values that flow through a trace.
//
// A Box is a symbolic handle to a value the meta-interpreter is tracking:
// either a variable whose concrete value may differ between trace-record
// time and trace-replay time (BoxInt/BoxRef/BoxFloat), or a Const that is
// known once and for all (ConstInt/ConstRef/ConstFloat). Boxes have
// identity: two BoxInt values wrapping the same integer are still distinct
// boxes, and the trace records operations over that identity, not over the
// concrete value underneath it.
package box

import "fmt"

// Kind tags which of the three value kinds a Box carries. Mixing kinds
// (e.g. passing a ref box where an int is expected) is a bug in the
// meta-interpreter, not a guest-level error.
type Kind int

const (
	KindInt Kind = iota
	KindRef
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindRef:
		return "ref"
	case KindFloat:
		return "float"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Box is a runtime value flowing through a trace. The concrete types are
// BoxInt, BoxRef, BoxFloat (variables) and ConstInt, ConstRef, ConstFloat
// (constants). Const* values compare by value and are never mutated.
type Box interface {
	Kind() Kind
	// IsConst reports whether this box is a Const* variant.
	IsConst() bool
	// String renders the box for trace dumps and debug logs.
	String() string
}

// BoxInt is a variable integer value. Its Value is a snapshot taken for
// concrete execution during tracing (execute_and_record); on replay after a
// guard failure the real value comes from resume data, not this field.
type BoxInt struct {
	id    uint64
	Value int64
}

// BoxRef is a variable opaque-pointer value (an object reference from the
// guest heap, opaque to the JIT beyond identity and the fields a descr
// names).
type BoxRef struct {
	id    uint64
	Value uintptr
}

// BoxFloat is a variable 64-bit float value.
type BoxFloat struct {
	id    uint64
	Value float64
}

func (b *BoxInt) Kind() Kind     { return KindInt }
func (b *BoxInt) IsConst() bool  { return false }
func (b *BoxInt) String() string { return fmt.Sprintf("i%d", b.id) }

func (b *BoxRef) Kind() Kind     { return KindRef }
func (b *BoxRef) IsConst() bool  { return false }
func (b *BoxRef) String() string { return fmt.Sprintf("r%d", b.id) }

func (b *BoxFloat) Kind() Kind     { return KindFloat }
func (b *BoxFloat) IsConst() bool  { return false }
func (b *BoxFloat) String() string { return fmt.Sprintf("f%d", b.id) }

// ConstInt, ConstRef, ConstFloat are the constant-box counterparts. They
// compare by value (see Equal) and are immutable once created.
type ConstInt struct{ Value int64 }
type ConstRef struct{ Value uintptr }
type ConstFloat struct{ Value float64 }

func (c ConstInt) Kind() Kind     { return KindInt }
func (c ConstInt) IsConst() bool  { return true }
func (c ConstInt) String() string { return fmt.Sprintf("ci(%d)", c.Value) }

func (c ConstRef) Kind() Kind     { return KindRef }
func (c ConstRef) IsConst() bool  { return true }
func (c ConstRef) String() string { return fmt.Sprintf("cr(%#x)", c.Value) }

func (c ConstFloat) Kind() Kind     { return KindFloat }
func (c ConstFloat) IsConst() bool  { return true }
func (c ConstFloat) String() string { return fmt.Sprintf("cf(%g)", c.Value) }

// idgen hands out identities for fresh variable boxes. It is a package-level
// counter rather than per-trace state: box identity must stay unique across
// the lifetime of the process, since resume data and debug logs reference
// boxes by this id long after the trace that created them has been
// optimized away.
var idgen uint64

func nextID() uint64 {
	idgen++
	return idgen
}

// NewInt allocates a fresh BoxInt with the given concrete value.
func NewInt(v int64) *BoxInt { return &BoxInt{id: nextID(), Value: v} }

// NewRef allocates a fresh BoxRef with the given concrete value.
func NewRef(v uintptr) *BoxRef { return &BoxRef{id: nextID(), Value: v} }

// NewFloat allocates a fresh BoxFloat with the given concrete value.
func NewFloat(v float64) *BoxFloat { return &BoxFloat{id: nextID(), Value: v} }

// ConstBox freezes the current value of a variable box into its Const
// counterpart. Called when the optimizer wants to fold a variable that the
// trace has proven constant (e.g. after a GUARD_VALUE).
func ConstBox(b Box) Box {
	switch v := b.(type) {
	case *BoxInt:
		return ConstInt{Value: v.Value}
	case *BoxRef:
		return ConstRef{Value: v.Value}
	case *BoxFloat:
		return ConstFloat{Value: v.Value}
	case ConstInt, ConstRef, ConstFloat:
		return v
	default:
		panic(fmt.Sprintf("box: ConstBox of unknown box type %T", b))
	}
}

// NonConstBox promotes a computed value into a freshly recorded variable
// box of the same kind, copying the concrete value across. Used when an
// operation result that happened to be constant at one point must be
// treated as a variable going forward (the inverse of ConstBox).
func NonConstBox(b Box) Box {
	switch v := b.(type) {
	case ConstInt:
		return NewInt(v.Value)
	case ConstRef:
		return NewRef(v.Value)
	case ConstFloat:
		return NewFloat(v.Value)
	case *BoxInt, *BoxRef, *BoxFloat:
		return v
	default:
		panic(fmt.Sprintf("box: NonConstBox of unknown box type %T", b))
	}
}

// Equal reports whether two boxes have the same identity (for variables) or
// the same value (for constants). It never compares a variable and a
// constant as equal even if their underlying value matches: identity, not
// value, is what a trace records over.
func Equal(a, b Box) bool {
	switch av := a.(type) {
	case *BoxInt:
		bv, ok := b.(*BoxInt)
		return ok && av == bv
	case *BoxRef:
		bv, ok := b.(*BoxRef)
		return ok && av == bv
	case *BoxFloat:
		bv, ok := b.(*BoxFloat)
		return ok && av == bv
	case ConstInt:
		bv, ok := b.(ConstInt)
		return ok && av.Value == bv.Value
	case ConstRef:
		bv, ok := b.(ConstRef)
		return ok && av.Value == bv.Value
	case ConstFloat:
		bv, ok := b.(ConstFloat)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}
