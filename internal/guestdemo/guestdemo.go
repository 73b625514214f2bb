// Package guestdemo is a minimal guest collaborator used to exercise the
// meta-tracing runtime end to end: a tiny integer-register bytecode
// machine ("rtgc") with a handful of host-visible calls, playing the role
// the Brainfuck interpreter plays for the teacher's codegen packages. It
// is not part of the JIT itself — it is the guest the JIT observes.
package guestdemo

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/JohnDoe117/mjit/internal/metainterp"
)

// NewCallTable wires the host functions the demo programs call through
// CALL/CALL_MAY_FORCE/CALL_PURE: "double" (a pure doubling function, used
// to exercise CALL_PURE) and "force" (a call that may force a
// virtualizable, used by the GUARD_NOT_FORCED scenario).
func NewCallTable() *metainterp.CallTable {
	t := metainterp.NewCallTable()
	t.Register("double", func(args []box.Box) (box.Box, bool) {
		return box.NewInt(mustInt(args[0]) * 2), false
	})
	t.Register("force", func(args []box.Box) (box.Box, bool) {
		// Simulates an external call that reads back a virtualizable field:
		// the returned value is what GUARD_NOT_FORCED's resume path must
		// reconcile with.
		return box.NewInt(mustInt(args[0]) + 1), false
	})
	return t
}

func mustInt(b box.Box) int64 {
	switch v := b.(type) {
	case *box.BoxInt:
		return v.Value
	case box.ConstInt:
		return v.Value
	default:
		panic("guestdemo: expected int box")
	}
}

// DoubleCallDescr is the CallDescr for the "double" host function,
// registered CALL_PURE: a call whose arguments are all constants folds to a
// constant at record time; other calls are recorded one op per call, with
// no CSE between calls on identical arguments.
var DoubleCallDescr = &ir.CallDescr{
	Name: "double", ArgKinds: []ir.Kind{box.KindInt}, ResultKind: box.KindInt, HasResult: true, Pure: true,
}

// ForceCallDescr is the CallDescr for "force", registered CALL_MAY_FORCE.
var ForceCallDescr = &ir.CallDescr{
	Name: "force", ArgKinds: []ir.Kind{box.KindInt}, ResultKind: box.KindInt, HasResult: true,
}
