package metainterp

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
)

// HostFunc is a residual call target: a host-side implementation of a
// guest-visible function named by a CallDescr, invoked opaquely by CALL/
// CALL_MAY_FORCE/CALL_PURE/CALL_ASSEMBLER/CALL_LOOPINVARIANT. raised
// reports a guest-visible exception the interpreter must turn into a
// GUARD_EXCEPTION.
type HostFunc func(args []box.Box) (result box.Box, raised bool)

// CallTable resolves a CallDescr's Name to its host implementation and
// satisfies ir.Caller so a History can execute CALL* ops concretely while
// tracing. It is the meta-interpreter's only window onto the outside world:
// no other package touches host functions directly.
type CallTable struct {
	funcs map[string]HostFunc
}

func NewCallTable() *CallTable {
	return &CallTable{funcs: make(map[string]HostFunc)}
}

func (t *CallTable) Register(name string, fn HostFunc) {
	t.funcs[name] = fn
}

func (t *CallTable) Call(descr *ir.CallDescr, args []box.Box) (box.Box, bool) {
	fn, ok := t.funcs[descr.Name]
	if !ok {
		invariantf("call to unregistered host function %q", descr.Name)
	}
	return fn(args)
}
