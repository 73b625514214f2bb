package ir

import "github.com/JohnDoe117/mjit/internal/box"

// LoopToken is the handle a compiled trace is installed under: the
// optimized operation list plus enough bookkeeping for the driver to find
// it again by greenkey and for a bridge to attach to one of its guards.
//
// The token's ID is assigned by its owning package (jitdriver mints these
// via google/uuid so loop tokens stay unique across compiles, attaches, and
// any future persistence of compiled-trace metadata).
type LoopToken struct {
	ID         string
	Inputargs  []box.Box
	Ops        []*Operation
	Descr      string // human-readable label, e.g. the greenkey this loop was compiled for
	CompiledAt uintptr // native code entry point once assembled; 0 until jitdriver compiles it

	// Bridges maps a guard's position in Ops (its index) to the LoopToken
	// compiled for the bridge that resumes execution after that guard
	// fails repeatedly enough to be worth compiling.
	Bridges map[int]*LoopToken
}

// NewLoopToken wraps an optimized op list under a fresh token.
func NewLoopToken(id string, inputargs []box.Box, ops []*Operation, descr string) *LoopToken {
	return &LoopToken{
		ID:        id,
		Inputargs: inputargs,
		Ops:       ops,
		Descr:     descr,
		Bridges:   make(map[int]*LoopToken),
	}
}

// AttachBridge records a compiled bridge for the guard at ops index
// guardIdx, so future failures of that exact guard jump straight to the
// bridge instead of falling back to the meta-interpreter.
func (t *LoopToken) AttachBridge(guardIdx int, bridge *LoopToken) {
	t.Bridges[guardIdx] = bridge
}

// GuardAt returns the guard operation at idx, or nil if idx is out of range
// or the op there isn't a guard.
func (t *LoopToken) GuardAt(idx int) *Operation {
	if idx < 0 || idx >= len(t.Ops) {
		return nil
	}
	if !t.Ops[idx].Opnum.IsGuard() {
		return nil
	}
	return t.Ops[idx]
}
