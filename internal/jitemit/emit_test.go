package jitemit

import (
	"testing"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopCaller struct{}

func (noopCaller) Call(descr *ir.CallDescr, args []box.Box) (box.Box, bool) {
	return box.ConstInt{Value: 0}, false
}

// TestAssembleAndRunSimpleAdd builds a two-op trace by hand (an INT_ADD
// followed by a GUARD_TRUE that never fails) and checks the compiled code
// runs to completion with the right value in its result slot.
func TestAssembleAndRunSimpleAdd(t *testing.T) {
	a := box.NewInt(2)
	b := box.NewInt(3)
	h := ir.NewHistory(ir.NewHeap(), noopCaller{}, []box.Box{a, b})
	sum, raised := h.ExecuteAndRecord(ir.INT_ADD, []box.Box{a, b}, nil)
	require.False(t, raised)
	h.Record(ir.GUARD_TRUE, []box.Box{sum}, nil, nil)

	token := ir.NewLoopToken("t1", h.Inputargs, h.Ops, "test-add")
	e := New(4096)
	require.NoError(t, e.Assemble(token))
	assert.NotZero(t, token.CompiledAt)

	result, guardIdx, failargs, err := e.Run(token, h.Inputargs)
	require.NoError(t, err)
	require.Equal(t, -1, guardIdx)
	assert.Nil(t, failargs)
	require.Len(t, result, 3)
	assert.Equal(t, box.ConstInt{Value: 5}, result[2])
}

// TestPatchBridgeRedirectsGuardFailure checks spec.md §8 property 6 end to
// end: a guard that bails out of native code, once PatchBridge has wired it
// to a bridge, transfers straight into that bridge's compiled code instead
// of returning to the caller with a guardIdx for the interpreter to handle.
func TestPatchBridgeRedirectsGuardFailure(t *testing.T) {
	a := box.NewInt(0)
	b := box.NewInt(0)
	h := ir.NewHistory(ir.NewHeap(), noopCaller{}, []box.Box{a, b})
	sum, raised := h.ExecuteAndRecord(ir.INT_ADD, []box.Box{a, b}, nil)
	require.False(t, raised)
	h.Record(ir.GUARD_TRUE, []box.Box{sum}, nil, nil)

	token := ir.NewLoopToken("guard-token", h.Inputargs, h.Ops, "test-guard")
	e := New(4096)
	require.NoError(t, e.Assemble(token))

	_, guardIdx, _, err := e.Run(token, h.Inputargs)
	require.NoError(t, err)
	require.Equal(t, 1, guardIdx) // a+b==0 fails GUARD_TRUE at op index 1 (op 0 is the INT_ADD)

	bridgeHist := ir.NewHistory(ir.NewHeap(), noopCaller{}, h.Inputargs)
	bridge := ir.NewLoopToken("bridge-token", h.Inputargs, bridgeHist.Ops, "test-bridge")
	require.NoError(t, e.Assemble(bridge))

	require.NoError(t, e.PatchBridge(token, guardIdx, bridge))

	result, guardIdx2, _, err := e.Run(token, h.Inputargs)
	require.NoError(t, err)
	assert.Equal(t, -1, guardIdx2, "patched guard should run straight into the bridge, not bail out again")
	assert.NotNil(t, result)
}

// TestPatchBridgeRejectsUnassembledTokens confirms PatchBridge fails closed
// when either side of the patch hasn't been compiled yet, rather than
// silently no-op'ing as it used to.
func TestPatchBridgeRejectsUnassembledTokens(t *testing.T) {
	e := New(4096)
	token := ir.NewLoopToken("t", nil, nil, "d")
	bridge := ir.NewLoopToken("b", nil, nil, "d2")
	assert.Error(t, e.PatchBridge(token, 0, bridge))
}

// TestAssembleRejectsUnsupportedOp confirms a trace containing an op the
// backend doesn't lower (e.g. a host call) fails Assemble rather than
// silently miscompiling, so jitdriver falls back to leaving the loop
// interpreted.
func TestAssembleRejectsUnsupportedOp(t *testing.T) {
	a := box.NewInt(1)
	h := ir.NewHistory(ir.NewHeap(), noopCaller{}, []box.Box{a})
	h.Record(ir.CALL, []box.Box{a}, box.NewInt(0), nil)

	token := ir.NewLoopToken("t2", h.Inputargs, h.Ops, "test-call")
	e := New(4096)
	assert.Error(t, e.Assemble(token))
}
