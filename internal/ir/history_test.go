package ir

import (
	"testing"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopCaller struct{}

func (noopCaller) Call(descr *CallDescr, args []box.Box) (box.Box, bool) {
	return box.ConstInt{Value: 0}, false
}

func TestExecuteAndRecordFoldsConstants(t *testing.T) {
	h := NewHistory(NewHeap(), noopCaller{}, nil)
	result, raised := h.ExecuteAndRecord(INT_ADD, []box.Box{box.ConstInt{Value: 2}, box.ConstInt{Value: 3}}, nil)
	require.False(t, raised)
	assert.Equal(t, box.ConstInt{Value: 5}, result)
	assert.Empty(t, h.Ops, "constant-folded ops must not append to the trace")
}

func TestExecuteAndRecordCSEsRepeatedPureOp(t *testing.T) {
	h := NewHistory(NewHeap(), noopCaller{}, nil)
	a := box.NewInt(10)
	r1, _ := h.ExecuteAndRecord(INT_ADD, []box.Box{a, box.ConstInt{Value: 1}}, nil)
	r2, _ := h.ExecuteAndRecord(INT_ADD, []box.Box{a, box.ConstInt{Value: 1}}, nil)
	assert.Same(t, r1, r2, "identical pure op on the same args must return the same result box")
	assert.Len(t, h.Ops, 1)
}

func TestExecuteAndRecordOverflowFlag(t *testing.T) {
	h := NewHistory(NewHeap(), noopCaller{}, nil)
	a := box.NewInt(1 << 62)
	b := box.NewInt(1 << 62)
	_, raised := h.ExecuteAndRecord(INT_ADD_OVF, []box.Box{a, b}, nil)
	assert.True(t, raised, "adding two large positive int64s must be reported as overflow")

	c := box.NewInt(1)
	d := box.NewInt(2)
	_, raised = h.ExecuteAndRecord(INT_ADD_OVF, []box.Box{c, d}, nil)
	assert.False(t, raised)
}

func TestRecordingToggleSuppressesAppends(t *testing.T) {
	h := NewHistory(NewHeap(), noopCaller{}, nil)
	h.SetRecording(false)
	a := box.NewInt(1)
	b := box.NewInt(2)
	h.ExecuteAndRecord(INT_ADD, []box.Box{a, b}, nil)
	assert.Empty(t, h.Ops, "non-recording execution must still evaluate but never append")
}
