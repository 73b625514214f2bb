package resume

import (
	"testing"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFrame struct {
	id   string
	pc   int
	ints []box.Box
}

func (f fakeFrame) JitCodeID() string     { return f.id }
func (f fakeFrame) PC() int               { return f.pc }
func (f fakeFrame) LiveInts() []box.Box   { return f.ints }
func (f fakeFrame) LiveRefs() []box.Box   { return nil }
func (f fakeFrame) LiveFloats() []box.Box { return nil }

// TestCaptureDedupesRepeatedBoxAcrossFrames checks that the same live box
// referenced from two frames (e.g. a caller and callee sharing a variable)
// gets exactly one failargs slot, not one per occurrence.
func TestCaptureDedupesRepeatedBoxAcrossFrames(t *testing.T) {
	shared := box.NewInt(42)
	frames := []FrameSource{
		fakeFrame{id: "outer", pc: 1, ints: []box.Box{shared}},
		fakeFrame{id: "inner", pc: 2, ints: []box.Box{shared, box.NewInt(7)}},
	}
	snap := CaptureResumeData(frames)
	assert.Len(t, snap.Failargs, 2, "shared box contributes one slot, not two")
	assert.Equal(t, snap.Layers[0].Ints[0], snap.Layers[1].Ints[0], "both layers reference the same failarg index")
}

// TestCaptureInlinesConstantsWithoutFailargSlot checks constant boxes never
// consume a failargs slot, since their value is already known at capture
// time and needs no guard-failure-time substitution.
func TestCaptureInlinesConstantsWithoutFailargSlot(t *testing.T) {
	frames := []FrameSource{
		fakeFrame{id: "f", pc: 0, ints: []box.Box{box.ConstInt{Value: 9}}},
	}
	snap := CaptureResumeData(frames)
	assert.Empty(t, snap.Failargs)
	require.Len(t, snap.Layers[0].Ints, 1)
	assert.Equal(t, box.ConstInt{Value: 9}, snap.Layers[0].Ints[0].Const)
}

// TestRebuildSubstitutesFailureValues checks the capture/rebuild round
// trip: a variable box captured at trace time resolves, on rebuild, to
// whatever value the guard actually failed with rather than its
// trace-time snapshot value.
func TestRebuildSubstitutesFailureValues(t *testing.T) {
	v := box.NewInt(1)
	frames := []FrameSource{fakeFrame{id: "f", pc: 5, ints: []box.Box{v}}}
	snap := CaptureResumeData(frames)

	failureValue := box.NewInt(99)
	rebuilt, err := RebuildFromResumeData(snap, []box.Box{failureValue})
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)
	assert.Equal(t, "f", rebuilt[0].JitCodeID)
	assert.Equal(t, 5, rebuilt[0].PC)
	assert.Same(t, failureValue, rebuilt[0].Ints[0])
}

// TestRebuildRejectsMismatchedFailargCount guards against a caller handing
// rebuild the wrong number of failure values, which would otherwise index
// out of range deep inside resolve.
func TestRebuildRejectsMismatchedFailargCount(t *testing.T) {
	frames := []FrameSource{fakeFrame{id: "f", pc: 0, ints: []box.Box{box.NewInt(1)}}}
	snap := CaptureResumeData(frames)
	_, err := RebuildFromResumeData(snap, nil)
	assert.Error(t, err)
}
