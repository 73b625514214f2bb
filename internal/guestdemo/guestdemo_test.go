package guestdemo

import (
	"testing"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/ir"
	"github.com/JohnDoe117/mjit/internal/jitdriver"
	"github.com/JohnDoe117/mjit/internal/resume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEmitter is a fake jitdriver.Emitter: it remembers which tokens
// it was asked to assemble and always reports "ran to completion" so tests
// can exercise the trace-and-compile path without real machine code.
type recordingEmitter struct {
	assembled []*ir.LoopToken
}

func newRecordingEmitter() *recordingEmitter { return &recordingEmitter{} }

func (e *recordingEmitter) Assemble(token *ir.LoopToken) error {
	token.CompiledAt = 1
	e.assembled = append(e.assembled, token)
	return nil
}

func (e *recordingEmitter) Run(token *ir.LoopToken, args []box.Box) ([]box.Box, int, []box.Box, error) {
	return nil, -1, nil, nil
}

func (e *recordingEmitter) PatchBridge(token *ir.LoopToken, guardIdx int, bridge *ir.LoopToken) error {
	return nil
}

func TestSumLoopInterpreted(t *testing.T) {
	s := NewSession(SumLoopSpec)
	jc := SumLoop()
	result, err := s.RunToReturn(jc, map[int]int64{regN: 5, regAcc: 0, regI: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(0+1+2+3+4), mustInt(result))
}

func TestCallLoopUsesHostDouble(t *testing.T) {
	s := NewSession(CallLoopSpec)
	jc := CallLoop()
	result, err := s.RunToReturn(jc, map[int]int64{regN: 3, regAcc: 0, regI: 0})
	require.NoError(t, err)
	// acc accumulates double(acc) each iteration starting from 0: stays 0.
	assert.Equal(t, int64(0), mustInt(result))
}

func TestPromoteLoopPromotesTag(t *testing.T) {
	s := NewSession(PromoteLoopSpec)
	jc := PromoteLoop()
	result, err := s.RunToReturn(jc, map[int]int64{regN: 2, regAcc: 0, regI: 0, regTag: 7})
	require.NoError(t, err)
	assert.Equal(t, int64(28), mustInt(result)) // double(7) + double(7)
}

func TestForceLoopCallsHostForce(t *testing.T) {
	s := NewSession(ForceLoopSpec)
	jc := ForceLoop()
	result, err := s.RunToReturn(jc, map[int]int64{regN: 3, regAcc: 0, regI: 0})
	require.NoError(t, err)
	assert.Equal(t, int64(3), mustInt(result)) // force(x) = x+1, applied 3 times from 0
}

// TestForceLoopResumeRebuildsLiveFrame exercises the scenario-(f) resume
// path directly: a CALL_MAY_FORCE guard's snapshot must be able to
// reconstruct the frame's live registers from whatever values were live at
// capture time, independent of whether the call actually forced anything.
func TestForceLoopResumeRebuildsLiveFrame(t *testing.T) {
	s := NewSession(ForceLoopSpec)
	jc := ForceLoop()
	f := s.Interp.PushFrame(jc)
	f.Ints[regN] = box.NewInt(1)
	f.Ints[regAcc] = box.NewInt(5)
	f.Ints[regI] = box.NewInt(0)

	snap := resume.CaptureResumeData([]resume.FrameSource{f})
	require.Len(t, snap.Layers, 1)
	require.Len(t, snap.Failargs, 3, "regN, regAcc, regI are all live, non-const boxes")

	failureValues := make([]box.Box, len(snap.Failargs))
	for i := range failureValues {
		failureValues[i] = box.NewInt(int64(100 + i))
	}
	rebuilt, err := resume.RebuildFromResumeData(snap, failureValues)
	require.NoError(t, err)
	require.Len(t, rebuilt, 1)
	assert.Equal(t, jc.Name, rebuilt[0].JitCodeID)
	assert.Len(t, rebuilt[0].Ints, 3)
}

// TestOverflowLoopInterpretedWraps checks plain interpreted (non-tracing)
// execution: INT_ADD_OVF still computes the wrapped int64 result even
// though no guard is ever recorded, since nothing is tracing.
func TestOverflowLoopInterpretedWraps(t *testing.T) {
	s := NewSession(OverflowLoopSpec)
	jc := OverflowLoop()
	// acc doubles each iteration starting at 1: acc = 2^n after n doublings,
	// wrapping around int64 the same way the guest's host arithmetic would.
	result, err := s.RunToReturn(jc, map[int]int64{regN: 64, regAcc: 1, regI: 0})
	require.NoError(t, err)
	var want int64 = 1
	for i := 0; i < 64; i++ {
		want *= 2
	}
	assert.Equal(t, want, mustInt(result))
}

// TestOverflowLoopTraceRecordsGuardOverflow checks that once tracing is
// active (a low threshold forces a trace to start), a doubling loop run far
// enough to actually overflow records a GUARD_OVERFLOW op rather than
// GUARD_NO_OVERFLOW, since the overflow-checked add overflows on the
// iteration that gets traced.
func TestOverflowLoopTraceRecordsGuardOverflow(t *testing.T) {
	emitter := newRecordingEmitter()
	s := NewSession(OverflowLoopSpec, jitdriver.WithEmitter(emitter))
	require.NoError(t, s.Driver.SetParam("threshold", 2))
	jc := OverflowLoop()
	// acc starts at 2^62, so the first doubling overflows (to MinInt64) and
	// so does the second (to 0): the second iteration, the one traced once
	// the threshold of 2 is reached, trips GUARD_OVERFLOW.
	_, err := s.RunToReturn(jc, map[int]int64{regN: 10, regAcc: 1 << 62, regI: 0})
	require.NoError(t, err)

	require.NotEmpty(t, emitter.assembled, "a compiled loop must have been produced")
	sawOverflowGuard := false
	for _, tok := range emitter.assembled {
		for _, op := range tok.Ops {
			if op.Opnum == ir.GUARD_OVERFLOW {
				sawOverflowGuard = true
			}
		}
	}
	assert.True(t, sawOverflowGuard, "a trace over an overflowing doubling loop must record GUARD_OVERFLOW")
}

func TestLowThresholdTracesAndCompiles(t *testing.T) {
	emitter := newRecordingEmitter()
	s := NewSession(SumLoopSpec, jitdriver.WithEmitter(emitter))
	require.NoError(t, s.Driver.SetParam("threshold", 2))
	jc := SumLoop()
	result, err := s.RunToReturn(jc, map[int]int64{regN: 50, regAcc: 0, regI: 0})
	require.NoError(t, err)
	assert.Equal(t, sumTo(50), mustInt(result))
	assert.NotEmpty(t, emitter.assembled, "a low threshold must trace and compile the loop")
}

func sumTo(n int64) int64 {
	var total int64
	for i := int64(0); i < n; i++ {
		total += i
	}
	return total
}
