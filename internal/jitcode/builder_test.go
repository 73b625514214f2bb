package jitcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuilderDecoderRoundTripsGreensAndReds checks CAN_ENTER_JIT's
// ArgGreens/ArgReds length-prefixed vectors survive an encode/decode cycle
// in order, since the meta-interpreter relies on Greens/Reds index order to
// line up with jitdriver.Spec's declared green/red names.
func TestBuilderDecoderRoundTripsGreensAndReds(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpCanEnterJIT, GreensArg(4, 5), RedsArg(0, 1, 2))
	jc := b.Finish("greens-reds-demo")

	d := NewDecoder(jc.Code)
	instr, err := d.Next()
	require.NoError(t, err)

	require.Len(t, instr.Greens, 2)
	assert.Equal(t, 4, instr.Greens[0].Reg)
	assert.Equal(t, 5, instr.Greens[1].Reg)

	require.Len(t, instr.Reds, 3)
	assert.Equal(t, 0, instr.Reds[0].Reg)
	assert.Equal(t, 1, instr.Reds[1].Reg)
	assert.Equal(t, 2, instr.Reds[2].Reg)
}

// TestBuilderDecoderRoundTripsBoxesAndDescr checks CALL_PURE's ArgDescr
// index and ArgBoxes vector both survive the cycle, since the descr index
// is how the meta-interpreter looks the CallDescr back up out of the
// JitCode's descr table at dispatch time.
func TestBuilderDecoderRoundTripsBoxesAndDescr(t *testing.T) {
	descr := &stubDescr{}
	b := NewBuilder()
	b.Emit(OpCallPure, DescrArg(descr), BoxesArg(2, 3, 7), ResultArg(1))
	jc := b.Finish("boxes-descr-demo")

	require.Len(t, jc.Descrs, 1)
	assert.Same(t, descr, jc.Descrs[0])

	d := NewDecoder(jc.Code)
	instr, err := d.Next()
	require.NoError(t, err)

	require.Len(t, instr.Descrs, 1)
	assert.Equal(t, 0, instr.Descrs[0])

	require.Len(t, instr.Boxes, 3)
	assert.Equal(t, []int{2, 3, 7}, []int{instr.Boxes[0].Reg, instr.Boxes[1].Reg, instr.Boxes[2].Reg})

	require.True(t, instr.HasResult)
	assert.Equal(t, 1, instr.Result.Reg)
}

// TestBuilderPatchLabelResolvesForwardJump checks a label reserved before
// its target pc is known resolves correctly once PatchLabel supplies it,
// mirroring a guest compiler lowering a forward `if`.
func TestBuilderPatchLabelResolvesForwardJump(t *testing.T) {
	b := NewBuilder()
	done := b.NewLabel()
	b.Emit(OpGotoIfNot, LabelArg(done), IntArg(0))
	b.Emit(OpIntAdd, IntArg(0), IntArg(1), ResultArg(2))
	targetPC := b.PC()
	b.PatchLabel(done, targetPC)
	jc := b.Finish("forward-jump-demo")

	d := NewDecoder(jc.Code)
	instr, err := d.Next()
	require.NoError(t, err)
	require.Len(t, instr.Labels, 1)
	assert.Equal(t, targetPC, instr.Labels[0])
}

// TestBuilderEmitConstArgDecodesAsConstBoxArg checks ArgBoxConst round
// trips as a signed inline constant rather than a register index.
func TestBuilderEmitConstArgDecodesAsConstBoxArg(t *testing.T) {
	b := NewBuilder()
	b.Emit(OpIntAdd, IntArg(0), ConstArg(-5), ResultArg(1))
	jc := b.Finish("const-arg-demo")

	d := NewDecoder(jc.Code)
	instr, err := d.Next()
	require.NoError(t, err)
	require.Len(t, instr.IntArgs, 2)
	assert.False(t, instr.IntArgs[0].Const)
	assert.True(t, instr.IntArgs[1].Const)
	assert.Equal(t, int8(-5), instr.IntArgs[1].Value)
}

// stubDescr is a minimal ir.Descr used only to check builder/decoder descr
// table plumbing, not any real descr semantics.
type stubDescr struct{}

func (s *stubDescr) IsDescr() {}
