package amd64

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestMovRegImm32EncodesRexAndOpcode checks a reg-reg-free instruction
// against its known encoding: mov $5, rax is REX.W(0x48) C7 C0 <imm32 LE>.
func TestMovRegImm32EncodesRexAndOpcode(t *testing.T) {
	b := NewBuilder()
	b.MovRegImm32(RAX, 5)
	assert.Equal(t, []byte{0x48, 0xC7, 0xC0, 0x05, 0x00, 0x00, 0x00}, b.Bytes())
}

// TestMovRegImm32HighRegisterSetsRexB checks that addressing r8-r15 sets
// REX.B, the bit the teacher's hardcoded encoders never needed to compute
// since they only ever addressed r12/r13.
func TestMovRegImm32HighRegisterSetsRexB(t *testing.T) {
	b := NewBuilder()
	b.MovRegImm32(R8, 1)
	// REX.W | REX.B = 0x48 | 0x01
	assert.Equal(t, byte(0x49), b.Bytes()[0])
	assert.Equal(t, byte(0xC7), b.Bytes()[1])
	assert.Equal(t, byte(0xC0), b.Bytes()[2]) // ModRM r/m field is R8's low 3 bits (000)
}

// TestAddRegRegEncodesModRM checks: add rbx, rcx is REX.W 01 /r with rcx in
// the reg field and rbx in r/m (Intel's reversed operand order for 0x01).
func TestAddRegRegEncodesModRM(t *testing.T) {
	b := NewBuilder()
	b.AddRegReg(RBX, RCX)
	assert.Equal(t, []byte{0x48, 0x01, 0xCB}, b.Bytes())
}

// TestMovFromMemRspBaseForcesSIB exercises encodeMem's SIB special case:
// rsp (and r12) can never appear bare in ModRM's r/m field, so a
// [rsp+disp] load must emit a SIB byte even though there's no real index.
func TestMovFromMemRspBaseForcesSIB(t *testing.T) {
	b := NewBuilder()
	b.MovFromMem(RAX, RSP, 8)
	// REX.W(0x48) 8B ModRM(mod=01,reg=rax=000,rm=100->SIB) SIB(0x24) disp8(0x08)
	assert.Equal(t, []byte{0x48, 0x8B, 0x44, 0x24, 0x08}, b.Bytes())
}

// TestMovFromMemRbpZeroDispForcesDisp8 exercises encodeMem's other special
// case: mod=00,r/m=101 means RIP-relative, so [rbp+0] must be encoded as
// an explicit disp8=0 instead of the usual no-displacement form.
func TestMovFromMemRbpZeroDispForcesDisp8(t *testing.T) {
	b := NewBuilder()
	b.MovFromMem(RAX, RBP, 0)
	// mod=01 (forced), reg=rax=000, rm=rbp=101 -> 0x45, then disp8=0x00
	assert.Equal(t, []byte{0x48, 0x8B, 0x45, 0x00}, b.Bytes())
}

// TestJmpRel32ThenPatch checks the placeholder-then-patch flow every
// backward/forward branch in internal/jitemit relies on.
func TestJmpRel32ThenPatch(t *testing.T) {
	b := NewBuilder()
	_, patchOff := b.JmpRel32()
	b.Ret()
	nextInsnOff := patchOff + 4
	b.PatchRel32(patchOff, nextInsnOff, 0) // jump back to offset 0
	rel := int32(-nextInsnOff)
	assert.Equal(t, byte(rel), b.Bytes()[patchOff])
}
