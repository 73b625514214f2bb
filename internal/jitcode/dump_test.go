package jitcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestDisassembleRendersEveryInstruction builds a tiny program by hand
// (one INT_ADD, one GOTO_IF_NOT back-edge, one RETURN) and checks the
// disassembly names the program and every mnemonic, one line each.
func TestDisassembleRendersEveryInstruction(t *testing.T) {
	b := NewBuilder()
	loop := b.PC()
	b.Emit(OpIntAdd, IntArg(1), IntArg(2), ResultArg(1))
	label := b.NewLabel()
	b.Emit(OpGotoIfNot, LabelArg(label), ConstArg(0))
	b.PatchLabel(label, loop)
	b.Emit(OpReturn, IntArg(1))
	jc := b.Finish("disasm-demo")

	out := Disassemble(jc)
	assert.Contains(t, out, "disasm-demo")
	assert.Contains(t, out, "INT_ADD")
	assert.Contains(t, out, "GOTO_IF_NOT")
	assert.Contains(t, out, "RETURN")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 4, "one header line plus one line per instruction")
}
