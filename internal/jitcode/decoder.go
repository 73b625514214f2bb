package jitcode

import "github.com/pkg/errors"

// BoxArg is one decoded box-shaped argument: either a register index into
// the relevant file, or a small constant folded inline into the bytecode
// (spec.md §6's box kind `c`).
type BoxArg struct {
	Const bool
	Value int8 // meaningful when Const
	Reg   int  // meaningful when !Const
}

// Instr is one decoded jitcode instruction, ready for the meta-interpreter
// to dispatch on Op and pull typed arguments out of the slices below.
type Instr struct {
	Op     Op
	OrgPC  int // pc this instruction started at, for ArgOrgPC / guard sites
	NextPC int // pc immediately after this instruction

	IntArgs   []BoxArg
	RefArgs   []BoxArg
	FloatArgs []BoxArg
	Descrs    []int
	JitCodes  []int
	Labels    []int
	Boxes     []BoxArg // the ArgBoxes length-prefixed list, int-file registers
	Greens    []BoxArg // the greenkey vector at a merge point
	Reds      []BoxArg // the redkey vector at a merge point

	HasResult bool
	Result    BoxArg // destination register, valid when HasResult
}

// Decoder walks a JitCode's byte stream one instruction at a time.
type Decoder struct {
	code []byte
	pc   int
}

func NewDecoder(code []byte) *Decoder {
	return &Decoder{code: code}
}

func (d *Decoder) AtEnd() bool { return d.pc >= len(d.code) }

func (d *Decoder) PC() int { return d.pc }

// Seek jumps the decoder to an arbitrary pc, used when a GOTO_IF_NOT or
// label resolves to a non-sequential target.
func (d *Decoder) Seek(pc int) { d.pc = pc }

func (d *Decoder) readByte() byte {
	b := d.code[d.pc]
	d.pc++
	return b
}

func (d *Decoder) readSignedByte() int8 {
	return int8(d.readByte())
}

func (d *Decoder) readU16() int {
	lo := int(d.readByte())
	hi := int(d.readByte())
	return lo | hi<<8
}

// readBoxArg decodes one box-typed argument: a tag byte (0=register,
// 1=inline constant) followed by the register index or signed constant
// byte, matching Builder.Emit's encoding for ArgBoxInt/ArgBoxRef/ArgBoxFloat
// slots.
func (d *Decoder) readBoxArg() BoxArg {
	if d.readByte() == 1 {
		return BoxArg{Const: true, Value: d.readSignedByte()}
	}
	return BoxArg{Reg: int(d.readByte())}
}

// Next decodes the instruction at the current pc and advances past it.
func (d *Decoder) Next() (Instr, error) {
	orgpc := d.pc
	op := Op(d.readByte())
	sig, ok := SignatureOf(op)
	if !ok {
		return Instr{}, errors.Errorf("jitcode: unknown opcode %d at pc %d", op, orgpc)
	}

	instr := Instr{Op: op, OrgPC: orgpc}
	for _, kind := range sig.Args {
		switch kind {
		case ArgBoxInt:
			instr.IntArgs = append(instr.IntArgs, d.readBoxArg())
		case ArgBoxRef:
			instr.RefArgs = append(instr.RefArgs, d.readBoxArg())
		case ArgBoxFloat:
			instr.FloatArgs = append(instr.FloatArgs, d.readBoxArg())
		case ArgDescr:
			instr.Descrs = append(instr.Descrs, d.readU16())
		case ArgJitCode:
			instr.JitCodes = append(instr.JitCodes, d.readU16())
		case ArgLabel:
			instr.Labels = append(instr.Labels, d.readU16())
		case ArgBoxes:
			n := int(d.readByte())
			for i := 0; i < n; i++ {
				instr.Boxes = append(instr.Boxes, BoxArg{Reg: int(d.readByte())})
			}
		case ArgGreens:
			n := int(d.readByte())
			for i := 0; i < n; i++ {
				instr.Greens = append(instr.Greens, BoxArg{Reg: int(d.readByte())})
			}
		case ArgReds:
			n := int(d.readByte())
			for i := 0; i < n; i++ {
				instr.Reds = append(instr.Reds, BoxArg{Reg: int(d.readByte())})
			}
		case ArgOrgPC:
			// consumes no bytes
		}
	}
	if sig.HasResult {
		instr.HasResult = true
		instr.Result = BoxArg{Reg: int(d.readByte())}
	}
	instr.NextPC = d.pc
	return instr, nil
}
