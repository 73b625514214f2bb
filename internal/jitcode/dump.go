package jitcode

import (
	"fmt"
	"strings"
)

// opNames mirrors the teacher's core.Dump mnemonic table, one entry per Op.
var opNames = map[Op]string{
	OpIntAdd:                  "INT_ADD",
	OpIntSub:                  "INT_SUB",
	OpIntMul:                  "INT_MUL",
	OpIntAnd:                  "INT_AND",
	OpIntOr:                   "INT_OR",
	OpIntXor:                  "INT_XOR",
	OpIntLshift:               "INT_LSHIFT",
	OpIntRshift:               "INT_RSHIFT",
	OpUintRshift:              "UINT_RSHIFT",
	OpIntLt:                   "INT_LT",
	OpIntLe:                   "INT_LE",
	OpIntEq:                   "INT_EQ",
	OpIntNe:                   "INT_NE",
	OpIntGt:                   "INT_GT",
	OpIntGe:                   "INT_GE",
	OpUintLt:                  "UINT_LT",
	OpUintLe:                  "UINT_LE",
	OpUintGt:                  "UINT_GT",
	OpUintGe:                  "UINT_GE",
	OpIntAddOvf:               "INT_ADD_OVF",
	OpIntSubOvf:               "INT_SUB_OVF",
	OpIntMulOvf:               "INT_MUL_OVF",
	OpIntFloordiv:             "INT_FLOORDIV",
	OpIntMod:                  "INT_MOD",
	OpUintFloordiv:            "UINT_FLOORDIV",
	OpGetfieldGC:              "GETFIELD_GC",
	OpGetfieldGCPure:          "GETFIELD_GC_PURE",
	OpSetfieldGC:              "SETFIELD_GC",
	OpGetarrayitemGC:          "GETARRAYITEM_GC",
	OpSetarrayitemGC:          "SETARRAYITEM_GC",
	OpArraylenGC:              "ARRAYLEN_GC",
	OpNew:                     "NEW",
	OpNewWithVtable:           "NEW_WITH_VTABLE",
	OpNewArray:                "NEW_ARRAY",
	OpCall:                    "CALL",
	OpCallMayForce:            "CALL_MAY_FORCE",
	OpCallPure:                "CALL_PURE",
	OpGotoIfNot:               "GOTO_IF_NOT",
	OpGotoIfExceptionMismatch: "GOTO_IF_EXCEPTION_MISMATCH",
	OpRaise:                   "RAISE",
	OpReturn:                  "RETURN",
	OpPromote:                 "PROMOTE",
	OpCanEnterJIT:             "CAN_ENTER_JIT",
	OpJitMergePoint:           "JIT_MERGE_POINT",
	OpPortalCall:              "PORTAL_CALL",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("OP(%d)", int(o))
}

func (a BoxArg) String() string {
	if a.Const {
		return fmt.Sprintf("c%d", a.Value)
	}
	return fmt.Sprintf("i%d", a.Reg)
}

func boxArgs(args []BoxArg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ",")
}

// Disassemble decodes a JitCode's entire byte stream and renders it one
// instruction per line, in the spirit of the teacher's core.Dump: a PC
// column, a padded mnemonic, then the decoded operands. This is a reader's
// tool, not a format anything parses back.
func Disassemble(jc *JitCode) string {
	var out strings.Builder
	fmt.Fprintf(&out, "# jitcode %s\n", jc.Name)

	d := NewDecoder(jc.Code)
	for !d.AtEnd() {
		instr, err := d.Next()
		if err != nil {
			fmt.Fprintf(&out, "%04d: <error: %s>\n", d.PC(), err)
			return out.String()
		}

		fmt.Fprintf(&out, "%04d: %-26s", instr.OrgPC, instr.Op)

		var operands []string
		operands = append(operands, perArgStrings(instr)...)
		if len(operands) > 0 {
			out.WriteString(strings.Join(operands, " "))
		}
		if instr.HasResult {
			fmt.Fprintf(&out, " -> %s", instr.Result)
		}
		out.WriteString("\n")
	}
	return out.String()
}

// perArgStrings renders every decoded argument slice an instruction carries
// in the order Next() would have consumed them: int/ref/float registers,
// descr/jitcode/label indices, then the length-prefixed box/green/red
// vectors. An instruction only ever populates the slices its own Signature
// names, so there is no ambiguity about which belongs to it.
func perArgStrings(instr Instr) []string {
	var out []string
	for _, a := range instr.IntArgs {
		out = append(out, a.String())
	}
	for _, a := range instr.RefArgs {
		out = append(out, "r"+a.String()[1:])
	}
	for _, a := range instr.FloatArgs {
		out = append(out, "f"+a.String()[1:])
	}
	for _, idx := range instr.Descrs {
		out = append(out, fmt.Sprintf("descr#%d", idx))
	}
	for _, idx := range instr.JitCodes {
		out = append(out, fmt.Sprintf("jc#%d", idx))
	}
	for _, pc := range instr.Labels {
		out = append(out, fmt.Sprintf("L%d", pc))
	}
	if len(instr.Boxes) > 0 {
		out = append(out, "["+boxArgs(instr.Boxes)+"]")
	}
	if len(instr.Greens) > 0 {
		out = append(out, "greens["+boxArgs(instr.Greens)+"]")
	}
	if len(instr.Reds) > 0 {
		out = append(out, "reds["+boxArgs(instr.Reds)+"]")
	}
	return out
}
