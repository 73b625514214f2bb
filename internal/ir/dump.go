package ir

import (
	"fmt"
	"strings"
)

// Dump renders a loop token as readable text, one operation per line, in
// the spirit of the teacher's gas.go AT&T-syntax dumper: a debugging aid,
// not a format anything parses back.
func Dump(token *LoopToken) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# loop %s (%s)\n", token.ID, token.Descr)
	fmt.Fprint(&sb, "label(")
	for i, a := range token.Inputargs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteString(")\n")
	for i, op := range token.Ops {
		fmt.Fprintf(&sb, "%4d: %s", i, op)
		if bridge, ok := token.Bridges[i]; ok {
			fmt.Fprintf(&sb, "  -> bridge %s", bridge.ID)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
