package ir

import (
	"fmt"
	"strings"

	"github.com/JohnDoe117/mjit/internal/box"
)

// Operation is one node of a trace: an opnum, its argument boxes, an
// optional result box, and optional descr metadata.
type Operation struct {
	Opnum  Opnum
	Args   []box.Box
	Result box.Box // nil if the op produces no value (e.g. SETFIELD_GC, guards)
	Descr  Descr   // nil if the op carries no descr
}

func (o *Operation) String() string {
	var sb strings.Builder
	if o.Result != nil {
		fmt.Fprintf(&sb, "%s = ", o.Result)
	}
	fmt.Fprintf(&sb, "%s(", o.Opnum)
	for i, a := range o.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteString(")")
	if o.Descr != nil {
		fmt.Fprintf(&sb, " [%v]", o.Descr)
	}
	return sb.String()
}

// argKind panics with box.KindInt's zero value semantics if args is empty;
// callers only use it where the opcode signature guarantees at least one
// argument.
func argKind(args []box.Box) box.Kind {
	return args[0].Kind()
}
