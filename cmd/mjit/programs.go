package main

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/guestdemo"
	"github.com/JohnDoe117/mjit/internal/jitcode"
	"github.com/JohnDoe117/mjit/internal/jitdriver"
)

// program bundles one guestdemo loop builder with the jitdriver.Spec it
// closes traces against and the register seeding its -n/-tag flags feed,
// so every subcommand shares one registry instead of re-deriving it.
type program struct {
	spec    jitdriver.Spec
	build   func() *jitcode.JitCode
	initial func(n, tag int64) map[int]int64
}

var programs = map[string]program{
	"sumloop": {
		spec: guestdemo.SumLoopSpec, build: guestdemo.SumLoop,
		initial: func(n, tag int64) map[int]int64 { return map[int]int64{0: n, 1: 0, 2: 0} },
	},
	"overflowloop": {
		spec: guestdemo.OverflowLoopSpec, build: guestdemo.OverflowLoop,
		initial: func(n, tag int64) map[int]int64 { return map[int]int64{0: n, 1: 1, 2: 0} },
	},
	"callloop": {
		spec: guestdemo.CallLoopSpec, build: guestdemo.CallLoop,
		initial: func(n, tag int64) map[int]int64 { return map[int]int64{0: n, 1: 0, 2: 0} },
	},
	"promoteloop": {
		spec: guestdemo.PromoteLoopSpec, build: guestdemo.PromoteLoop,
		initial: func(n, tag int64) map[int]int64 { return map[int]int64{0: n, 1: 0, 2: 0, 4: tag} },
	},
	"forceloop": {
		spec: guestdemo.ForceLoopSpec, build: guestdemo.ForceLoop,
		initial: func(n, tag int64) map[int]int64 { return map[int]int64{0: n, 1: 0, 2: 0} },
	},
}

func lookupProgram(name string) (program, error) {
	p, ok := programs[name]
	if !ok {
		return program{}, fmt.Errorf("unknown program %q (choices: sumloop, overflowloop, callloop, promoteloop, forceloop)", name)
	}
	return p, nil
}

func formatResult(b box.Box) string {
	switch v := b.(type) {
	case *box.BoxInt:
		return fmt.Sprintf("%d", v.Value)
	case box.ConstInt:
		return fmt.Sprintf("%d", v.Value)
	default:
		if b == nil {
			return "<no return>"
		}
		return b.String()
	}
}
