package guestdemo

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/jitcode"
	"github.com/JohnDoe117/mjit/internal/jitdriver"
	"github.com/JohnDoe117/mjit/internal/metainterp"
)

// Session bundles one guest run's interpreter and driver, the way an
// embedder wires up spec.md §4.5's "guest interpreter owns an interp and a
// driver instance" relationship.
type Session struct {
	Interp *metainterp.MetaInterp
	Driver *jitdriver.Driver
}

// NewSession builds a Session over the demo call table, with driver
// options layered on top of the package defaults so callers can attach a
// real Emitter or tune params without re-deriving the wiring.
func NewSession(spec jitdriver.Spec, opts ...jitdriver.Option) *Session {
	interp := metainterp.New(NewCallTable())
	allOpts := append([]jitdriver.Option{jitdriver.WithInterp(interp)}, opts...)
	driver := jitdriver.New(spec, allOpts...)
	return &Session{Interp: interp, Driver: driver}
}

// RunToReturn pushes jc as a fresh frame seeded with initialInts, drives
// Step() until the frame stack empties, and returns the value OpReturn
// last deposited.
func (s *Session) RunToReturn(jc *jitcode.JitCode, initialInts map[int]int64) (box.Box, error) {
	f := s.Interp.PushFrame(jc)
	for reg, v := range initialInts {
		f.Ints[reg] = box.NewInt(v)
	}
	for {
		done, err := s.Interp.Step()
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
	}
	return s.Interp.LastReturn(), nil
}

// SumLoopSpec is the jitdriver.Spec for SumLoop: no green-resident state,
// every loop variable is red.
var SumLoopSpec = jitdriver.Spec{Name: "sumloop", Greens: nil, Reds: []string{"n", "acc", "i"}}

var OverflowLoopSpec = jitdriver.Spec{Name: "overflowloop", Greens: nil, Reds: []string{"n", "acc", "i"}}

var CallLoopSpec = jitdriver.Spec{Name: "callloop", Greens: nil, Reds: []string{"n", "acc", "i"}}

var PromoteLoopSpec = jitdriver.Spec{Name: "promoteloop", Greens: nil, Reds: []string{"n", "acc", "i", "tag"}}

var ForceLoopSpec = jitdriver.Spec{Name: "forceloop", Greens: nil, Reds: []string{"n", "acc", "i"}}
