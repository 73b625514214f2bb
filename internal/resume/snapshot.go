// Package resume implements resume data (L3): per-guard snapshots of the
// guest-interpreter frame stack, compact enough to attach to every guard in
// a trace, and a rebuild protocol that reconstructs MIFrames when a guard
// fails during native execution.
package resume

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/box"
)

// FrameSource is whatever the meta-interpreter's live frame looks like at
// the moment a guard is generated. capture_resumedata walks a stack of
// these, parent first, to build a Snapshot. The metainterp package supplies
// the concrete implementation; resume only needs read access to jitcode
// identity, pc, and the three live-register files.
type FrameSource interface {
	JitCodeID() string
	PC() int
	LiveInts() []box.Box
	LiveRefs() []box.Box
	LiveFloats() []box.Box
}

// ValueRef identifies where one live slot's value comes from on rebuild:
// either baked in at capture time (the box was already a Const), or taken
// by position from the failargs vector handed to rebuild_from_resumedata.
type ValueRef struct {
	Const        box.Box // non-nil when this slot was constant at capture time
	FailargIndex int     // valid when Const == nil
}

// FrameLayer is one guest frame's captured state: its jitcode identity, pc,
// and live boxes in the fixed ints/refs/floats ordering §4.3 specifies, so
// a consumer can decode each slot with its kind already known.
type FrameLayer struct {
	JitCodeID string
	PC        int
	Ints      []ValueRef
	Refs      []ValueRef
	Floats    []ValueRef
}

// Snapshot is the resume data captured at one guard: a linked list of
// FrameLayers (parent caller first, the frame containing the guard last)
// plus the failargs vector that non-constant ValueRefs index into. Boxes
// repeated across frames are captured once per frame but reference the
// same failargs slot, so the vector itself has no duplication beyond what
// the frames actually share.
type Snapshot struct {
	Layers   []*FrameLayer
	Failargs []box.Box
}

// CaptureResumeData walks the frame stack (innermost/guard frame last,
// matching the order MIFrame activation naturally produces) and records a
// Snapshot. Constant boxes are captured inline; variable boxes are
// deduplicated into a single failargs vector indexed by identity.
func CaptureResumeData(frames []FrameSource) *Snapshot {
	snap := &Snapshot{}
	index := make(map[box.Box]int)

	ref := func(b box.Box) ValueRef {
		if b.IsConst() {
			return ValueRef{Const: b}
		}
		if i, ok := index[b]; ok {
			return ValueRef{FailargIndex: i}
		}
		i := len(snap.Failargs)
		snap.Failargs = append(snap.Failargs, b)
		index[b] = i
		return ValueRef{FailargIndex: i}
	}

	for _, f := range frames {
		layer := &FrameLayer{JitCodeID: f.JitCodeID(), PC: f.PC()}
		for _, b := range f.LiveInts() {
			layer.Ints = append(layer.Ints, ref(b))
		}
		for _, b := range f.LiveRefs() {
			layer.Refs = append(layer.Refs, ref(b))
		}
		for _, b := range f.LiveFloats() {
			layer.Floats = append(layer.Floats, ref(b))
		}
		snap.Layers = append(snap.Layers, layer)
	}
	return snap
}

// RebuiltFrame is one reconstructed frame: enough to re-enter the
// meta-interpreter at exactly the instruction the guard covers.
type RebuiltFrame struct {
	JitCodeID string
	PC        int
	Ints      []box.Box
	Refs      []box.Box
	Floats    []box.Box
}

// RebuildFromResumeData reconstructs the guest frame stack that was live
// when snap was captured, substituting valuesAtFailure (the concrete
// values the failing guard's failargs evaluated to at the moment of
// failure) for every non-constant ValueRef. Frames come back parent-first,
// matching capture order; the caller pushes them onto a fresh frame stack
// in that order so the last one ends up on top.
func RebuildFromResumeData(snap *Snapshot, valuesAtFailure []box.Box) ([]RebuiltFrame, error) {
	if len(valuesAtFailure) != len(snap.Failargs) {
		return nil, fmt.Errorf("resume: expected %d failarg values, got %d", len(snap.Failargs), len(valuesAtFailure))
	}
	resolve := func(v ValueRef) box.Box {
		if v.Const != nil {
			return v.Const
		}
		return valuesAtFailure[v.FailargIndex]
	}

	frames := make([]RebuiltFrame, len(snap.Layers))
	for i, layer := range snap.Layers {
		rf := RebuiltFrame{JitCodeID: layer.JitCodeID, PC: layer.PC}
		for _, v := range layer.Ints {
			rf.Ints = append(rf.Ints, resolve(v))
		}
		for _, v := range layer.Refs {
			rf.Refs = append(rf.Refs, resolve(v))
		}
		for _, v := range layer.Floats {
			rf.Floats = append(rf.Floats, resolve(v))
		}
		frames[i] = rf
	}
	return frames, nil
}
