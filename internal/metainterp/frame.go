package metainterp

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/JohnDoe117/mjit/internal/jitcode"
)

// MIFrame is one activation of the meta-interpreter over a JitCode: the
// three typed register files spec.md §4.4 describes (ints, refs, floats),
// plus the jitcode and pc of the instruction being symbolically executed.
// Frames are pooled (see framePool below) rather than reallocated per call, since
// the guest interpreter can call deeply and each frame otherwise carries
// three slices worth of backing array.
type MIFrame struct {
	JitCode *jitcode.JitCode
	Pc      int

	Ints   []box.Box
	Refs   []box.Box
	Floats []box.Box
}

func newMIFrame(jc *jitcode.JitCode) *MIFrame {
	return &MIFrame{
		JitCode: jc,
		Ints:    make([]box.Box, 32),
		Refs:    make([]box.Box, 32),
		Floats:  make([]box.Box, 32),
	}
}

func (f *MIFrame) reset(jc *jitcode.JitCode) {
	f.JitCode = jc
	f.Pc = 0
	for i := range f.Ints {
		f.Ints[i] = nil
	}
	for i := range f.Refs {
		f.Refs[i] = nil
	}
	for i := range f.Floats {
		f.Floats[i] = nil
	}
}

// JitCodeID, PC, LiveInts, LiveRefs, LiveFloats satisfy resume.FrameSource,
// letting capture_resumedata walk a stack of *MIFrame directly.
func (f *MIFrame) JitCodeID() string { return f.JitCode.Name }
func (f *MIFrame) PC() int           { return f.Pc }

func (f *MIFrame) LiveInts() []box.Box   { return liveOnly(f.Ints) }
func (f *MIFrame) LiveRefs() []box.Box   { return liveOnly(f.Refs) }
func (f *MIFrame) LiveFloats() []box.Box { return liveOnly(f.Floats) }

func liveOnly(regs []box.Box) []box.Box {
	out := make([]box.Box, 0, len(regs))
	for _, b := range regs {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (f *MIFrame) resolveInt(arg jitcode.BoxArg) box.Box {
	if arg.Const {
		return box.ConstInt{Value: int64(arg.Value)}
	}
	if arg.Reg >= len(f.Ints) {
		invariantf("int register %d out of range in %s", arg.Reg, f.JitCode.Name)
	}
	b := f.Ints[arg.Reg]
	if b == nil {
		invariantf("read of uninitialized int register %d in %s", arg.Reg, f.JitCode.Name)
	}
	return b
}

func (f *MIFrame) resolveFloat(arg jitcode.BoxArg) box.Box {
	if arg.Reg >= len(f.Floats) {
		invariantf("float register %d out of range in %s", arg.Reg, f.JitCode.Name)
	}
	b := f.Floats[arg.Reg]
	if b == nil {
		invariantf("read of uninitialized float register %d in %s", arg.Reg, f.JitCode.Name)
	}
	return b
}

func (f *MIFrame) resolveRef(arg jitcode.BoxArg) box.Box {
	if arg.Reg >= len(f.Refs) {
		invariantf("ref register %d out of range in %s", arg.Reg, f.JitCode.Name)
	}
	b := f.Refs[arg.Reg]
	if b == nil {
		return box.ConstRef{Value: 0}
	}
	return b
}

func (f *MIFrame) setInt(reg int, v box.Box)   { f.Ints[reg] = v }
func (f *MIFrame) setRef(reg int, v box.Box)   { f.Refs[reg] = v }
func (f *MIFrame) setFloat(reg int, v box.Box) { f.Floats[reg] = v }

// framePool recycles MIFrames across guest calls, per spec.md §4.4 ("Frame
// objects are recycled to avoid reallocating the three register files").
type framePool struct {
	free []*MIFrame
}

func (p *framePool) get(jc *jitcode.JitCode) *MIFrame {
	if n := len(p.free); n > 0 {
		f := p.free[n-1]
		p.free = p.free[:n-1]
		f.reset(jc)
		return f
	}
	return newMIFrame(jc)
}

func (p *framePool) put(f *MIFrame) {
	p.free = append(p.free, f)
}
