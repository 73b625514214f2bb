package jitcode

import "github.com/JohnDoe117/mjit/internal/ir"

// JitCode is a finalized guest bytecode unit: the flat op stream plus the
// side tables its descr/jitcode/const argument bytes index into. Once
// built it is immutable and safe to share across driver instances tracing
// the same guest code object concurrently (spec.md §5: descr tables are
// immutable after codewriter finalization).
type JitCode struct {
	Name    string
	Code    []byte
	Descrs  []ir.Descr
	Callees []*JitCode // indexed by ArgJitCode bytes, for portal_call
	Consts  []int64    // small constants too large for the inline signed-byte form
}

// New wraps a finished byte stream and its side tables under a name used
// in resume-data frame layers and trace dumps.
func New(name string, code []byte, descrs []ir.Descr, callees []*JitCode, consts []int64) *JitCode {
	return &JitCode{Name: name, Code: code, Descrs: descrs, Callees: callees, Consts: consts}
}

func (j *JitCode) Descr(idx int) ir.Descr {
	return j.Descrs[idx]
}

func (j *JitCode) Callee(idx int) *JitCode {
	return j.Callees[idx]
}
