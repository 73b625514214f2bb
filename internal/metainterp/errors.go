package metainterp

import "fmt"

// RuntimeError is a guest-visible failure surfaced through a guard rather
// than a Go error: zero division, null dereference, overflow, or class
// mismatch. Mirrors the teacher's vm.RuntimeError shape (message plus the
// pc it happened at), trading Brainfuck's single tape position for a
// jitcode name and pc.
type RuntimeError struct {
	Msg     string
	JitCode string
	PC      int
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in %s at pc %d: %s", e.JitCode, e.PC, e.Msg)
}

// InternalInvariantViolation is an impossible-state condition: a box of the
// wrong kind in a register file, a guard without a resume descr, a jump
// whose target doesn't exist. Per spec.md §7 this is fatal — callers panic
// with it rather than attempt recovery.
type InternalInvariantViolation struct {
	Msg string
}

func (e *InternalInvariantViolation) Error() string {
	return "internal invariant violation: " + e.Msg
}

func invariantf(format string, args ...any) {
	panic(&InternalInvariantViolation{Msg: fmt.Sprintf(format, args...)})
}
