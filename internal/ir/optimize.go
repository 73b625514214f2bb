package ir

import (
	"github.com/JohnDoe117/mjit/internal/box"
	"golang.org/x/exp/slices"
)

// Optimize runs a fixed-point sequence of peephole passes over a finished
// trace, mirroring the teacher's Optimise loop (clearLoops/removeEmptyLoops/
// mergeAdjacent/removeNoOps repeated until a pass makes no change).
// Pure-result CSE has already happened during tracing
// (History.executePure), so the passes here are guard deduplication and
// removal of pure ops whose results are never used.
func Optimize(ops []*Operation) []*Operation {
	for {
		next := removeDuplicateGuards(ops)
		next = removeDeadPureOps(next)
		if slices.Equal(next, ops) {
			return next
		}
		ops = next
	}
}

// removeDuplicateGuards drops a GUARD_VALUE/GUARD_CLASS/GUARD_NONNULL/
// GUARD_ISNULL when an earlier guard in the trace already constrained the
// same box to the same condition: the second guard can never fail given the
// first already passed.
func removeDuplicateGuards(ops []*Operation) []*Operation {
	seen := make(map[string]bool)
	out := make([]*Operation, 0, len(ops))
	for _, op := range ops {
		if !op.Opnum.IsGuard() || len(op.Args) == 0 {
			out = append(out, op)
			continue
		}
		key := guardKey(op)
		if key != "" && seen[key] {
			continue
		}
		if key != "" {
			seen[key] = true
		}
		out = append(out, op)
	}
	return out
}

// dedupableGuards lists the guard opnums removeDuplicateGuards may collapse:
// the ones whose only effect is constraining a single box, so a repeat of
// the same constraint on the same box is provably redundant.
var dedupableGuards = []Opnum{GUARD_VALUE, GUARD_CLASS, GUARD_NONNULL, GUARD_ISNULL}

func guardKey(op *Operation) string {
	if !slices.Contains(dedupableGuards, op.Opnum) {
		return ""
	}
	if op.Opnum == GUARD_VALUE {
		return op.Opnum.String() + "|" + boxIdentity(op.Args[0]) + "|" + op.Args[1].String()
	}
	return op.Opnum.String() + "|" + boxIdentity(op.Args[0])
}

// removeDeadPureOps drops ALWAYS_PURE operations whose result box is never
// referenced by any later operation or by the trace's final jump arguments.
// Guard, call, and store ops are never removed here: they carry effects
// (exceptions, heap writes, assembler calls) the optimizer must preserve.
func removeDeadPureOps(ops []*Operation) []*Operation {
	used := make(map[box.Box]bool)
	for _, op := range ops {
		for _, a := range op.Args {
			used[a] = true
		}
	}
	out := make([]*Operation, 0, len(ops))
	for _, op := range ops {
		if op.Opnum.IsAlwaysPure() && op.Result != nil && !used[op.Result] {
			continue
		}
		out = append(out, op)
	}
	return out
}
