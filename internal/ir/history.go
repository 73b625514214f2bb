package ir

import (
	"fmt"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/pkg/errors"
)

// Error reports a malformed trace: a box used before it was defined, or a
// CAN_RAISE op not immediately followed by its mandatory exception guard.
// Mirrors the teacher's core.Error shape (a message plus positional
// context), trading source Position for the trace index where the problem
// was found.
type Error struct {
	Msg string
	At  int
}

func (e *Error) Error() string {
	return errors.Errorf("ir: %s (at op %d)", e.Msg, e.At).Error()
}

// Caller lets History evaluate CALL/CALL_PURE/CALL_MAY_FORCE/
// CALL_ASSEMBLER/CALL_LOOPINVARIANT concretely while tracing. The
// meta-interpreter supplies the concrete implementation (it alone knows how
// to dispatch into guest or host call targets); History only needs to
// record the result.
type Caller interface {
	Call(descr *CallDescr, args []box.Box) (result box.Box, raised bool)
}

// History is the append-only trace being built: an inputargs vector plus
// the operations recorded since tracing started at the current merge
// point. A History is exclusively owned by the meta-interpreter instance
// building it; once compiled, the IR it produced lives on inside a
// LoopToken and the History itself is discarded.
type History struct {
	Inputargs []box.Box
	Ops       []*Operation

	heap   *Heap
	caller Caller

	// recording, when false, makes ExecuteAndRecord evaluate ops concretely
	// without appending to Ops: used by the meta-interpreter to run
	// non-traced guest code (interpreter-only execution, blackholed traces)
	// through the exact same semantics without polluting a trace.
	recording bool

	// lastException is the box most recently raised by a CAN_RAISE op,
	// consulted by GOTO_IF_EXCEPTION_MISMATCH / RAISE handling one layer up
	// in the meta-interpreter.
	lastException box.Box

	// pureCache implements CSE at record time for ALWAYS_PURE ops: keyed by
	// a string encoding (opnum, arg identities), so a repeated pure op with
	// the same argument boxes returns the previously recorded result
	// without appending a new Operation. GETFIELD_GC_PURE keys also carry
	// the field descr; CALL_PURE and ARRAYLEN_GC results are not cached.
	pureCache map[string]box.Box
}

// NewHistory starts an empty trace over the given guest heap and call
// dispatcher, with the given live variables as its inputargs.
func NewHistory(heap *Heap, caller Caller, inputargs []box.Box) *History {
	return &History{
		Inputargs: inputargs,
		heap:      heap,
		caller:    caller,
		pureCache: make(map[string]box.Box),
		recording: true,
	}
}

// SetRecording toggles whether ExecuteAndRecord appends operations. Used by
// the meta-interpreter to borrow one History's heap/caller wiring for plain
// interpretation (blackhole, pre-trace warmup) without growing its Ops.
func (h *History) SetRecording(on bool) { h.recording = on }

// SetLastException records the box raised by a CAN_RAISE op, consulted by
// the meta-interpreter's GOTO_IF_EXCEPTION_MISMATCH / RAISE handling.
func (h *History) SetLastException(b box.Box) { h.lastException = b }

func (h *History) LastException() box.Box { return h.lastException }

func (h *History) Heap() *Heap { return h.heap }

func (h *History) append(op *Operation) {
	if h.recording {
		h.Ops = append(h.Ops, op)
	}
}

// Record appends an operation to the trace without evaluating it. Used for
// GUARD_* ops (whose "evaluation" is deciding whether to guard at all, done
// by the caller) and for pure ops the caller has already constant-folded.
func (h *History) Record(opnum Opnum, args []box.Box, result box.Box, descr Descr) *Operation {
	op := &Operation{Opnum: opnum, Args: args, Result: result, Descr: descr}
	h.Ops = append(h.Ops, op)
	return op
}

// ExecuteAndRecord evaluates opnum concretely against the current box
// values and appends the operation to the trace, returning the recorded
// result box. For ALWAYS_PURE ops whose arguments are all Const, the result
// is itself a Const and nothing is appended (constant folding happens at
// record time, not as a later optimizer pass, exactly as spec.md §4.2
// describes execute_and_record's contract).
//
// raised reports one of two distinct guard decisions depending on opnum's
// range: for a CAN_RAISE op, whether it signaled a guest-visible exception
// (zero division, null dereference); for an overflow-checked op, whether
// the arithmetic overflowed. Either way the caller must generate the
// matching guard (GUARD_EXCEPTION/GUARD_NO_EXCEPTION, or
// GUARD_OVERFLOW/GUARD_NO_OVERFLOW) immediately afterward, per the trace
// invariant in spec.md §3.
func (h *History) ExecuteAndRecord(opnum Opnum, args []box.Box, descr Descr) (result box.Box, raised bool) {
	switch {
	case opnum.IsAlwaysPure():
		return h.executePure(opnum, args, descr), false
	case opnum.IsOverflowChecked():
		return h.executeOverflow(opnum, args)
	case opnum.IsCanRaise():
		return h.executeCanRaise(opnum, args, descr)
	case opnum.IsAlloc():
		return h.executeAlloc(opnum, args, descr), false
	default:
		panic(errors.Errorf("ir: ExecuteAndRecord called on non-executable opnum %s", opnum))
	}
}

func (h *History) executePure(opnum Opnum, args []box.Box, descr Descr) box.Box {
	if opnum == GETFIELD_GC_PURE {
		fd := descr.(*FieldDescr)
		ref := refOf(args[0])
		result := h.heap.ReadByKind(ref, fd.Offset, fd.Kind)
		if allConst(args) {
			return box.ConstBox(result)
		}
		key := cseKey(opnum, args) + "|" + fieldDescrString(fd)
		if cached, ok := h.pureCache[key]; ok {
			return cached
		}
		h.append(&Operation{Opnum: opnum, Args: args, Result: result, Descr: descr})
		h.pureCache[key] = result
		return result
	}
	if opnum == ARRAYLEN_GC {
		ad := descr.(*ArrayDescr)
		ref := refOf(args[0])
		return box.ConstInt{Value: h.heap.ReadInt64(ref, ad.LengthOff)}
	}
	if opnum == CALL_PURE {
		cd := descr.(*CallDescr)
		res, _ := h.caller.Call(cd, args)
		if allConst(args) {
			return box.ConstBox(res)
		}
		h.append(&Operation{Opnum: opnum, Args: args, Result: res, Descr: descr})
		return res
	}

	if allConst(args) {
		result := evalPure(opnum, args)
		return result // not recorded: pure + all-const folds away entirely
	}
	result := nonConstResultFor(opnum, evalPure(opnum, constify(args)))
	key := cseKey(opnum, args)
	if cached, ok := h.pureCache[key]; ok {
		return cached
	}
	h.append(&Operation{Opnum: opnum, Args: args, Result: result})
	h.pureCache[key] = result
	return result
}

func (h *History) executeOverflow(opnum Opnum, args []box.Box) (box.Box, bool) {
	result, overflowed := evalOverflow(opnum, args)
	resultBox := box.NewInt(result)
	h.append(&Operation{Opnum: opnum, Args: args, Result: resultBox})
	return resultBox, overflowed
}

func (h *History) executeCanRaise(opnum Opnum, args []box.Box, descr Descr) (box.Box, bool) {
	switch opnum {
	case INT_FLOORDIV, INT_MOD, UINT_FLOORDIV:
		divisor := intOf(args[1])
		if divisor == 0 {
			h.append(&Operation{Opnum: opnum, Args: args})
			return nil, true
		}
		var v int64
		switch opnum {
		case INT_FLOORDIV:
			v = floorDiv(intOf(args[0]), divisor)
		case INT_MOD:
			v = intOf(args[0]) - floorDiv(intOf(args[0]), divisor)*divisor
		case UINT_FLOORDIV:
			v = int64(uint64(intOf(args[0])) / uint64(divisor))
		}
		result := box.NewInt(v)
		h.append(&Operation{Opnum: opnum, Args: args, Result: result})
		return result, false

	case GETFIELD_GC:
		ref := refOf(args[0])
		if h.heap.IsNull(ref) {
			h.append(&Operation{Opnum: opnum, Args: args, Descr: descr})
			return nil, true
		}
		fd := descr.(*FieldDescr)
		result := h.heap.ReadByKind(ref, fd.Offset, fd.Kind)
		h.append(&Operation{Opnum: opnum, Args: args, Result: result, Descr: descr})
		return result, false

	case SETFIELD_GC:
		ref := refOf(args[0])
		if h.heap.IsNull(ref) {
			h.append(&Operation{Opnum: opnum, Args: args, Descr: descr})
			return nil, true
		}
		fd := descr.(*FieldDescr)
		h.heap.WriteByKind(ref, fd.Offset, args[1])
		h.append(&Operation{Opnum: opnum, Args: args, Descr: descr})
		return nil, false

	case GETARRAYITEM_GC:
		ref := refOf(args[0])
		if h.heap.IsNull(ref) {
			h.append(&Operation{Opnum: opnum, Args: args, Descr: descr})
			return nil, true
		}
		ad := descr.(*ArrayDescr)
		idx := intOf(args[1])
		off := ad.ElemsBase + uintptr(idx)*ad.ElemSize
		result := h.heap.ReadByKind(ref, off, ad.ElemKind)
		h.append(&Operation{Opnum: opnum, Args: args, Result: result, Descr: descr})
		return result, false

	case SETARRAYITEM_GC:
		ref := refOf(args[0])
		if h.heap.IsNull(ref) {
			h.append(&Operation{Opnum: opnum, Args: args, Descr: descr})
			return nil, true
		}
		ad := descr.(*ArrayDescr)
		idx := intOf(args[1])
		off := ad.ElemsBase + uintptr(idx)*ad.ElemSize
		h.heap.WriteByKind(ref, off, args[2])
		h.append(&Operation{Opnum: opnum, Args: args, Descr: descr})
		return nil, false

	case CALL, CALL_MAY_FORCE, CALL_ASSEMBLER, CALL_LOOPINVARIANT:
		cd := descr.(*CallDescr)
		result, raised := h.caller.Call(cd, args)
		h.append(&Operation{Opnum: opnum, Args: args, Result: result, Descr: descr})
		return result, raised

	default:
		panic(errors.Errorf("ir: executeCanRaise called on unhandled opnum %s", opnum))
	}
}

func (h *History) executeAlloc(opnum Opnum, args []box.Box, descr Descr) box.Box {
	var handle uint64
	switch opnum {
	case NEW:
		sd := descr.(*SizeDescr)
		handle = h.heap.Alloc(sd.Size)
	case NEW_WITH_VTABLE:
		svd := descr.(*SizeVtableDescr)
		handle = h.heap.Alloc(svd.Size)
		h.heap.WriteInt64(uintptr(handle), 0, int64(svd.VtableID))
	case NEW_ARRAY:
		ad := descr.(*ArrayDescr)
		n := intOf(args[0])
		handle = h.heap.Alloc(ad.ElemsBase + uintptr(n)*ad.ElemSize)
		h.heap.WriteInt64(uintptr(handle), ad.LengthOff, n)
	}
	result := box.NewRef(uintptr(handle))
	h.append(&Operation{Opnum: opnum, Args: args, Result: result, Descr: descr})
	return result
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func allConst(args []box.Box) bool {
	for _, a := range args {
		if !a.IsConst() {
			return false
		}
	}
	return true
}

func constify(args []box.Box) []box.Box {
	out := make([]box.Box, len(args))
	for i, a := range args {
		out[i] = box.ConstBox(a)
	}
	return out
}

// nonConstResultFor takes the constant result produced by evaluating a pure
// op on constified args and, when the real args weren't all const, widens
// the result back into a proper variable box so the recorded Operation has
// a result box with its own fresh identity.
func nonConstResultFor(opnum Opnum, constResult box.Box) box.Box {
	return box.NonConstBox(constResult)
}

// cseKey builds a cache key for pure-op common-subexpression elimination:
// the opnum plus the argument boxes' identities (pointer-shaped for
// variables, value-shaped for constants).
func cseKey(opnum Opnum, args []box.Box) string {
	key := opnum.String()
	for _, a := range args {
		key += "|" + boxIdentity(a)
	}
	return key
}

func boxIdentity(b box.Box) string {
	switch v := b.(type) {
	case *box.BoxInt:
		return ptrKey(v)
	case *box.BoxRef:
		return ptrKey(v)
	case *box.BoxFloat:
		return ptrKey(v)
	default:
		return b.String() // Const* boxes: identity is their value
	}
}

// ptrKey renders a variable box's pointer identity as a cache key. Two
// calls with the same underlying box always produce the same key; two
// distinct boxes (even wrapping equal values) never collide.
func ptrKey(p interface{}) string {
	return fmt.Sprintf("%p", p)
}
