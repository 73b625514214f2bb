package ir

import (
	"math"

	"github.com/JohnDoe117/mjit/internal/box"
	"github.com/pkg/errors"
)

// ErrZeroDivision and ErrNullDeref name the two guest-visible failure modes
// CAN_RAISE ops can hit. Nothing in this package returns them:
// History.ExecuteAndRecord reports those failures through its raised
// result, which the meta-interpreter turns into GUARD_EXCEPTION handling
// rather than propagating a Go error past the trace boundary.
var (
	ErrZeroDivision = errors.New("ir: division by zero")
	ErrNullDeref    = errors.New("ir: dereference of null ref")
)

// intOf/floatOf/refOf extract the concrete value out of any of the six Box
// variants of the matching kind. They panic on kind mismatch: that is an
// InternalInvariantViolation (a wrong-kind box reached an op that assumed a
// specific kind), not a guest-level error.
func intOf(b box.Box) int64 {
	switch v := b.(type) {
	case *box.BoxInt:
		return v.Value
	case box.ConstInt:
		return v.Value
	default:
		panic(errors.Errorf("ir: expected int box, got %T", b))
	}
}

func floatOf(b box.Box) float64 {
	switch v := b.(type) {
	case *box.BoxFloat:
		return v.Value
	case box.ConstFloat:
		return v.Value
	default:
		panic(errors.Errorf("ir: expected float box, got %T", b))
	}
}

func refOf(b box.Box) uintptr {
	switch v := b.(type) {
	case *box.BoxRef:
		return v.Value
	case box.ConstRef:
		return v.Value
	default:
		panic(errors.Errorf("ir: expected ref box, got %T", b))
	}
}

func boolBox(v bool) box.Box {
	if v {
		return box.ConstInt{Value: 1}
	}
	return box.ConstInt{Value: 0}
}

// evalPure concretely evaluates an ALWAYS_PURE (non-overflow) arithmetic or
// comparison op given concrete argument boxes, returning a fresh Const box
// of the appropriate kind. Field/array/call ops that happen to be pure
// (GETFIELD_GC_PURE, ARRAYLEN_GC, CALL_PURE) are evaluated inline in
// History.executePure since they need heap/caller access this function
// doesn't have.
func evalPure(opnum Opnum, args []box.Box) box.Box {
	switch opnum {
	case INT_ADD:
		return box.ConstInt{Value: intOf(args[0]) + intOf(args[1])}
	case INT_SUB:
		return box.ConstInt{Value: intOf(args[0]) - intOf(args[1])}
	case INT_MUL:
		return box.ConstInt{Value: intOf(args[0]) * intOf(args[1])}
	case INT_AND:
		return box.ConstInt{Value: intOf(args[0]) & intOf(args[1])}
	case INT_OR:
		return box.ConstInt{Value: intOf(args[0]) | intOf(args[1])}
	case INT_XOR:
		return box.ConstInt{Value: intOf(args[0]) ^ intOf(args[1])}
	case INT_LSHIFT:
		return box.ConstInt{Value: intOf(args[0]) << uint(intOf(args[1]))}
	case INT_RSHIFT:
		return box.ConstInt{Value: intOf(args[0]) >> uint(intOf(args[1]))}
	case UINT_RSHIFT:
		return box.ConstInt{Value: int64(uint64(intOf(args[0])) >> uint(intOf(args[1])))}
	case INT_LT:
		return boolBox(intOf(args[0]) < intOf(args[1]))
	case INT_LE:
		return boolBox(intOf(args[0]) <= intOf(args[1]))
	case INT_EQ:
		return boolBox(intOf(args[0]) == intOf(args[1]))
	case INT_NE:
		return boolBox(intOf(args[0]) != intOf(args[1]))
	case INT_GT:
		return boolBox(intOf(args[0]) > intOf(args[1]))
	case INT_GE:
		return boolBox(intOf(args[0]) >= intOf(args[1]))
	case UINT_LT:
		return boolBox(uint64(intOf(args[0])) < uint64(intOf(args[1])))
	case UINT_LE:
		return boolBox(uint64(intOf(args[0])) <= uint64(intOf(args[1])))
	case UINT_GT:
		return boolBox(uint64(intOf(args[0])) > uint64(intOf(args[1])))
	case UINT_GE:
		return boolBox(uint64(intOf(args[0])) >= uint64(intOf(args[1])))
	case FLOAT_ADD:
		return box.ConstFloat{Value: floatOf(args[0]) + floatOf(args[1])}
	case FLOAT_SUB:
		return box.ConstFloat{Value: floatOf(args[0]) - floatOf(args[1])}
	case FLOAT_MUL:
		return box.ConstFloat{Value: floatOf(args[0]) * floatOf(args[1])}
	case FLOAT_DIV:
		return box.ConstFloat{Value: floatOf(args[0]) / floatOf(args[1])}
	case FLOAT_NEG:
		return box.ConstFloat{Value: -floatOf(args[0])}
	case FLOAT_LT:
		return boolBox(floatOf(args[0]) < floatOf(args[1]))
	case FLOAT_LE:
		return boolBox(floatOf(args[0]) <= floatOf(args[1]))
	case FLOAT_EQ:
		return boolBox(floatOf(args[0]) == floatOf(args[1]))
	case FLOAT_NE:
		return boolBox(floatOf(args[0]) != floatOf(args[1]))
	case FLOAT_GT:
		return boolBox(floatOf(args[0]) > floatOf(args[1]))
	case FLOAT_GE:
		return boolBox(floatOf(args[0]) >= floatOf(args[1]))
	default:
		panic(errors.Errorf("ir: evalPure called on non-pure opnum %s", opnum))
	}
}

// evalOverflow evaluates an INT_*_OVF op, returning the wrapped int64
// result and whether a signed overflow occurred.
func evalOverflow(opnum Opnum, args []box.Box) (result int64, overflowed bool) {
	a, b := intOf(args[0]), intOf(args[1])
	switch opnum {
	case INT_ADD_OVF:
		result = a + b
		overflowed = (b > 0 && a > (1<<63-1)-b) || (b < 0 && a < -(1<<63)-b)
	case INT_SUB_OVF:
		result = a - b
		overflowed = (b < 0 && a > (1<<63-1)+b) || (b > 0 && a < -(1<<63)+b)
	case INT_MUL_OVF:
		result = a * b
		if a != 0 && b != 0 {
			// a==MinInt64, b==-1 wraps back to a in Go's two's-complement
			// division, so the result/b != a check alone misses it.
			overflowed = result/b != a || (a == math.MinInt64 && b == -1)
		}
	default:
		panic(errors.Errorf("ir: evalOverflow called on non-overflow opnum %s", opnum))
	}
	return result, overflowed
}
