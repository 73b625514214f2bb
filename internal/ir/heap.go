package ir

import (
	"encoding/binary"
	"math"

	"github.com/JohnDoe117/mjit/internal/box"
)

// Heap is the minimal guest object heap backing GETFIELD_GC/SETFIELD_GC,
// GETARRAYITEM_GC/SETARRAYITEM_GC, and the NEW* allocation ops. There is no
// garbage collector here (out of scope per spec.md §1): objects live for
// the lifetime of the Heap and are addressed by a synthetic handle rather
// than a real pointer, stored directly in a BoxRef's Value field.
//
// This mirrors the teacher's approach of representing guest state as a
// flat byte slice indexed by an integer (vm.VM's tape/data pointer) rather
// than modeling a real memory management system.
type Heap struct {
	objects map[uint64][]byte
	next    uint64
}

// NewHeap creates an empty heap. Handle 0 is reserved to mean "null" so
// GUARD_NONNULL/GUARD_ISNULL have a concrete value to test against.
func NewHeap() *Heap {
	return &Heap{objects: make(map[uint64][]byte), next: 1}
}

// Alloc reserves size bytes and returns the new object's handle.
func (h *Heap) Alloc(size uintptr) uint64 {
	handle := h.next
	h.next++
	h.objects[handle] = make([]byte, size)
	return handle
}

// IsNull reports whether a ref value is the null handle.
func (h *Heap) IsNull(ref uintptr) bool { return ref == 0 }

func (h *Heap) bytesAt(ref uintptr, off uintptr, n int) []byte {
	buf, ok := h.objects[uint64(ref)]
	if !ok {
		panic("ir: heap access through unknown or freed handle")
	}
	if int(off)+n > len(buf) {
		panic("ir: heap access out of bounds")
	}
	return buf[off : int(off)+n]
}

func (h *Heap) ReadInt64(ref uintptr, off uintptr) int64 {
	return int64(binary.LittleEndian.Uint64(h.bytesAt(ref, off, 8)))
}

func (h *Heap) WriteInt64(ref uintptr, off uintptr, v int64) {
	binary.LittleEndian.PutUint64(h.bytesAt(ref, off, 8), uint64(v))
}

func (h *Heap) ReadFloat64(ref uintptr, off uintptr) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(h.bytesAt(ref, off, 8)))
}

func (h *Heap) WriteFloat64(ref uintptr, off uintptr, v float64) {
	binary.LittleEndian.PutUint64(h.bytesAt(ref, off, 8), math.Float64bits(v))
}

func (h *Heap) ReadRef(ref uintptr, off uintptr) uintptr {
	return uintptr(binary.LittleEndian.Uint64(h.bytesAt(ref, off, 8)))
}

func (h *Heap) WriteRef(ref uintptr, off uintptr, v uintptr) {
	binary.LittleEndian.PutUint64(h.bytesAt(ref, off, 8), uint64(v))
}

// ReadByKind reads a field/array slot and boxes it according to kind.
func (h *Heap) ReadByKind(ref uintptr, off uintptr, kind box.Kind) box.Box {
	switch kind {
	case box.KindInt:
		return box.NewInt(h.ReadInt64(ref, off))
	case box.KindFloat:
		return box.NewFloat(h.ReadFloat64(ref, off))
	case box.KindRef:
		return box.NewRef(h.ReadRef(ref, off))
	default:
		panic("ir: unknown kind in heap read")
	}
}

// WriteByKind writes a boxed value into a field/array slot.
func (h *Heap) WriteByKind(ref uintptr, off uintptr, v box.Box) {
	switch vv := v.(type) {
	case *box.BoxInt:
		h.WriteInt64(ref, off, vv.Value)
	case box.ConstInt:
		h.WriteInt64(ref, off, vv.Value)
	case *box.BoxFloat:
		h.WriteFloat64(ref, off, vv.Value)
	case box.ConstFloat:
		h.WriteFloat64(ref, off, vv.Value)
	case *box.BoxRef:
		h.WriteRef(ref, off, vv.Value)
	case box.ConstRef:
		h.WriteRef(ref, off, vv.Value)
	default:
		panic("ir: unknown box type in heap write")
	}
}
