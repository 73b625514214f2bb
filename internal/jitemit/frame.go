package jitemit

import "unsafe"

// framePtr returns the address of frame's backing array for callNative to
// hand to the compiled code as RDI. A zero-length frame still needs a
// non-nil, dereferenceable address since the compiled code may do
// zero-length loads only when it never touches a slot, but Go won't hand
// out &frame[0] for an empty slice — fall back to a one-element scratch
// buffer in that case.
func framePtr(frame []int64) uintptr {
	if len(frame) == 0 {
		frame = make([]int64, 1)
	}
	return uintptr(unsafe.Pointer(&frame[0]))
}
