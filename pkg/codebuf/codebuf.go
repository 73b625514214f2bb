// Package codebuf manages the JIT's native code arena: an mmap'd region
// that starts writable, receives assembled machine code from pkg/amd64,
// and is then flipped to read-only-executable before any guard jumps into
// it. This adapts the teacher's pkg/elf page-layout model (Segment,
// alignUp, load-segment bookkeeping) from "build a static ELF binary" to
// "manage a live in-process executable arena" — the page-alignment and
// segment-growth logic is the same shape, the output target is not.
package codebuf

import (
	"fmt"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"
)

const pageSize = 4096

// alignUp rounds n up to the next multiple of pageSize, exactly as the
// teacher's elf.alignUp rounds segment sizes up to page boundaries.
func alignUp(n int) int {
	if n%pageSize == 0 {
		return n
	}
	return (n/pageSize + 1) * pageSize
}

// Arena is a single mmap'd region holding zero or more compiled loops and
// bridges back to back. It starts life RW, and the owner (jitemit's
// Emitter) calls Seal once a batch of code has been written, transitioning
// the whole arena to RX. Further writes or patches need Reopen first, and
// a fresh Seal before the code runs again.
type Arena struct {
	mem    mmap.MMap
	cursor int
	sealed bool
}

// NewArena reserves size bytes (rounded up to a page) of RW memory.
func NewArena(size int) (*Arena, error) {
	size = alignUp(size)
	mem, err := mmap.MapRegion(nil, size, mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("codebuf: mmap: %w", err)
	}
	return &Arena{mem: mem}, nil
}

// Write appends code to the arena and returns the offset it was written
// at. Panics if the arena has already been sealed or is out of room: both
// are programmer errors in the emitter, not guest-triggerable conditions.
func (a *Arena) Write(code []byte) int {
	if a.sealed {
		panic("codebuf: write to sealed arena")
	}
	if a.cursor+len(code) > len(a.mem) {
		panic("codebuf: arena out of space")
	}
	off := a.cursor
	copy(a.mem[off:], code)
	a.cursor += len(code)
	return off
}

// PatchBytes overwrites len(code) bytes starting at off, regardless of the
// arena's own write cursor. Used to rewrite an already-sealed guard's
// bailout stub in place (see PatchInt32's Reopen/Seal requirement, which
// applies here too); the caller must guarantee off+len(code) falls inside a
// region reserved for exactly this at assemble time.
func (a *Arena) PatchBytes(off int, code []byte) {
	if off+len(code) > len(a.mem) {
		panic("codebuf: patch out of range")
	}
	copy(a.mem[off:], code)
}

// PatchInt32 overwrites 4 bytes at off with v, little-endian (jitemit's
// PatchBridge installs bridges with PatchBytes rather than this). The arena must
// still be writable (unsealed) or, for a post-seal patch (installing a
// bridge into already-executing code), the caller is responsible for a
// matching Reopen/Seal pair so the page is briefly writable again.
func (a *Arena) PatchInt32(off int, v int32) {
	a.mem[off] = byte(v)
	a.mem[off+1] = byte(v >> 8)
	a.mem[off+2] = byte(v >> 16)
	a.mem[off+3] = byte(v >> 24)
}

// Base returns the arena's start address as a uintptr, the base every
// Write offset is relative to.
func (a *Arena) Base() uintptr {
	if len(a.mem) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&a.mem[0]))
}

// Seal transitions the arena from RW to RX. Once sealed, native code in it
// may be jumped into; no further Write calls are permitted until Reopen.
func (a *Arena) Seal() error {
	if err := a.mem.Flush(); err != nil {
		return fmt.Errorf("codebuf: flush: %w", err)
	}
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		return fmt.Errorf("codebuf: mprotect rx: %w", err)
	}
	a.sealed = true
	return nil
}

// Reopen transitions a sealed arena back to RW so a guard jump target can
// be patched in place. The caller must Seal again before any guard jumps
// into the patched region. No explicit instruction-cache flush is issued:
// Seal's Flush only syncs the mapping, and amd64 keeps instruction fetch
// coherent with data writes.
func (a *Arena) Reopen() error {
	if err := unix.Mprotect(a.mem, unix.PROT_READ|unix.PROT_WRITE); err != nil {
		return fmt.Errorf("codebuf: mprotect rw: %w", err)
	}
	a.sealed = false
	return nil
}

func (a *Arena) Close() error {
	return a.mem.Unmap()
}
