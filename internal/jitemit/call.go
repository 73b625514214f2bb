//go:build amd64

package jitemit

// callNative is implemented in call_amd64.s.
func callNative(entry, frame uintptr) int64
