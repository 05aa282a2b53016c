// File: slot/slot.go
// Package slot defines the preallocated per-connection record shared by the
// connection reactor's free-list, worker pool, and readiness multiplexor.
// Author: Sam Y.
// License: Apache-2.0

package slot

// BufSize is the fixed per-slot read buffer size. One extra trailing byte is
// kept zeroed so callers that treat the buffer as a C string see a sentinel.
const BufSize = 4096

// Slot is a preallocated connection record. Its address is identity-stable
// for the lifetime of the reactor and is handed to the kernel as an opaque
// event cookie, so Slot must never be copied by value once it is part of an
// arena.
type Slot struct {
	// FD is the OS socket descriptor. Zero means the slot is free.
	FD int32

	// Buf is the fixed-size read buffer plus one trailing sentinel byte.
	Buf [BufSize + 1]byte

	// Next links slots on the free-list stack. Owned exclusively by the
	// free-list implementation; nothing else may read or write it.
	Next *Slot
}

// Reset clears a slot back to its free-list state. Callers must have
// already deregistered and closed FD before calling Reset.
func (s *Slot) Reset() {
	s.FD = 0
}

// InUse reports whether the slot currently owns a live descriptor.
func (s *Slot) InUse() bool {
	return s.FD != 0
}
