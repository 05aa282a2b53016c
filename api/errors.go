// Package api
// Author: Sam Y.
//
// Construction- and operation-failure sentinels shared by every reactor in
// this module. Call sites wrap the underlying syscall/allocation error with
// one of these via fmt.Errorf("...: %w: ...", Err..., err), so a caller can
// branch with errors.Is instead of string-matching.
package api

import "fmt"

var (
	// ErrArenaAllocation is returned when the connection reactor's slot
	// arena cannot be allocated, heap or page-mapped.
	ErrArenaAllocation = fmt.Errorf("slot arena allocation failed")

	// ErrMultiplexorCreate is returned when the kernel readiness object
	// itself (epoll on Linux) cannot be created.
	ErrMultiplexorCreate = fmt.Errorf("readiness multiplexor creation failed")

	// ErrControlChannel is returned when the shutdown daisy-chain's
	// control channel (a socketpair on Linux) cannot be created or armed.
	// Distinct from ErrMultiplexorCreate so a caller can tell which of the
	// two kernel resources a construction failure came from.
	ErrControlChannel = fmt.Errorf("control channel creation failed")

	// ErrRegistrationFailed is returned when a descriptor cannot be added
	// to the readiness object.
	ErrRegistrationFailed = fmt.Errorf("descriptor registration failed")

	// ErrRearmFailed is returned when a one-shot registration cannot be
	// re-enabled.
	ErrRearmFailed = fmt.Errorf("one-shot rearm failed")

	// ErrInvalidArgument is returned for out-of-range constructor
	// parameters (worker count, capacity).
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// ErrResourceExhausted marks a rent attempt against an empty slot
	// free-list. AddClient's own contract surfaces this as a plain false
	// return rather than an error, so this sentinel appears in logging
	// only — it still gives the exhaustion case a named, greppable cause.
	ErrResourceExhausted = fmt.Errorf("resource exhausted")

	// ErrNotSupported is returned by reactor.New on a platform without an
	// epoll-equivalent readiness object.
	ErrNotSupported = fmt.Errorf("operation not supported")
)
