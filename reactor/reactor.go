// File: reactor/reactor.go
// Package reactor wraps a single kernel readiness object (epoll on Linux)
// plus an internal control channel used to drive a daisy-chained shutdown
// across every worker sharing that object.
// Author: Sam Y.
// License: Apache-2.0
package reactor

import "sync/atomic"

// EventFlags decodes the bitwise-or of readiness conditions the kernel
// reported for one descriptor.
type EventFlags uint32

const (
	FlagIn EventFlags = 1 << iota
	FlagOut
	FlagPri
	FlagHup
	FlagRDHup
	FlagErr
)

// Handler is invoked once per ready descriptor from inside Wait. cookie is
// whatever value was registered for that descriptor: a raw listening fd for
// the acceptor's multiplexor, or a slot address (as uintptr) for the
// connection reactor's. A cookie of zero is never delivered to Handler —
// it is reserved internally to identify the shutdown control channel.
type Handler func(cookie uintptr, flags EventFlags)

// Multiplexor encapsulates one kernel readiness object and its control
// channel. A given instance is meant to be shared by every worker thread
// of a single reactor (acceptor or connection); register/deregister and
// Wait are safe to call from multiple goroutines concurrently.
type Multiplexor interface {
	// RegisterListener adds a listening descriptor with edge-triggered,
	// exclusive-wakeup readable notifications. Its cookie is fd itself.
	RegisterListener(fd int) error

	// RegisterClient adds a connection descriptor with edge-triggered,
	// one-shot readable + hang-up + priority notifications, tagged with
	// the given cookie (typically a slot address).
	RegisterClient(fd int, cookie uintptr) error

	// RearmClient re-enables the one-shot notification for fd.
	RearmClient(fd int, cookie uintptr) error

	// Deregister removes fd from the readiness object.
	Deregister(fd int) error

	// Close publishes the shutdown token on the control channel. It does
	// not block for workers to observe it.
	Close() error

	// Wait blocks pulling ready events and dispatching them to handle
	// until the shutdown token is consumed by this call. running is
	// decremented exactly once as part of that consumption and, if still
	// positive afterward, the token is relayed to the next waiter.
	Wait(running *atomic.Int64, handle Handler) error

	// Destroy releases the kernel readiness object and the control
	// channel's descriptors. It must be called at most once, after every
	// worker's Wait call has returned — calling it while a worker is
	// still blocked in Wait is undefined.
	Destroy() error
}
