//go:build !linux

// File: connreactor/dispatch_other.go
// Non-Linux stub: the connection reactor depends on the epoll-only
// readiness multiplexor (see reactor/reactor_other.go), so New already
// fails before these would be reachable. They exist only so the package
// compiles on every platform.
// Author: Sam Y.
// License: Apache-2.0
package connreactor

import (
	"github.com/samy-dev/reactorkit/reactor"
	"github.com/samy-dev/reactorkit/slot"
)

func (cr *ConnReactor) dispatch(cookie uintptr, flags reactor.EventFlags) {}

func (cr *ConnReactor) drainRead(s *slot.Slot) bool { return false }

func (cr *ConnReactor) drainOOB(s *slot.Slot) bool { return false }

func (cr *ConnReactor) rearm(s *slot.Slot) {}

func (cr *ConnReactor) evict(s *slot.Slot) {}
