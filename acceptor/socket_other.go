//go:build !linux

// File: acceptor/socket_other.go
// Non-Linux stub: the acceptor depends on the same epoll-only readiness
// multiplexor as the connection reactor (see reactor/reactor_other.go), so
// New already fails before these would be reachable. They exist only so
// the package compiles on every platform.
// Author: Sam Y.
// License: Apache-2.0
package acceptor

import "github.com/samy-dev/reactorkit/reactor"

func (a *Acceptor) Bind(port, backlog int) bool { return false }

func (a *Acceptor) Add(fd int) bool { return false }

func (a *Acceptor) dispatch(cookie uintptr, flags reactor.EventFlags) {}

func (a *Acceptor) Port(index int) int { return -1 }

func (a *Acceptor) closeListeners(fds []int) {}
