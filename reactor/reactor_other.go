//go:build !linux

// File: reactor/reactor_other.go
// Author: Sam Y.
// License: Apache-2.0
//
// The edge-triggered + one-shot + exclusive-wakeup combination this module
// relies on (spec.md §9: "load-bearing") has no portable equivalent outside
// epoll — IOCP is completion-based, not readiness-based, and would need a
// different reactor design entirely. Non-Linux platforms get a constructor
// that fails clearly instead of a half-working reactor.
package reactor

import (
	"errors"
	"fmt"

	"github.com/samy-dev/reactorkit/api"
)

// ErrUnsupportedPlatform is returned by New on any non-Linux platform.
var ErrUnsupportedPlatform = errors.New("reactor: epoll multiplexor is only available on linux")

// New always fails outside Linux.
func New() (Multiplexor, error) {
	return nil, fmt.Errorf("%w: %v", api.ErrNotSupported, ErrUnsupportedPlatform)
}
