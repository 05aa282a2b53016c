// File: acceptor/acceptor.go
// Package acceptor implements the acceptor reactor: a single listener
// thread that drains accept-readiness on one or more listening sockets and
// hands each accepted descriptor to a connection reactor.
// Author: Sam Y.
// License: Apache-2.0
package acceptor

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/samy-dev/reactorkit/connreactor"
	"github.com/samy-dev/reactorkit/control"
	"github.com/samy-dev/reactorkit/reactor"
)

// defaultBacklog matches the sample server's bind default from the
// library this is derived from.
const defaultBacklog = 100000

// Option configures an Acceptor at construction.
type Option func(*Acceptor)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Acceptor) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMetrics attaches a registry that rejected_connections is published to.
func WithMetrics(mr *control.MetricsRegistry) Option {
	return func(a *Acceptor) { a.metrics = mr }
}

// Acceptor owns one listener thread and a readiness multiplexor keyed on
// listening descriptors. It routes every accepted connection through the
// wrapped connection reactor's AddClient, never registering clients itself.
type Acceptor struct {
	cr  *connreactor.ConnReactor
	mux reactor.Multiplexor

	running    atomic.Int64
	rejected   atomic.Int64
	tokensRead atomic.Int64

	mu        sync.Mutex
	started   bool
	closed    bool
	wg        sync.WaitGroup
	listeners []int

	logger  *log.Logger
	metrics *control.MetricsRegistry
}

// New wraps cr in an acceptor reactor. cr must not be nil.
func New(cr *connreactor.ConnReactor, opts ...Option) (*Acceptor, error) {
	if cr == nil {
		return nil, fmt.Errorf("acceptor: connection reactor must not be nil")
	}

	mux, err := reactor.New()
	if err != nil {
		// reactor.New already wraps the failure with the sentinel for its
		// specific cause; this wraps the call site without collapsing it.
		return nil, fmt.Errorf("acceptor: %w", err)
	}

	a := &Acceptor{cr: cr, mux: mux, logger: log.Default()}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// ActiveCount delegates to the wrapped connection reactor, matching the
// original library's server_pool forwarding to client_pool.
func (a *Acceptor) ActiveCount() int {
	return a.cr.ActiveCount()
}

// Run starts the single listener worker. Idempotent.
func (a *Acceptor) Run() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return nil
	}
	a.started = true
	a.running.Store(1)

	a.wg.Add(1)
	go a.runWorker()
	return nil
}

func (a *Acceptor) runWorker() {
	defer a.wg.Done()
	if err := a.mux.Wait(&a.running, a.dispatch); err != nil {
		a.logger.Printf("acceptor: wait: %v", err)
		return
	}
	a.setMetric("shutdown_tokens_read", a.tokensRead.Add(1))
}

// Stop ends the listener worker via the multiplexor's shutdown token, joins
// it, and closes every listening descriptor added by Bind or Add.
// Idempotent.
func (a *Acceptor) Stop() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = false
	a.mu.Unlock()

	if err := a.mux.Close(); err != nil {
		return fmt.Errorf("acceptor: stop: %w", err)
	}
	a.setMetric("shutdown_tokens_written", 1)
	a.wg.Wait()

	a.mu.Lock()
	listeners := a.listeners
	a.listeners = nil
	a.mu.Unlock()
	a.closeListeners(listeners)
	return nil
}

// Close permanently releases the acceptor's readiness multiplexor
// descriptors. It is the final teardown step, distinct from Stop: Stop
// halts the listener worker and closes the listening sockets, and may be
// followed by another Run (which accepts nothing until a new Bind or Add),
// while Close
// frees the multiplexor's epoll and control-channel descriptors and must be
// called at most once, after the last Stop. Calling Close while the
// listener worker is still running stops it first. It does not touch the
// wrapped connection reactor, which owns its own lifecycle.
func (a *Acceptor) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	started := a.started
	a.mu.Unlock()

	if started {
		if err := a.Stop(); err != nil {
			return fmt.Errorf("acceptor: close: %w", err)
		}
	}

	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()

	if err := a.mux.Destroy(); err != nil {
		return fmt.Errorf("acceptor: close: %w", err)
	}
	return nil
}

func (a *Acceptor) setMetric(key string, delta int64) {
	if a.metrics == nil {
		return
	}
	if key == "rejected_connections" {
		a.metrics.Set(key, a.rejected.Add(delta))
		return
	}
	a.metrics.Set(key, delta)
}
