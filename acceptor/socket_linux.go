//go:build linux

// File: acceptor/socket_linux.go
// Raw listening-socket setup and the accept-drain loop, grounded on
// endpoint_tcp_server from the comm:: namespace this library is derived
// from: socket, SO_REUSEADDR, bind to INADDR_ANY, listen.
// Author: Sam Y.
// License: Apache-2.0
package acceptor

import (
	"golang.org/x/sys/unix"

	"github.com/samy-dev/reactorkit/api"
	"github.com/samy-dev/reactorkit/reactor"
)

// Bind creates a nonblocking IPv4 TCP listening socket on port with the
// given backlog, SO_REUSEADDR, INADDR_ANY, and registers it with the
// acceptor's readiness multiplexor. backlog <= 0 uses defaultBacklog.
func (a *Acceptor) Bind(port, backlog int) bool {
	if backlog <= 0 {
		backlog = defaultBacklog
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		a.logger.Printf("acceptor: socket: %v", err)
		return false
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		a.logger.Printf("acceptor: setsockopt SO_REUSEADDR: %v", err)
		unix.Close(fd)
		return false
	}

	addr := &unix.SockaddrInet4{Port: port}
	if err := unix.Bind(fd, addr); err != nil {
		a.logger.Printf("acceptor: bind port %d: %v", port, err)
		unix.Close(fd)
		return false
	}

	if err := unix.Listen(fd, backlog); err != nil {
		a.logger.Printf("acceptor: listen: %v", err)
		unix.Close(fd)
		return false
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		a.logger.Printf("acceptor: set nonblock: %v", err)
		unix.Close(fd)
		return false
	}

	return a.Add(fd)
}

// Add registers an externally prepared listening descriptor.
func (a *Acceptor) Add(fd int) bool {
	if err := a.mux.RegisterListener(fd); err != nil {
		a.logger.Printf("acceptor: %v: register listener fd=%d: %v", api.ErrRegistrationFailed, fd, err)
		return false
	}
	a.mu.Lock()
	a.listeners = append(a.listeners, fd)
	a.mu.Unlock()
	return true
}

// Port returns the local TCP port of a registered listening socket, keyed
// by the order the listeners were added through Bind or Add (0 for the
// first). Useful when binding port 0 to get an ephemeral port, as tests
// do. Returns -1 if index is out of range or the address family isn't
// IPv4.
func (a *Acceptor) Port(index int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.listeners) {
		return -1
	}
	sa, err := unix.Getsockname(a.listeners[index])
	if err != nil {
		return -1
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return -1
	}
	return in4.Port
}

func (a *Acceptor) closeListeners(fds []int) {
	for _, fd := range fds {
		unix.Close(fd)
	}
}

// dispatch is the reactor.Handler bound to the acceptor's multiplexor.
// cookie is always the listening fd itself.
func (a *Acceptor) dispatch(cookie uintptr, flags reactor.EventFlags) {
	fd := int(cookie)

	if flags&reactor.FlagErr != 0 {
		unix.Close(fd)
		return
	}

	a.drainAccept(fd)
}

// drainAccept repeatedly accepts on fd until it would block, handing each
// accepted descriptor to the connection reactor. Accept4 makes each
// descriptor nonblocking as it is accepted; a descriptor is closed
// immediately if AddClient fails.
func (a *Acceptor) drainAccept(fd int) {
	a.logger.Printf("DEBUG drainAccept called fd=%d", fd)
	for {
		cfd, _, err := unix.Accept4(fd, unix.SOCK_NONBLOCK)
		if err != nil {
			if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
				a.logger.Printf("acceptor: accept fd=%d: %v", fd, err)
			}
			a.logger.Printf("DEBUG drainAccept done fd=%d err=%v", fd, err)
			return
		}
		a.logger.Printf("DEBUG accepted cfd=%d", cfd)

		if !a.cr.AddClient(cfd) {
			unix.Close(cfd)
			a.setMetric("rejected_connections", 1)
		}
	}
}
