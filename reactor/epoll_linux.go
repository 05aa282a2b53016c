//go:build linux

// File: reactor/epoll_linux.go
// Author: Sam Y.
// License: Apache-2.0
//
// Linux epoll(7) implementation of Multiplexor, using golang.org/x/sys/unix
// for the flags (EPOLLEXCLUSIVE, EPOLLONESHOT) the standard library's
// syscall package does not expose. The control channel is a connected pair
// of UNIX-domain sockets: Close writes a single byte to one end; the other
// end is registered edge-triggered, one-shot, with a zero cookie, so it is
// unambiguous from any client or listener registration.
package reactor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/samy-dev/reactorkit/api"
)

const maxEventsPerWait = 128

type epollMultiplexor struct {
	epfd int

	// ctrl[0] is written to by Close; ctrl[1] is registered in epoll and
	// read by whichever worker the kernel wakes for the shutdown token.
	ctrl [2]int
}

// New creates a Multiplexor backed by a fresh epoll instance and control
// channel. Construction failures are distinguished per cause so callers can
// report which resource failed.
func New() (Multiplexor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("reactor: %w: epoll_create1: %v", api.ErrMultiplexorCreate, err)
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: %w: socketpair: %v", api.ErrControlChannel, err)
	}

	m := &epollMultiplexor{epfd: epfd, ctrl: [2]int{fds[0], fds[1]}}
	if err := m.armControl(); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: %w: arm control channel: %v", api.ErrControlChannel, err)
	}
	return m, nil
}

func (m *epollMultiplexor) armControl() error {
	return epollCtlCookie(m.epfd, unix.EPOLL_CTL_ADD, m.ctrl[1],
		unix.EPOLLIN|unix.EPOLLET|unix.EPOLLONESHOT, 0)
}

func (m *epollMultiplexor) RegisterListener(fd int) error {
	events := unix.EPOLLIN | unix.EPOLLET | unix.EPOLLEXCLUSIVE
	if err := epollCtlCookie(m.epfd, unix.EPOLL_CTL_ADD, fd, uint32(events), uintptr(fd)); err != nil {
		return fmt.Errorf("reactor: register listener: %w", err)
	}
	return nil
}

func (m *epollMultiplexor) RegisterClient(fd int, cookie uintptr) error {
	events := clientEvents()
	if err := epollCtlCookie(m.epfd, unix.EPOLL_CTL_ADD, fd, events, cookie); err != nil {
		return fmt.Errorf("reactor: register client: %w", err)
	}
	return nil
}

func (m *epollMultiplexor) RearmClient(fd int, cookie uintptr) error {
	events := clientEvents()
	if err := epollCtlCookie(m.epfd, unix.EPOLL_CTL_MOD, fd, events, cookie); err != nil {
		return fmt.Errorf("reactor: rearm client: %w", err)
	}
	return nil
}

func clientEvents() uint32 {
	return unix.EPOLLIN | unix.EPOLLET | unix.EPOLLONESHOT | unix.EPOLLRDHUP | unix.EPOLLPRI
}

func (m *epollMultiplexor) Deregister(fd int) error {
	if err := unix.EpollCtl(m.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("reactor: deregister: %w", err)
	}
	return nil
}

func (m *epollMultiplexor) Close() error {
	_, err := unix.Write(m.ctrl[0], []byte{'$'})
	if err != nil {
		return fmt.Errorf("reactor: write shutdown token: %w", err)
	}
	return nil
}

// Destroy closes the epoll instance and both control-channel descriptors,
// mirroring the original library's ~epoll destructor. Callers must ensure
// every worker's Wait has already returned.
func (m *epollMultiplexor) Destroy() error {
	var errs []error
	if err := unix.Close(m.epfd); err != nil {
		errs = append(errs, fmt.Errorf("epfd: %w", err))
	}
	if err := unix.Close(m.ctrl[0]); err != nil {
		errs = append(errs, fmt.Errorf("ctrl[0]: %w", err))
	}
	if err := unix.Close(m.ctrl[1]); err != nil {
		errs = append(errs, fmt.Errorf("ctrl[1]: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("reactor: destroy: %w", errors.Join(errs...))
	}
	return nil
}

func (m *epollMultiplexor) Wait(running *atomic.Int64, handle Handler) error {
	events := make([]unix.EpollEvent, maxEventsPerWait)
	for {
		n, err := unix.EpollWait(m.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("reactor: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			cookie := cookieOf(&events[i])
			if cookie == 0 {
				return m.handleShutdownToken(running)
			}
			handle(cookie, decodeFlags(events[i].Events))
		}
	}
}

// handleShutdownToken implements the daisy-chain: read the byte, re-arm
// the control end, decrement running, and relay the token if peers remain.
func (m *epollMultiplexor) handleShutdownToken(running *atomic.Int64) error {
	var buf [1]byte
	if _, err := unix.Read(m.ctrl[1], buf[:]); err != nil {
		return fmt.Errorf("reactor: read shutdown token: %w", err)
	}

	if err := epollCtlCookie(m.epfd, unix.EPOLL_CTL_MOD, m.ctrl[1],
		unix.EPOLLIN|unix.EPOLLET|unix.EPOLLONESHOT, 0); err != nil {
		return fmt.Errorf("reactor: %w: rearm control channel (fatal): %v", api.ErrRearmFailed, err)
	}

	if running.Add(-1) > 0 {
		if _, err := unix.Write(m.ctrl[0], []byte{'$'}); err != nil {
			return fmt.Errorf("reactor: relay shutdown token: %w", err)
		}
	}
	return nil
}

// epollCtlCookie is epoll_ctl plus the typed-cookie trick: EpollEvent's
// Fd and Pad fields are contiguous and together exactly the width of a
// pointer on amd64/arm64, so a full uintptr cookie can be stashed across
// them instead of just a 32-bit fd.
func epollCtlCookie(epfd, op, fd int, events uint32, cookie uintptr) error {
	var ev unix.EpollEvent
	ev.Events = events
	*(*uintptr)(unsafe.Pointer(&ev.Fd)) = cookie
	return unix.EpollCtl(epfd, op, fd, &ev)
}

func cookieOf(ev *unix.EpollEvent) uintptr {
	return *(*uintptr)(unsafe.Pointer(&ev.Fd))
}

func decodeFlags(raw uint32) EventFlags {
	var f EventFlags
	if raw&unix.EPOLLIN != 0 {
		f |= FlagIn
	}
	if raw&unix.EPOLLOUT != 0 {
		f |= FlagOut
	}
	if raw&unix.EPOLLPRI != 0 {
		f |= FlagPri
	}
	if raw&unix.EPOLLHUP != 0 {
		f |= FlagHup
	}
	if raw&unix.EPOLLRDHUP != 0 {
		f |= FlagRDHup
	}
	if raw&unix.EPOLLERR != 0 {
		f |= FlagErr
	}
	return f
}
