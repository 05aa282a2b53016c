//go:build linux

package reactor

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// TestShutdownDaisyChain covers spec.md's invariant #5 and the
// shutdown-while-idle scenario: after one Close, all W workers sharing one
// Multiplexor exit Wait without error, and the running counter has been
// decremented once per worker down to 0. The token write count itself is
// not observed here.
func TestShutdownDaisyChain(t *testing.T) {
	const workers = 8

	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var running atomic.Int64
	running.Store(workers)

	var wg sync.WaitGroup
	var exits atomic.Int64
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Wait(&running, func(uintptr, EventFlags) {}); err != nil {
				t.Errorf("worker wait: %v", err)
			}
			exits.Add(1)
		}()
	}

	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit after shutdown")
	}

	if got := exits.Load(); got != workers {
		t.Fatalf("want %d worker exits, got %d", workers, got)
	}
	if got := running.Load(); got != 0 {
		t.Fatalf("want running counter at 0, got %d", got)
	}
}

// TestClientReadable exercises a registered client socket becoming
// readable and the cookie round-tripping correctly through epoll_data.
func TestClientReadable(t *testing.T) {
	m, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer m.Close()

	pair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(pair[1])

	const cookie = uintptr(0xdeadbeef)
	if err := m.RegisterClient(pair[0], cookie); err != nil {
		t.Fatalf("register client: %v", err)
	}

	if _, err := unix.Write(pair[1], []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var running atomic.Int64
	running.Store(1)

	gotCookie := make(chan uintptr, 1)
	gotFlags := make(chan EventFlags, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.Wait(&running, func(c uintptr, f EventFlags) {
			gotCookie <- c
			gotFlags <- f
			m.Close()
		})
	}()

	select {
	case c := <-gotCookie:
		if c != cookie {
			t.Fatalf("want cookie %x, got %x", cookie, c)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for readable event")
	}
	flags := <-gotFlags
	if flags&FlagIn == 0 {
		t.Fatalf("want FlagIn set, got %v", flags)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for shutdown to be observed")
	}
	unix.Close(pair[0])
}
