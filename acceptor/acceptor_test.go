//go:build linux

package acceptor

import (
	"net"
	"testing"
	"time"

	"github.com/samy-dev/reactorkit/connreactor"
	"github.com/samy-dev/reactorkit/control"
)

type noopHandler struct{}

func (noopHandler) OnInput(fd int, buf []byte) {}
func (noopHandler) OnOOB(fd int, b byte)       {}
func (noopHandler) OnWriteReady(fd int)        {}

func newTestConnReactor(t *testing.T) *connreactor.ConnReactor {
	t.Helper()
	cr, err := connreactor.New(2, 4, noopHandler{})
	if err != nil {
		t.Fatalf("connreactor.New: %v", err)
	}
	if err := cr.Run(); err != nil {
		t.Fatalf("connreactor.Run: %v", err)
	}
	t.Cleanup(func() { cr.Stop() })
	return cr
}

func TestBindAssignsEphemeralPort(t *testing.T) {
	cr := newTestConnReactor(t)
	a, err := New(cr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Close() })

	if !a.Bind(0, 8) {
		t.Fatalf("bind failed")
	}
	port := a.Port(0)
	if port <= 0 {
		t.Fatalf("want a positive ephemeral port, got %d", port)
	}
	if a.Port(1) != -1 {
		t.Fatalf("want -1 for an out-of-range listener index")
	}
}

func TestRunStopIdempotent(t *testing.T) {
	cr := newTestConnReactor(t)
	a, err := New(cr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.Bind(0, 8) {
		t.Fatalf("bind failed")
	}
	for i := 0; i < 2; i++ {
		if err := a.Run(); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if err := a.Stop(); err != nil {
			t.Fatalf("stop %d: %v", i, err)
		}
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestRejectedConnectionMetric(t *testing.T) {
	cr := newTestConnReactor(t)
	mr := control.NewMetricsRegistry()
	a, err := New(cr, WithMetrics(mr))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { a.Stop() })

	if !a.Bind(0, 8) {
		t.Fatalf("bind failed")
	}
	if err := a.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}

	addr := net.JoinHostPort("127.0.0.1", itoaPort(a.Port(0)))

	var conns []net.Conn
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	// The reactor has capacity 4 (see newTestConnReactor); fill it, then
	// connect one more that must be rejected.
	for i := 0; i < 4; i++ {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		conns = append(conns, conn)
	}
	waitForCount(t, cr, 4)

	extra, err := net.Dial("tcp", addr)
	if err == nil {
		conns = append(conns, extra)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap := mr.GetSnapshot()
		if v, ok := snap["rejected_connections"]; ok && v.(int64) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("rejected_connections metric was never incremented")
}

func waitForCount(t *testing.T, cr *connreactor.ConnReactor, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cr.ActiveCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("active_count did not reach %d, stuck at %d", want, cr.ActiveCount())
}

func itoaPort(n int) string {
	if n <= 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
