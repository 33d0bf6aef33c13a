package tcp

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
)

func startTestServer(t *testing.T, reg *core.Registry) *Server {
	t.Helper()

	if reg == nil {
		reg = core.NewRegistry()
	}
	srv := NewServer(reg, Options{WriteTimeout: time.Second}, nil)
	if err := srv.StartAddr("127.0.0.1:0"); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Terminate)
	return srv
}

type testClient struct {
	conn net.Conn
	r    *bufio.Reader
}

// dial connects to srv and consumes the room info sent on connect.
func dial(t *testing.T, srv *Server) (*testClient, []core.Room) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), 2*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	c := &testClient{conn: conn, r: bufio.NewReader(conn)}
	return c, c.readRoomInfo(t)
}

func (c *testClient) send(t *testing.T, line string) {
	t.Helper()
	if _, err := io.WriteString(c.conn, line+"\n"); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) readLine(t *testing.T) string {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

// expectSilence fails if anything arrives within d.
func (c *testClient) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	line, err := c.r.ReadString('\n')
	if err == nil {
		t.Fatalf("expected no data, got %q", line)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func (c *testClient) readRoomInfo(t *testing.T) []core.Room {
	t.Helper()

	header := c.readLine(t)
	cmd, err := proto.Parse(header)
	if err != nil || cmd.Name != core.CommandRoomInfo {
		t.Fatalf("expected roomInfo header, got %q (%v)", header, err)
	}
	n, err := strconv.Atoi(cmd.Options["n"])
	if err != nil {
		t.Fatalf("bad room count in %q", header)
	}

	lines := []string{header}
	for range n {
		lines = append(lines, c.readLine(t))
	}
	rooms, err := core.ParseRoomInfo(strings.Join(lines, "\n"))
	if err != nil {
		t.Fatalf("parse room info: %v", err)
	}
	return rooms
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *eventRecorder) OnEvent(ev core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) count(kind core.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (r *eventRecorder) last(kind core.EventKind) (core.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return core.Event{}, false
}

// lifecycles returns, per session ID, the order of its connected/disconnected events.
func (r *eventRecorder) lifecycles() map[string][]core.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]core.EventKind)
	for _, ev := range r.events {
		if ev.Kind == core.EventConnected || ev.Kind == core.EventDisconnected {
			out[ev.Session.ID] = append(out[ev.Session.ID], ev.Kind)
		}
	}
	return out
}
