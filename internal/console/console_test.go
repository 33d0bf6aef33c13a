package console

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/transport/tcp"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(t *testing.T) (*Console, *tcp.Server, *syncBuffer) {
	t.Helper()

	srv := tcp.NewServer(core.NewRegistry(), tcp.Options{}, nil)
	t.Cleanup(srv.Terminate)

	out := &syncBuffer{}
	c := New(srv, out, nil)
	srv.Subscribe(c)
	return c, srv, out
}

func waitForOutput(t *testing.T, out *syncBuffer, want string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("output does not contain %q:\n%s", want, out.String())
}

func TestStartAndDoubleStart(t *testing.T) {
	c, srv, out := newTestConsole(t)

	if !c.Execute("start -p 0") {
		t.Fatal("start must not end the console")
	}
	if !srv.Listening() {
		t.Fatal("server not listening after start")
	}
	waitForOutput(t, out, "Server started on port: ")
	waitForOutput(t, out, "Waiting for client access")

	c.Execute("start -p 0")
	waitForOutput(t, out, "Server is already online")
}

func TestStartWithBadPort(t *testing.T) {
	for _, line := range []string{"start", "start -p", "start -p abc", "start -p 70000"} {
		c, srv, out := newTestConsole(t)
		c.Execute(line)
		if srv.Listening() {
			t.Fatalf("%q must not start the server", line)
		}
		if !strings.Contains(out.String(), "Set the port with -p correctly") {
			t.Fatalf("%q: unexpected output %q", line, out.String())
		}
	}
}

func TestListCounts(t *testing.T) {
	c, srv, out := newTestConsole(t)
	if _, err := srv.Registry().NewRoom("127.0.0.1", 1234, "a", "b", 10); err != nil {
		t.Fatalf("seed: %v", err)
	}

	c.Execute("ls")
	waitForOutput(t, out, "0 clients connected, 1 rooms exist")
}

func TestNotiBroadcastsQuotedNotice(t *testing.T) {
	c, srv, out := newTestConsole(t)
	c.Execute("start -p 0")

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if header, err := r.ReadString('\n'); err != nil || !strings.HasPrefix(header, core.CommandRoomInfo) {
		t.Fatalf("expected room info, got %q (%v)", header, err)
	}

	c.Execute(`noti -m "hi all"`)
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read notice: %v", err)
	}
	if line != "noti -m \"hi all\"\n" {
		t.Fatalf("unexpected notice %q", line)
	}
	waitForOutput(t, out, "Notified to all clients: hi all")
}

func TestNotiWithoutMessageIsIgnored(t *testing.T) {
	c, _, out := newTestConsole(t)
	c.Execute("noti")
	c.Execute("noti -m")
	if strings.Contains(out.String(), "Notified") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestNotice(t *testing.T) {
	if got := Notice("hi"); got != `noti -m "hi"` {
		t.Fatalf("unexpected notice %q", got)
	}
}

func TestMiscCommands(t *testing.T) {
	c, _, out := newTestConsole(t)

	c.Execute("error boom")
	c.Execute("whatever -x y")
	c.Execute(`broken "quote`)
	c.Execute("cls")
	c.Execute("")

	s := out.String()
	for _, want := range []string{"Error: error boom", "whatever -x y", "Error: malformed command", clearScreen} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
}

func TestExitTerminatesServer(t *testing.T) {
	c, srv, out := newTestConsole(t)
	c.Execute("start -p 0")

	if c.Execute("exit") {
		t.Fatal("exit must end the console")
	}
	if srv.Listening() {
		t.Fatal("server still listening after exit")
	}
	waitForOutput(t, out, "Server stopped")
}

func TestRunStopsOnExit(t *testing.T) {
	c, _, out := newTestConsole(t)

	err := c.Run(context.Background(), strings.NewReader("ls\nexit\nls\n"))
	if !errors.Is(err, ErrExit) {
		t.Fatalf("expected ErrExit, got %v", err)
	}
	if n := strings.Count(out.String(), "clients connected"); n != 1 {
		t.Fatalf("expected one ls before exit, got %d", n)
	}
}

func TestRunReturnsNilOnEOF(t *testing.T) {
	c, _, _ := newTestConsole(t)
	if err := c.Run(context.Background(), strings.NewReader("ls\n")); err != nil {
		t.Fatalf("expected nil on EOF, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c, _, _ := newTestConsole(t)
	pr, pw := net.Pipe()
	defer pw.Close()
	defer pr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.Run(ctx, pr); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEventRendering(t *testing.T) {
	c, _, out := newTestConsole(t)
	sess := core.SessionInfo{ID: "s1", RemoteAddr: "10.0.0.1:5555", RemoteIP: "10.0.0.1"}

	c.OnEvent(core.Event{Kind: core.EventConnected, Session: sess})
	c.OnEvent(core.Event{Kind: core.EventNote, Session: sess, Text: "hello"})
	c.OnEvent(core.Event{Kind: core.EventRoomCreated, Session: sess, Room: &core.Room{Name: "Test Room", HostName: "Alice"}})
	c.OnEvent(core.Event{Kind: core.EventUnrecognized, Session: sess, Raw: "zzz -q 1"})
	c.OnEvent(core.Event{Kind: core.EventDisconnected, Session: sess})

	s := out.String()
	for _, want := range []string{
		"Got one 10.0.0.1:5555",
		"hello",
		"10.0.0.1:5555 requests new room",
		"RoomName: Test Room",
		"HostName: Alice",
		"zzz -q 1",
		"10.0.0.1:5555 goes out",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("output missing %q:\n%s", want, s)
		}
	}
}
