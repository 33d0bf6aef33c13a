package tcp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
	"github.com/vovakirdan/roomrelay/internal/utils"
)

// Session is one live client connection and its read loop.
type Session struct {
	id       string
	conn     net.Conn
	remoteIP string
	server   *Server
	log      *zerolog.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
	reason    error
}

func newSession(server *Server, conn net.Conn, remoteIP string) *Session {
	id := utils.NewID()
	l := server.log.With().
		Str("session_id", id).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	return &Session{
		id:       id,
		conn:     conn,
		remoteIP: remoteIP,
		server:   server,
		log:      &l,
		closed:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// RemoteAddr returns the peer address as seen on the socket.
func (s *Session) RemoteAddr() string {
	return s.conn.RemoteAddr().String()
}

// RemoteIP returns the peer IP recorded as host address for rooms the client creates.
func (s *Session) RemoteIP() string {
	return s.remoteIP
}

// Info describes the session for events.
func (s *Session) Info() core.SessionInfo {
	return core.SessionInfo{
		ID:         s.id,
		RemoteAddr: s.RemoteAddr(),
		RemoteIP:   s.remoteIP,
	}
}

// Done is closed once the session has been torn down.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// serve emits both lifecycle events, so observers always see connected before disconnected.
// A session closed before serve runs was never announced and emits neither.
func (s *Session) serve() {
	select {
	case <-s.closed:
		return
	default:
	}

	s.log.Info().Msg("client connected")
	s.server.emit(core.Event{Kind: core.EventConnected, Session: s.Info()})

	if err := s.server.SendRoomInfo(s); err != nil {
		s.log.Warn().Err(err).Msg("initial room info not delivered")
	}

	s.closeWith(s.readLoop())

	ev := s.log.Info()
	if s.reason != nil && !errors.Is(s.reason, io.EOF) {
		ev = s.log.Warn().Err(s.reason)
	}
	ev.Msg("client disconnected")

	s.server.emit(core.Event{Kind: core.EventDisconnected, Session: s.Info(), Err: s.reason})
}

func (s *Session) readLoop() error {
	scanner := bufio.NewScanner(s.conn)
	limit := s.server.opts.MaxLineBytes
	scanner.Buffer(make([]byte, 0, min(4096, limit)), limit)

	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := proto.Parse(line)
		if err != nil {
			s.log.Warn().Err(err).Str("line", line).Msg("dropping malformed command")
			continue
		}
		s.server.Dispatch(s, cmd, line)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read: %v", core.ErrTransport, err)
	}
	return io.EOF
}

// Send writes one newline-terminated message. Concurrent calls never interleave.
// A write timeout is reported but leaves the session open; any other write error closes it.
func (s *Session) Send(message string) error {
	if !strings.HasSuffix(message, "\n") {
		message += "\n"
	}

	err := s.write(message)
	if err == nil || errors.Is(err, core.ErrSessionClosed) {
		return err
	}

	wrapped := fmt.Errorf("%w: write: %v", core.ErrTransport, err)
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		s.closeWith(wrapped)
	}
	return wrapped
}

func (s *Session) write(message string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	select {
	case <-s.closed:
		return &core.CoreError{Code: core.ErrCodeSessionClosed, Message: "session closed", Err: core.ErrSessionClosed}
	default:
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.server.opts.WriteTimeout)); err != nil {
		s.log.Debug().Err(err).Msg("set write deadline")
	}
	_, err := io.WriteString(s.conn, message)
	return err
}

// Close tears the session down. Safe to call more than once.
// The disconnected event follows from the session goroutine once its read loop unblocks.
func (s *Session) Close() {
	s.closeWith(nil)
}

// closeWith records the first close reason; serve reads it only after its own closeWith call.
func (s *Session) closeWith(reason error) {
	s.closeOnce.Do(func() {
		s.reason = reason
		close(s.closed)
		if err := s.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Debug().Err(err).Msg("close connection")
		}
		s.server.remove(s)
	})
}
