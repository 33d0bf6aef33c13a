package tcp

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/core"
)

const (
	defaultMaxLineBytes = 64 * 1024
	defaultWriteTimeout = 5 * time.Second

	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Options tunes session behavior.
type Options struct {
	// MaxLineBytes bounds a single inbound line.
	MaxLineBytes int
	// WriteTimeout bounds a single outbound message write.
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = defaultMaxLineBytes
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	return o
}

// Server accepts line-protocol clients and relays their commands to the room registry.
type Server struct {
	registry  *core.Registry
	opts      Options
	log       *zerolog.Logger
	observers core.Observers

	mu         sync.Mutex
	listener   net.Listener
	acceptDone chan struct{}
	sessions   map[string]*Session
}

// NewServer constructs a stopped server.
func NewServer(registry *core.Registry, opts Options, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "tcp").Logger()
	return &Server{
		registry: registry,
		opts:     opts.withDefaults(),
		log:      &l,
		sessions: make(map[string]*Session),
	}
}

// Registry returns the room registry the server dispatches to.
func (s *Server) Registry() *core.Registry {
	return s.registry
}

// Subscribe registers an observer for server events and returns its cancel func.
func (s *Server) Subscribe(obs core.Observer) func() {
	return s.observers.Subscribe(obs)
}

func (s *Server) emit(ev core.Event) {
	s.observers.Emit(ev)
}

// Start binds all interfaces on port and starts accepting clients.
func (s *Server) Start(port int) error {
	return s.StartAddr(fmt.Sprintf(":%d", port))
}

// StartAddr binds addr and starts accepting clients.
// It returns ErrAlreadyListening, leaving the running listener untouched, if the server is already up.
func (s *Server) StartAddr(addr string) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return &core.CoreError{
			Code:    core.ErrCodeAlreadyListening,
			Message: "server is already online",
			Err:     core.ErrAlreadyListening,
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	done := make(chan struct{})
	s.listener = ln
	s.acceptDone = done
	s.mu.Unlock()

	port := 0
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}
	s.log.Info().Str("addr", ln.Addr().String()).Msg("server started")
	s.emit(core.Event{Kind: core.EventStarted, Port: port})

	go s.acceptLoop(ln, done)
	return nil
}

// Addr returns the bound listener address, or nil while stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listening reports whether the server is accepting clients.
func (s *Server) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

func (s *Server) acceptLoop(ln net.Listener, done chan struct{}) {
	defer close(done)

	var backoff time.Duration
	for {
		s.emit(core.Event{Kind: core.EventWaiting})

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if backoff == 0 {
				backoff = minAcceptBackoff
			} else if backoff *= 2; backoff > maxAcceptBackoff {
				backoff = maxAcceptBackoff
			}
			s.log.Error().Err(err).Dur("retry_in", backoff).Msg("accept failed")
			time.Sleep(backoff)
			continue
		}
		backoff = 0

		if _, err := s.attach(conn, remoteIP(conn.RemoteAddr()), ln); err != nil {
			s.log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("dropping connection")
			_ = conn.Close()
		}
	}
}

// Attach adopts an established stream connection as a client session.
// remoteIP is recorded as the host address of rooms the client creates.
func (s *Server) Attach(conn net.Conn, remoteIP string) (*Session, error) {
	return s.attach(conn, remoteIP, nil)
}

func (s *Server) attach(conn net.Conn, ip string, from net.Listener) (*Session, error) {
	s.mu.Lock()
	if s.listener == nil || (from != nil && s.listener != from) {
		s.mu.Unlock()
		return nil, &core.CoreError{
			Code:    core.ErrCodeNotListening,
			Message: "server is not listening",
			Err:     core.ErrNotListening,
		}
	}
	sess := newSession(s, conn, ip)
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	go sess.serve()
	return sess, nil
}

// remove drops a session from the live set. It reports whether the session was present.
func (s *Server) remove(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.sessions[sess.id]; !ok || cur != sess {
		return false
	}
	delete(s.sessions, sess.id)
	return true
}

// Sessions returns a snapshot of the live sessions.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// NumClients returns the number of live sessions.
func (s *Server) NumClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Send delivers a message to one session.
func (s *Server) Send(sess *Session, message string) error {
	if err := sess.Send(message); err != nil {
		sess.log.Warn().Err(err).Msg("send failed")
		return err
	}
	return nil
}

// SendToAll delivers a message to every live session and returns how many writes succeeded.
// Sessions that fail or disconnect during the broadcast are skipped.
func (s *Server) SendToAll(message string) int {
	delivered := 0
	for _, sess := range s.Sessions() {
		if err := s.Send(sess, message); err != nil {
			continue
		}
		delivered++
	}
	return delivered
}

// SendRoomInfo sends the current registry snapshot to one session.
func (s *Server) SendRoomInfo(sess *Session) error {
	return s.Send(sess, s.registry.SerializeAll())
}

// Terminate stops accepting, closes every session, and returns to the stopped state.
// It returns once the accept loop has exited. Calling it while stopped is a no-op.
func (s *Server) Terminate() {
	s.mu.Lock()
	ln := s.listener
	if ln == nil {
		s.mu.Unlock()
		return
	}
	done := s.acceptDone
	sessions := s.sessions
	s.listener = nil
	s.acceptDone = nil
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	if err := ln.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close listener")
	}
	<-done

	for _, sess := range sessions {
		sess.Close()
	}

	s.log.Info().Int("closed_sessions", len(sessions)).Msg("server stopped")
	s.emit(core.Event{Kind: core.EventStopped})
}

func remoteIP(addr net.Addr) string {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.IP.String()
	case nil:
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
