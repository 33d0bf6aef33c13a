package http

import (
	"encoding/json"
	"errors"
	"net"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/transport/tcp"
)

// WSHandler upgrades HTTP connections and attaches them to the relay as sessions.
// Text frames carry the same line protocol as the TCP listener.
type WSHandler struct {
	relay *tcp.Server
	log   *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(relay *tcp.Server, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{relay: relay, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if !h.relay.Listening() {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(stdhttp.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "relay is not listening"})
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	ctx := r.Context()
	netConn := websocket.NetConn(ctx, conn, websocket.MessageText)
	ip := peerIP(r.RemoteAddr)

	sess, err := h.relay.Attach(netConn, ip)
	if err != nil {
		if errors.Is(err, core.ErrNotListening) {
			conn.Close(websocket.StatusTryAgainLater, "relay is not listening")
			return
		}
		h.log.Warn().Err(err).Msg("ws attach failed")
		conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	h.log.Debug().Str("session_id", sess.ID()).Str("remote", ip).Msg("ws session attached")

	// The request context must outlive the session; returning would cancel it.
	select {
	case <-sess.Done():
	case <-ctx.Done():
		sess.Close()
	}
}

// peerIP is the socket peer address; forwarding headers are not trusted.
func peerIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
