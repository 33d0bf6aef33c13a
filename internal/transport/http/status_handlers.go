package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/transport/tcp"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 500
)

// StatusHandlers serves read-only views of the relay.
type StatusHandlers struct {
	relay   *tcp.Server
	journal store.Journal
	log     *zerolog.Logger
}

// NewStatusHandlers creates status handlers. journal may be nil.
func NewStatusHandlers(relay *tcp.Server, journal store.Journal, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		relay:   relay,
		journal: journal,
		log:     logger,
	}
}

// ErrorResponse represents an error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RoomsResponse lists rooms in registry order.
type RoomsResponse struct {
	Rooms []core.Room `json:"rooms"`
}

// StatsResponse reports the relay state.
type StatsResponse struct {
	Listening bool   `json:"listening"`
	Addr      string `json:"addr,omitempty"`
	Clients   int    `json:"clients"`
	Rooms     int    `json:"rooms"`
}

// JournalResponse lists journal entries, newest first.
type JournalResponse struct {
	Enabled bool           `json:"enabled"`
	Entries []*store.Entry `json:"entries"`
}

// ListRooms returns the registry snapshot.
// GET /api/rooms
func (h *StatusHandlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, RoomsResponse{Rooms: h.relay.Registry().Snapshot()})
}

// Stats returns client and room counts.
// GET /api/stats
func (h *StatusHandlers) Stats(c *gin.Context) {
	resp := StatsResponse{
		Listening: h.relay.Listening(),
		Clients:   h.relay.NumClients(),
		Rooms:     h.relay.Registry().Count(),
	}
	if addr := h.relay.Addr(); addr != nil {
		resp.Addr = addr.String()
	}
	c.JSON(http.StatusOK, resp)
}

// Journal returns recent journal entries.
// GET /api/journal?limit=n
func (h *StatusHandlers) Journal(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusOK, JournalResponse{Enabled: false, Entries: []*store.Entry{}})
		return
	}

	limit := defaultJournalLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxJournalLimit)
	}

	entries, err := h.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read journal")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, JournalResponse{Enabled: true, Entries: entries})
}
