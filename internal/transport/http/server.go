package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/transport/tcp"
)

// NewServer builds the status HTTP server. journal may be nil when journaling is disabled.
func NewServer(relay *tcp.Server, journal store.Journal, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.StatusAddr,
		Handler:           NewHandler(relay, journal, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewHandler mounts the websocket gateway next to the gin status router.
// The gateway stays off gin: its response writer refuses to hijack once the upgrade header is written.
func NewHandler(relay *tcp.Server, journal store.Journal, logger *zerolog.Logger) stdhttp.Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(relay, logger))
	mux.Handle("/", NewRouter(relay, journal, logger))
	return mux
}

// NewRouter wires the status routes.
func NewRouter(relay *tcp.Server, journal store.Journal, logger *zerolog.Logger) *gin.Engine {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		logger.Warn().Err(err).Msg("set trusted proxies")
	}
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	status := NewStatusHandlers(relay, journal, logger)
	router.GET("/health", healthHandler)

	api := router.Group("/api")
	api.GET("/rooms", status.ListRooms)
	api.GET("/stats", status.Stats)
	api.GET("/journal", status.Journal)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
