package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/config"
	"github.com/vovakirdan/roomrelay/internal/console"
	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/store"
	"github.com/vovakirdan/roomrelay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/roomrelay/internal/transport/http"
	"github.com/vovakirdan/roomrelay/internal/transport/tcp"
)

// App wires together core, transport, console, and journal.
type App struct {
	cfg      config.Config
	registry *core.Registry
	relay    *tcp.Server
	status   *stdhttp.Server
	console  *console.Console
	journal  store.Journal
	recorder *store.Recorder
	log      *zerolog.Logger

	in  io.Reader
	out io.Writer
}

// Option customizes App construction.
type Option func(*App)

// WithConsoleIO sets the operator console input and output.
func WithConsoleIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.in = in
		a.out = out
	}
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	a := &App{cfg: cfg, log: logger}
	for _, opt := range opts {
		opt(a)
	}

	a.registry = core.NewRegistry()
	for _, seed := range cfg.Rooms {
		if _, err := a.registry.NewRoom(seed.Address, seed.Port, seed.Name, seed.Host, seed.Capacity); err != nil {
			return nil, fmt.Errorf("seed room %q: %w", seed.Name, err)
		}
	}
	if n := a.registry.Count(); n > 0 {
		logger.Info().Int("rooms", n).Msg("seeded rooms")
	}

	a.relay = tcp.NewServer(a.registry, tcp.Options{
		MaxLineBytes: cfg.MaxLineBytes,
		WriteTimeout: cfg.WriteTimeout,
	}, logger)

	if cfg.DatabasePath != "" {
		st, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("init journal: %w", err)
		}
		logger.Info().Str("db_path", cfg.DatabasePath).Msg("journal initialized")
		a.journal = st
		a.recorder = store.NewRecorder(st, logger)
		a.relay.Subscribe(a.recorder)
	}

	if cfg.Console && a.in != nil && a.out != nil {
		a.console = console.New(a.relay, a.out, logger)
		a.relay.Subscribe(a.console)
	}

	if a.console == nil && !a.cfg.AutoStart {
		logger.Info().Int("port", cfg.Port).Msg("no operator console, starting relay automatically")
		a.cfg.AutoStart = true
	}

	if cfg.StatusAddr != "" {
		a.status = transporthttp.NewServer(a.relay, a.journal, cfg, logger)
	}

	return a, nil
}

// Relay returns the line-protocol server.
func (a *App) Relay() *tcp.Server {
	return a.relay
}

// Run starts the configured components and blocks until ctx is cancelled,
// the operator exits the console, or the status server fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.cleanup()

	if a.cfg.AutoStart {
		if err := a.relay.Start(a.cfg.Port); err != nil {
			return fmt.Errorf("start relay: %w", err)
		}
	}

	errCh := make(chan error, 2)

	if a.status != nil {
		go func() {
			a.log.Info().Str("addr", a.status.Addr).Msg("status server listening")
			if err := a.status.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				errCh <- fmt.Errorf("status server: %w", err)
			}
		}()
	}

	if a.console != nil {
		go func() {
			err := a.console.Run(ctx, a.in)
			if errors.Is(err, console.ErrExit) {
				errCh <- nil
				return
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				a.log.Warn().Err(err).Msg("console stopped")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	a.relay.Terminate()

	if a.status != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancelShutdown()
		a.log.Info().Msg("shutting down status server")
		if err := a.status.Shutdown(shutdownCtx); err != nil && runErr == nil {
			runErr = fmt.Errorf("shutdown status server: %w", err)
		}
	}

	return runErr
}

// cleanup flushes the journal and closes the database.
func (a *App) cleanup() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close journal")
		} else {
			a.log.Info().Msg("journal closed")
		}
	}
}
