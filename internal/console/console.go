package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
	"github.com/vovakirdan/roomrelay/internal/transport/tcp"
)

// ErrExit is returned by Run when the operator typed exit.
var ErrExit = errors.New("console exit requested")

// Operator command names.
const (
	CommandStart = "start"
	CommandList  = "ls"
	CommandClear = "cls"
	CommandNoti  = "noti"
	CommandError = "error"
	CommandExit  = "exit"
)

const clearScreen = "\033[H\033[2J"

// Console interprets operator commands and renders server events to a screen.
type Console struct {
	server *tcp.Server
	out    io.Writer
	screen zerolog.Logger
	plain  zerolog.Logger
	log    *zerolog.Logger
}

// New builds a console that writes to out.
func New(server *tcp.Server, out io.Writer, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	out = zerolog.SyncWriter(out)

	stamped := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: time.TimeOnly,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
	}
	bare := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		PartsOrder: []string{zerolog.MessageFieldName},
	}
	l := logger.With().Str("component", "console").Logger()

	return &Console{
		server: server,
		out:    out,
		screen: zerolog.New(stamped).With().Timestamp().Logger(),
		plain:  zerolog.New(bare),
		log:    &l,
	}
}

func (c *Console) print(format string, args ...any) {
	c.screen.Log().Msgf(format, args...)
}

func (c *Console) printNoTime(format string, args ...any) {
	c.plain.Log().Msgf(format, args...)
}

// Run reads operator commands from in until exit, EOF, or ctx cancellation.
// It returns ErrExit after an exit command and nil on EOF.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read console input: %w", err)
			}
			return nil
		case line := <-lines:
			if !c.Execute(line) {
				return ErrExit
			}
		}
	}
}

// Execute runs one operator command. It returns false once the operator asked to exit.
func (c *Console) Execute(raw string) bool {
	cmd, err := proto.Parse(raw)
	if err != nil {
		c.print("Error: %v: %s", err, raw)
		return true
	}

	switch cmd.Name {
	case "":
	case CommandStart:
		c.start(cmd)
	case CommandError:
		c.print("Error: %s", raw)
	case CommandList:
		c.print("%d clients connected, %d rooms exist", c.server.NumClients(), c.server.Registry().Count())
	case CommandClear:
		_, _ = io.WriteString(c.out, clearScreen)
	case CommandNoti:
		msg, ok := cmd.Get("m")
		if !ok {
			return true
		}
		delivered := c.server.SendToAll(Notice(msg))
		c.log.Info().Str("text", msg).Int("delivered", delivered).Msg("notice broadcast")
		c.print("Notified to all clients: %s", msg)
	case CommandExit:
		c.server.Terminate()
		return false
	default:
		c.print("%s", raw)
	}
	return true
}

func (c *Console) start(cmd proto.Command) {
	raw, _ := cmd.Get("p")
	port, err := strconv.Atoi(raw)
	if err != nil || port < 0 || port > 65535 {
		c.print("Set the port with -p correctly")
		return
	}

	if err := c.server.Start(port); err != nil {
		if errors.Is(err, core.ErrAlreadyListening) {
			c.print("Server is already online")
			return
		}
		c.log.Error().Err(err).Int("port", port).Msg("start failed")
		c.print("Failed to start: %v", err)
	}
}

// Notice renders the line broadcast to clients for an operator notice.
func Notice(msg string) string {
	return CommandNoti + " -m " + proto.ForceQuote(msg)
}

// OnEvent renders server events to the screen.
func (c *Console) OnEvent(ev core.Event) {
	switch ev.Kind {
	case core.EventStarted:
		c.print("Server started on port: %d", ev.Port)
	case core.EventWaiting:
		c.print("Waiting for client access")
	case core.EventConnected:
		c.print("Got one %s", ev.Session.RemoteAddr)
	case core.EventDisconnected:
		c.print("%s goes out", ev.Session.RemoteAddr)
	case core.EventNote:
		c.print("%s", ev.Text)
	case core.EventRoomCreated:
		c.print("%s requests new room", ev.Session.RemoteAddr)
		if ev.Room != nil {
			c.printNoTime("RoomName: %s", ev.Room.Name)
			c.printNoTime("HostName: %s", ev.Room.HostName)
		}
	case core.EventUnrecognized:
		c.print("%s", ev.Raw)
	case core.EventStopped:
		c.print("Server stopped")
	}
}
