package tcp

import (
	"strconv"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
)

// Client command names.
const (
	CommandMsg     = "msg"
	CommandNewRoom = "newRoom"
	CommandRefresh = "refresh"
	CommandError   = "error"
)

// clientRoomCapacity is the fixed capacity of rooms announced by clients.
const clientRoomCapacity = 1

// Dispatch routes one decoded line from a session.
func (s *Server) Dispatch(sess *Session, cmd proto.Command, raw string) {
	s.emit(core.Event{Kind: core.EventReceived, Session: sess.Info(), Command: &cmd, Raw: raw})

	switch cmd.Name {
	case CommandMsg:
		s.handleMsg(sess, cmd, raw)
	case CommandNewRoom:
		s.handleNewRoom(sess, cmd, raw)
	case CommandRefresh:
		_ = s.SendRoomInfo(sess)
	default:
		sess.log.Info().Str("line", raw).Msg("unrecognized command")
		s.emit(core.Event{Kind: core.EventUnrecognized, Session: sess.Info(), Command: &cmd, Raw: raw})
	}
}

func (s *Server) handleMsg(sess *Session, cmd proto.Command, raw string) {
	text, ok := cmd.Get("m")
	if !ok {
		sess.log.Debug().Str("line", raw).Msg("msg without -m")
		return
	}
	sess.log.Info().Str("text", text).Msg("chat note")
	s.emit(core.Event{Kind: core.EventNote, Session: sess.Info(), Command: &cmd, Raw: raw, Text: text})
}

func (s *Server) handleNewRoom(sess *Session, cmd proto.Command, raw string) {
	room, err := roomFromCommand(sess, cmd)
	if err == nil {
		_, err = s.registry.NewRoom(room.HostAddress, room.HostPort, room.Name, room.HostName, room.Capacity)
	}
	if err != nil {
		sess.log.Warn().Err(err).Str("line", raw).Msg("room rejected")
		_ = s.Send(sess, proto.Encode(CommandError,
			proto.Opt("c", core.ErrorCode(err)),
			proto.Opt("m", err.Error()),
		))
		return
	}

	_ = s.SendRoomInfo(sess)

	sess.log.Info().
		Str("room_name", room.Name).
		Str("host_name", room.HostName).
		Int("host_port", room.HostPort).
		Msg("client requested new room")
	s.emit(core.Event{Kind: core.EventRoomCreated, Session: sess.Info(), Command: &cmd, Raw: raw, Room: &room})
}

func roomFromCommand(sess *Session, cmd proto.Command) (core.Room, error) {
	rawPort, ok := cmd.Get("p")
	if !ok {
		return core.Room{}, core.InvalidRoomSpec("newRoom requires -p <port>")
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return core.Room{}, core.InvalidRoomSpec("port " + strconv.Quote(rawPort) + " is not a number")
	}
	if port < 1 || port > 65535 {
		return core.Room{}, core.InvalidRoomSpec("port " + rawPort + " is out of range")
	}
	name, ok := cmd.Get("rn")
	if !ok {
		return core.Room{}, core.InvalidRoomSpec("newRoom requires -rn <room name>")
	}
	hostName, ok := cmd.Get("hn")
	if !ok {
		return core.Room{}, core.InvalidRoomSpec("newRoom requires -hn <host name>")
	}

	return core.Room{
		HostAddress: sess.RemoteIP(),
		HostPort:    port,
		Name:        name,
		HostName:    hostName,
		Capacity:    clientRoomCapacity,
	}, nil
}
