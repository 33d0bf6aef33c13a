package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vovakirdan/roomrelay/internal/proto"
)

// Wire names for the room snapshot payload.
const (
	CommandRoomInfo = "roomInfo"
	CommandRoom     = "room"
)

// EncodeRoomInfo renders rooms as a roomInfo header line followed by one line per room.
func EncodeRoomInfo(rooms []Room) string {
	var b strings.Builder
	b.WriteString(proto.Encode(CommandRoomInfo, proto.Opt("n", strconv.Itoa(len(rooms)))))
	for _, room := range rooms {
		b.WriteByte('\n')
		b.WriteString(proto.Encode(CommandRoom,
			proto.Opt("a", room.HostAddress),
			proto.Opt("p", strconv.Itoa(room.HostPort)),
			proto.Opt("rn", room.Name),
			proto.Opt("hn", room.HostName),
			proto.Opt("c", strconv.Itoa(room.Capacity)),
		))
	}
	return b.String()
}

// ParseRoomInfo decodes a payload produced by EncodeRoomInfo.
func ParseRoomInfo(payload string) ([]Room, error) {
	lines := strings.Split(strings.TrimRight(payload, "\r\n"), "\n")

	header, err := proto.Parse(strings.TrimSuffix(lines[0], "\r"))
	if err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if header.Name != CommandRoomInfo {
		return nil, fmt.Errorf("%w: unexpected header %q", proto.ErrMalformedCommand, header.Name)
	}
	count, err := intOption(header, "n")
	if err != nil {
		return nil, err
	}
	if count != len(lines)-1 {
		return nil, fmt.Errorf("%w: header announces %d rooms, got %d", proto.ErrMalformedCommand, count, len(lines)-1)
	}

	rooms := make([]Room, 0, count)
	for _, line := range lines[1:] {
		cmd, err := proto.Parse(strings.TrimSuffix(line, "\r"))
		if err != nil {
			return nil, fmt.Errorf("parse room: %w", err)
		}
		if cmd.Name != CommandRoom {
			return nil, fmt.Errorf("%w: unexpected record %q", proto.ErrMalformedCommand, cmd.Name)
		}
		port, err := intOption(cmd, "p")
		if err != nil {
			return nil, err
		}
		capacity, err := intOption(cmd, "c")
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, Room{
			HostAddress: cmd.Options["a"],
			HostPort:    port,
			Name:        cmd.Options["rn"],
			HostName:    cmd.Options["hn"],
			Capacity:    capacity,
		})
	}

	return rooms, nil
}

func intOption(cmd proto.Command, key string) (int, error) {
	raw, ok := cmd.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s missing -%s", proto.ErrMalformedCommand, cmd.Name, key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s -%s %q is not a number", proto.ErrMalformedCommand, cmd.Name, key, raw)
	}
	return n, nil
}
