package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/coder/websocket"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
)

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket gateway address")
	port := flag.Int("port", 7777, "port to advertise for the new room")
	room := flag.String("room", "smoke room", "room name")
	host := flag.String("host", "smoke", "host name")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	readRooms := func(stage string) []core.Room {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Fatalf("%s: read: %v", stage, err)
		}
		rooms, err := core.ParseRoomInfo(string(data))
		if err != nil {
			log.Fatalf("%s: unexpected payload %q: %v", stage, data, err)
		}
		return rooms
	}

	initial := readRooms("initial snapshot")
	fmt.Printf("Initial snapshot: %d rooms\n", len(initial))

	line := proto.Encode("newRoom",
		proto.Opt("p", fmt.Sprint(*port)),
		proto.Opt("rn", *room),
		proto.Opt("hn", *host),
	)
	if err := conn.Write(ctx, websocket.MessageText, []byte(line+"\n")); err != nil {
		log.Fatalf("send: %v", err)
	}

	rooms := readRooms("newRoom reply")
	fmt.Printf("After newRoom: %d rooms\n", len(rooms))
	for _, r := range rooms {
		fmt.Printf("  %s:%d %q hosted by %q (capacity %d)\n", r.HostAddress, r.HostPort, r.Name, r.HostName, r.Capacity)
	}
	if len(rooms) != len(initial)+1 {
		log.Fatalf("expected %d rooms after newRoom, got %d", len(initial)+1, len(rooms))
	}
}
