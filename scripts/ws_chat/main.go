package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"

	"github.com/vovakirdan/roomrelay/internal/core"
	"github.com/vovakirdan/roomrelay/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket gateway address")
	flag.Parse()

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println(`Type commands such as: newRoom -p 7777 -rn "my room" -hn me | refresh | msg -m hello. Ctrl+C to exit.`)

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn)

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}
		render(string(data))
	}
}

func render(payload string) {
	if strings.HasPrefix(payload, core.CommandRoomInfo) {
		rooms, err := core.ParseRoomInfo(payload)
		if err == nil {
			fmt.Printf("%d rooms:\n", len(rooms))
			for _, r := range rooms {
				fmt.Printf("  %-20s host=%-12s %s:%d capacity=%d\n", r.Name, r.HostName, r.HostAddress, r.HostPort, r.Capacity)
			}
			return
		}
		log.Printf("bad room info: %v", err)
	}

	for _, line := range strings.Split(strings.TrimRight(payload, "\n"), "\n") {
		cmd, err := proto.Parse(line)
		if err != nil {
			fmt.Println(line)
			continue
		}
		switch cmd.Name {
		case "noti":
			msg, _ := cmd.Get("m")
			fmt.Printf("[notice] %s\n", msg)
		case "error":
			code, _ := cmd.Get("c")
			msg, _ := cmd.Get("m")
			fmt.Printf("[error %s] %s\n", code, msg)
		default:
			fmt.Println(line)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if _, err := proto.Parse(text); err != nil {
				log.Printf("not sent: %v", err)
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, []byte(text+"\n")); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
