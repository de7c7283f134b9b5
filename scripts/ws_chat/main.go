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
	"strconv"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/clubchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket address")
	credential := flag.String("credential", "", "session token or signed token")
	flag.Parse()

	if *credential == "" {
		return errors.New("-credential is required")
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeJoin, Credential: *credential}); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	fmt.Printf("Connected to %s\n", *addr)
	fmt.Println("Type messages and press Enter to send. /pm <user id> <text> whispers. Ctrl+C to exit.")

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
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			case websocket.StatusPolicyViolation:
				log.Printf("server rejected the join")
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch env.Type {
		case proto.OutboundTypeInit:
			fmt.Printf("--- %d recent messages ---\n", len(env.Messages))
			for _, msg := range env.Messages {
				printClub(msg)
			}
		case proto.OutboundTypeNewMessage:
			msg, err := env.Club()
			if err != nil {
				log.Printf("unmarshal new_message: %v", err)
				continue
			}
			printClub(msg)
		case proto.OutboundTypePrivateMessage:
			msg, err := env.Private()
			if err != nil {
				log.Printf("unmarshal private_message: %v", err)
				continue
			}
			fmt.Printf("[%s] %s -> %s (whisper): %s\n",
				msg.CreatedAt.Local().Format("15:04"), msg.ProfileName, msg.RecipientProfileName, msg.Message)
		case proto.OutboundTypeSystem:
			fmt.Printf("* %s\n", env.Text())
		case proto.OutboundTypeOnlineUsers:
			fmt.Printf("* online: %v\n", env.Users)
		default:
			fmt.Printf("type=%s message=%s\n", env.Type, env.Message)
		}
	}
}

func printClub(msg proto.ClubMessage) {
	fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), msg.ProfileName, msg.Message)
}

// parseLine turns "/pm 42 hello" into a whisper and anything else into a
// broadcast.
func parseLine(line string) (proto.Inbound, error) {
	in := proto.Inbound{Type: proto.InboundTypeMessage, Body: line}
	rest, ok := strings.CutPrefix(line, "/pm ")
	if !ok {
		return in, nil
	}

	idText, body, _ := strings.Cut(strings.TrimSpace(rest), " ")
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil || id <= 0 {
		return in, fmt.Errorf("usage: /pm <user id> <text>")
	}
	in.Body = strings.TrimSpace(body)
	in.RecipientID = &id
	return in, nil
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

			in, err := parseLine(text)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := wsjson.Write(ctx, conn, in); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
