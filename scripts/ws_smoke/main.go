package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/clubchat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:4000/ws", "WebSocket address")
	credential := flag.String("credential", "", "session token or signed token")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *credential == "" {
		return errors.New("-credential is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(v proto.Inbound) error {
		if err := wsjson.Write(ctx, conn, v); err != nil {
			return fmt.Errorf("send %s: %w", v.Type, err)
		}
		return nil
	}

	if err := send(proto.Inbound{Type: proto.InboundTypeJoin, Credential: *credential}); err != nil {
		return err
	}

	joined := false
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			if websocket.CloseStatus(err) == websocket.StatusPolicyViolation {
				return errors.New("join rejected")
			}
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received: type=%s\n", env.Type)

		switch env.Type {
		case proto.OutboundTypeInit:
			fmt.Printf("Replay: %d messages\n", len(env.Messages))
		case proto.OutboundTypeSystem:
			fmt.Printf("System: %s\n", env.Text())
		case proto.OutboundTypeOnlineUsers:
			fmt.Printf("Online: %v\n", env.Users)
			if !joined {
				joined = true
				if err := send(proto.Inbound{Type: proto.InboundTypeMessage, Body: *text}); err != nil {
					return err
				}
			}
		case proto.OutboundTypeNewMessage:
			msg, err := env.Club()
			if err != nil {
				return fmt.Errorf("unmarshal new_message: %w", err)
			}
			fmt.Printf("Message: id=%d user=%s text=%q\n", msg.ID, msg.ProfileName, msg.Message)
			if msg.Message == *text {
				return nil
			}
		default:
			// keep looping for the echo
		}
	}
}
