package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/config"
	"github.com/vovakirdan/clubchat-server/internal/core"
	"github.com/vovakirdan/clubchat-server/internal/proto"
	"github.com/vovakirdan/clubchat-server/internal/utils"
)

// SessionCookie holds the game session id; it is used when join carries no
// credential.
const SessionCookie = "session-token"

// WSHandler upgrades HTTP connections and bridges them to core.Session.
type WSHandler struct {
	chat *core.Chat
	cfg  config.Config
	log  *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(chat *core.Chat, cfg config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{chat: chat, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.cfg.AllowedOrigins) == 0 {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = h.cfg.AllowedOrigins
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewID(), h.cfg.Chat.OutboundBuffer)
	session := h.chat.NewSession(client)
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		session.SetFallbackCredential(cookie.Value)
	}
	defer session.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readErr := make(chan error, 1)
	go func() {
		err := h.readLoop(ctx, conn, session)
		// closing the client lets the writer flush pending notices and stop
		client.Close()
		readErr <- err
	}()

	writeErr := h.writeLoop(ctx, conn, client)
	cancel()
	rerr := <-readErr

	status, reason := h.closeStatus(client, rerr, writeErr)
	conn.Close(status, reason)
}

func (h *WSHandler) closeStatus(client *core.Client, readErr, writeErr error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(readErr, core.ErrHandshakeFailed):
		return websocket.StatusPolicyViolation, "join failed"
	case writeErr != nil && !errors.Is(writeErr, context.Canceled):
		h.log.Warn().Err(writeErr).Str("conn_id", client.ID).Msg("ws connection closed with error")
		return websocket.StatusInternalError, "write failed"
	}

	if readErr != nil && !errors.Is(readErr, context.Canceled) {
		switch websocket.CloseStatus(readErr) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		case -1:
			h.log.Debug().Err(readErr).Str("conn_id", client.ID).Msg("ws read ended")
		default:
			h.log.Debug().Err(readErr).Str("conn_id", client.ID).Msg("ws closed by peer")
		}
	}
	return websocket.StatusNormalClosure, "closing"
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	connID := session.Client().ID
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			h.log.Debug().Str("conn_id", connID).Msg("dropping binary frame")
			continue
		}

		req, err := proto.Decode(data)
		if err != nil {
			h.log.Debug().Err(err).Str("conn_id", connID).Msg("dropping malformed frame")
			continue
		}

		cmd, ok := commandFromRequest(req)
		if !ok {
			continue
		}
		if err := session.Handle(ctx, cmd); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	var pings <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return fmt.Errorf("write ws event: %w", err)
			}
		case <-client.Done():
			return h.flush(ctx, conn, client)
		case <-pings:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.PingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// flush writes whatever was queued before the client closed.
func (h *WSHandler) flush(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event := <-client.Events:
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				return fmt.Errorf("flush ws event: %w", err)
			}
		default:
			return nil
		}
	}
}
