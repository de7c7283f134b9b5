package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/auth"
	"github.com/vovakirdan/clubchat-server/internal/config"
	"github.com/vovakirdan/clubchat-server/internal/core"
	"github.com/vovakirdan/clubchat-server/internal/proto"
	"github.com/vovakirdan/clubchat-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store *sqlite.SQLiteStore
	hub   *core.Hub
	cfg   config.Config
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Addr = ":0"
	cfg.ReadHeaderTimeout = time.Second
	cfg.ShutdownTimeout = time.Second
	cfg.PingInterval = 0
	cfg.Chat.MessageCooldown = 0
	return cfg
}

// startTestServer runs the full chat stack over an in-memory sqlite store.
// A nil resolver resolves session tokens from the store.
func startTestServer(t *testing.T, cfg config.Config, resolver core.IdentityResolver) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	if resolver == nil {
		resolver = auth.NewSessionResolver(st, cfg.Auth.SessionTTL)
	}

	disabledLogger := zerolog.Nop()

	hub := core.NewHub(&disabledLogger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	chat := &core.Chat{
		Hub: hub,
		Relay: core.NewRelay(hub, st, st, core.RelayConfig{
			Cooldown:     core.NewCooldown(cfg.Chat.MessageCooldown),
			MaxBodyRunes: cfg.Chat.MaxBodyRunes,
		}, &disabledLogger),
		Resolver:     resolver,
		History:      st,
		HistoryLimit: cfg.Chat.HistoryLimit,
		Log:          &disabledLogger,
	}

	server := NewServer(chat, cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, hub: hub, cfg: cfg}
}

// addUser creates a user and returns its id and a session credential.
func (e *testEnv) addUser(t *testing.T, name string) (int64, string) {
	t.Helper()

	ctx := context.Background()
	user, err := e.store.CreateUser(ctx, name)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := auth.IssueSession(ctx, e.store, user.ID)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return user.ID, sess.ID
}

func (e *testEnv) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws"
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// join dials, joins with credential and waits for the roster that follows init.
func (e *testEnv) join(t *testing.T, credential string) (*websocket.Conn, proto.Envelope) {
	t.Helper()

	conn := e.dial(t, nil)
	send(t, conn, proto.Inbound{Type: proto.InboundTypeJoin, Credential: credential})
	initEnv := readUntil(t, conn, proto.OutboundTypeInit)
	readUntil(t, conn, proto.OutboundTypeOnlineUsers)
	return conn, initEnv
}

func send(t *testing.T, conn *websocket.Conn, in proto.Inbound) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("send %s: %v", in.Type, err)
	}
}

// readUntil skips payloads until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) proto.Envelope {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if env.Type == typ {
			return env
		}
	}
}

// expectSilence asserts that no payload of typ arrives within a short window.
// A read deadline closes the connection, so call it last.
func expectSilence(t *testing.T, conn *websocket.Conn, typ string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	for {
		var env proto.Envelope
		if err := wsjson.Read(ctx, conn, &env); err != nil {
			return
		}
		if env.Type == typ {
			t.Fatalf("unexpected %s payload: %s", typ, env.Message)
		}
	}
}
