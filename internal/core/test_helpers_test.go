package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/clubchat-server/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

// nextEvent returns the next queued event, whatever its kind.
func nextEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()

	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("no event received")
		return nil
	}
}

// noEvent asserts no event of kind arrives within a short window.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.After(150 * time.Millisecond)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

// drain discards everything currently queued.
func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// memStore is an in-memory Directory, MessageStore and History.
type memStore struct {
	mu      sync.Mutex
	users   map[int64]string
	club    []*store.ClubMessage
	private []*store.PrivateMessage
	nextID  int64

	appendErr   error
	historyErr  error
	afterAppend func()
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]string)}
}

func (m *memStore) addUser(id int64, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = name
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, store.ErrNotFound)
	}
	return &store.User{ID: id, ProfileName: name}, nil
}

func (m *memStore) AppendClubMessage(_ context.Context, userID int64, body string) (*store.ClubMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.nextID++
	msg := &store.ClubMessage{
		ID:          m.nextID,
		UserID:      userID,
		ProfileName: m.users[userID],
		Body:        body,
		CreatedAt:   time.Now().UTC(),
	}
	m.club = append(m.club, msg)
	if m.afterAppend != nil {
		m.afterAppend()
	}
	return msg, nil
}

func (m *memStore) AppendPrivateMessage(_ context.Context, senderID, recipientID int64, body string) (*store.PrivateMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return nil, m.appendErr
	}
	m.nextID++
	msg := &store.PrivateMessage{
		ID:                   m.nextID,
		SenderID:             senderID,
		SenderProfileName:    m.users[senderID],
		RecipientID:          recipientID,
		RecipientProfileName: m.users[recipientID],
		Body:                 body,
		CreatedAt:            time.Now().UTC(),
	}
	m.private = append(m.private, msg)
	if m.afterAppend != nil {
		m.afterAppend()
	}
	return msg, nil
}

func (m *memStore) RecentClubMessages(_ context.Context, limit int) ([]*store.ClubMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	start := max(len(m.club)-limit, 0)
	out := make([]*store.ClubMessage, len(m.club)-start)
	copy(out, m.club[start:])
	return out, nil
}

func (m *memStore) failAppends(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendErr = err
}

// onAppend runs fn after every successful append, while the store is locked.
func (m *memStore) onAppend(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterAppend = fn
}

func (m *memStore) privateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.private)
}

func (m *memStore) clubCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.club)
}

// mapResolver treats "token-<id>" style credentials as a fixed lookup table.
type mapResolver map[string]Identity

func (r mapResolver) Resolve(_ context.Context, credential string) (Identity, error) {
	id, ok := r[credential]
	if !ok {
		return Identity{}, fmt.Errorf("credential: %w", ErrInvalidCredential)
	}
	return id, nil
}

type harness struct {
	hub   *Hub
	chat  *Chat
	store *memStore
	stop  context.CancelFunc
}

type harnessOption func(*RelayConfig)

func withCooldown(d time.Duration) harnessOption {
	return func(c *RelayConfig) { c.Cooldown = NewCooldown(d) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	st := newMemStore()
	resolver := mapResolver{}
	for id, name := range map[int64]string{1: "Vito#1", 2: "Sonny#2", 3: "Fredo#3", 4: "Tom#4"} {
		st.addUser(id, name)
		resolver[fmt.Sprintf("token-%d", id)] = Identity{UserID: id, DisplayName: name}
	}

	cfg := RelayConfig{MaxBodyRunes: 500}
	for _, opt := range opts {
		opt(&cfg)
	}

	hub := NewHub(nil)
	go hub.Run(ctx)

	return &harness{
		hub:   hub,
		store: st,
		stop:  cancel,
		chat: &Chat{
			Hub:          hub,
			Relay:        NewRelay(hub, st, st, cfg, nil),
			Resolver:     resolver,
			History:      st,
			HistoryLimit: DefaultHistoryLimit,
		},
	}
}

// join connects a new client for the user and waits for its init.
func (h *harness) join(t *testing.T, userID int64) (*Session, *Client) {
	t.Helper()

	c := NewClient(fmt.Sprintf("conn-%d-%d", userID, time.Now().UnixNano()), 64)
	s := h.chat.NewSession(c)
	require.NoError(t, s.Handle(context.Background(), Command{
		Kind:       CommandJoin,
		Credential: fmt.Sprintf("token-%d", userID),
	}))
	mustEvent(t, c.Events, EventOnlineUsers)
	return s, c
}

func (h *harness) say(t *testing.T, s *Session, body string, recipient ...int64) {
	t.Helper()

	cmd := Command{Kind: CommandSendMessage, Body: body}
	if len(recipient) > 0 {
		cmd.RecipientID = &recipient[0]
	}
	require.NoError(t, s.Handle(context.Background(), cmd))
}
