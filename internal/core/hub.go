package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/clubchat-server/internal/store"
)

// Hub owns the Presence Table. Every read or mutation of presence runs as a
// turn on the hub goroutine, so turns never interleave.
type Hub struct {
	presence *Presence
	turns    chan func()
	stopped  chan struct{}
	observer RosterObserver
	log      *zerolog.Logger
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithRosterObserver registers an observer for roster changes.
func WithRosterObserver(o RosterObserver) HubOption {
	return func(h *Hub) { h.observer = o }
}

// NewHub creates a new chat hub instance. Run must be started before use.
func NewHub(logger *zerolog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	h := &Hub{
		presence: NewPresence(),
		turns:    make(chan func(), 64),
		stopped:  make(chan struct{}),
		log:      logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run processes turns until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case fn := <-h.turns:
			h.runTurn(fn)
		case <-ctx.Done():
			for _, c := range h.presence.BroadcastHandles() {
				c.Close()
			}
			h.log.Info().Int("online", h.presence.Len()).Msg("hub stopped")
			return
		}
	}
}

func (h *Hub) runTurn(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().Interface("panic", r).Msg("hub turn panicked")
		}
	}()
	fn()
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.stopped
}

// do runs fn on the hub goroutine and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	turn := func() {
		defer close(done)
		fn()
	}

	select {
	case h.turns <- turn:
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.stopped:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join registers c for id. The client is held in replay mode until
// CompleteJoin: deliveries are queued in its backlog instead of sent.
// An older connection of the same user is notified and closed.
func (h *Hub) Join(ctx context.Context, c *Client, id Identity) error {
	var joinErr error
	err := h.do(ctx, func() {
		if !c.bind(id) {
			joinErr = ErrConnectionClosed
			return
		}
		c.replaying = true
		if prev := h.presence.Register(id.UserID, c); prev != nil {
			c.announced = prev.announced
			prev.replaying = false
			prev.backlog = nil
			prev.Send(systemEvent(NoticeReplaced))
			prev.Close()
			h.log.Info().
				Int64("user_id", id.UserID).
				Str("conn_id", c.ID).
				Str("replaced_conn_id", prev.ID).
				Msg("connection replaced by newer join")
		}
	})
	if err != nil {
		return err
	}
	return joinErr
}

// CompleteJoin sends the history replay to c, flushes anything queued while
// the history was loading, then announces c to everyone. It is a no-op when c
// closed or was replaced in the meantime.
func (h *Hub) CompleteJoin(ctx context.Context, c *Client, history []*store.ClubMessage) error {
	if history == nil {
		history = []*store.ClubMessage{}
	}
	return h.do(ctx, func() {
		id, ok := c.Identity()
		if !ok {
			return
		}
		if cur, ok := h.presence.Lookup(id.UserID); !ok || cur != c {
			return
		}

		c.replaying = false
		c.announced = true
		c.Send(&Event{Kind: EventInit, History: history})

		replayed := make(map[int64]struct{}, len(history))
		for _, m := range history {
			replayed[m.ID] = struct{}{}
		}
		for _, ev := range c.backlog {
			if ev.Kind == EventNewMessage && ev.Club != nil {
				if _, dup := replayed[ev.Club.ID]; dup {
					continue
				}
			}
			h.deliver(c, ev)
		}
		c.backlog = nil

		h.broadcast(systemEvent(fmt.Sprintf(noticeJoinedFmt, id.DisplayName)))
		h.rosterChanged()
		h.log.Info().Int64("user_id", id.UserID).Str("conn_id", c.ID).Int("online", h.presence.Len()).Msg("user joined")
	})
}

// Leave tears c down. A connection that still owns its presence entry is
// removed and the roster rebroadcast; the departure is announced only if the
// user's join was. A stale or never-joined connection leaves silently.
func (h *Hub) Leave(ctx context.Context, c *Client) error {
	c.Close()
	return h.do(ctx, func() {
		id := c.identity
		if id.UserID == 0 || !h.presence.Unregister(id.UserID, c) {
			return
		}
		announced := c.announced
		c.replaying = false
		c.backlog = nil
		if announced {
			h.broadcast(systemEvent(fmt.Sprintf(noticeLeftFmt, id.DisplayName)))
		}
		h.rosterChanged()
		h.log.Info().
			Int64("user_id", id.UserID).
			Str("conn_id", c.ID).
			Bool("announced", announced).
			Int("online", h.presence.Len()).
			Msg("user left")
	})
}

// IsOnline reports whether userID currently has a joined connection.
func (h *Hub) IsOnline(ctx context.Context, userID int64) (bool, error) {
	var online bool
	err := h.do(ctx, func() {
		online = h.presence.IsOnline(userID)
	})
	return online, err
}

// Online returns the current roster.
func (h *Hub) Online(ctx context.Context) ([]int64, error) {
	var users []int64
	err := h.do(ctx, func() {
		users = h.presence.Snapshot()
	})
	return users, err
}

// Broadcast delivers a persisted club message to every joined connection.
func (h *Hub) Broadcast(ctx context.Context, msg *store.ClubMessage) error {
	ev := &Event{Kind: EventNewMessage, Club: msg}
	return h.do(ctx, func() {
		h.broadcast(ev)
	})
}

// DeliverPrivate delivers a persisted private message to the recipient, if
// still online, and echoes it to the sending connection.
func (h *Hub) DeliverPrivate(ctx context.Context, sender *Client, msg *store.PrivateMessage) error {
	ev := &Event{Kind: EventPrivateMessage, Private: msg}
	return h.do(ctx, func() {
		if rc, ok := h.presence.Lookup(msg.RecipientID); ok && rc != sender {
			h.deliver(rc, ev)
		}
		h.deliver(sender, ev)
	})
}

// broadcast must run inside a turn.
func (h *Hub) broadcast(ev *Event) {
	for _, c := range h.presence.BroadcastHandles() {
		h.deliver(c, ev)
	}
}

// deliver must run inside a turn. Closed or slow clients are skipped.
func (h *Hub) deliver(c *Client, ev *Event) {
	if c.State() == StateClosed {
		return
	}
	if c.replaying {
		c.backlog = append(c.backlog, ev)
		return
	}
	if !c.Send(ev) {
		h.log.Warn().Str("conn_id", c.ID).Int64("user_id", c.UserID()).Msg("dropping event for slow consumer")
	}
}

// rosterChanged must run inside a turn.
func (h *Hub) rosterChanged() {
	users := h.presence.Snapshot()
	h.broadcast(&Event{Kind: EventOnlineUsers, Users: users})
	if h.observer != nil {
		h.observer.RosterChanged(users)
	}
}
