package core

import "github.com/vovakirdan/clubchat-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventInit delivers the history replay right after a join.
	EventInit EventKind = iota
	// EventNewMessage delivers a broadcast message.
	EventNewMessage
	// EventPrivateMessage delivers a private message to its sender or recipient.
	EventPrivateMessage
	// EventSystem carries a notice or an error text.
	EventSystem
	// EventOnlineUsers carries the full roster.
	EventOnlineUsers
)

// Event is sent to clients to describe what happened in the system.
// Events are shared between recipients and must not be mutated.
type Event struct {
	Kind    EventKind
	Text    string
	Club    *store.ClubMessage
	History []*store.ClubMessage
	Private *store.PrivateMessage
	Users   []int64
}

func systemEvent(text string) *Event {
	return &Event{Kind: EventSystem, Text: text}
}
