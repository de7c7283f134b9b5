package core

import (
	"sync"
	"sync/atomic"
)

// State is the lifecycle stage of a connection.
type State int32

const (
	// StateConnecting is a fresh connection that has not completed the join handshake.
	StateConnecting State = iota
	// StateJoined is bound to a resolved identity.
	StateJoined
	// StateClosed is terminal; a reconnect is a new Client.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one live connection as seen by the core layer.
type Client struct {
	ID     string
	Events chan *Event

	state    atomic.Int32
	identity Identity // written once by the hub on join

	done      chan struct{}
	closeOnce sync.Once

	// Owned by the hub loop. announced is set once the user's join notice
	// went out and carries over to a replacing connection.
	replaying bool
	announced bool
	backlog   []*Event
}

// NewClient constructs a connecting client with a buffered outbound queue.
func NewClient(id string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		ID:     id,
		Events: make(chan *Event, buffer),
		done:   make(chan struct{}),
	}
}

// State reports the current lifecycle stage.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Identity returns the bound identity; ok is false before the join handshake.
func (c *Client) Identity() (Identity, bool) {
	if c.State() != StateJoined {
		return Identity{}, false
	}
	return c.identity, true
}

// UserID returns the bound user id or 0.
func (c *Client) UserID() int64 {
	id, _ := c.Identity()
	return id.UserID
}

func (c *Client) bind(id Identity) bool {
	if c.State() != StateConnecting {
		return false
	}
	c.identity = id
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateJoined))
}

// Send enqueues an event without blocking. It reports false when the client
// is closed or its queue is full.
func (c *Client) Send(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Close moves the client to StateClosed. Events already queued stay readable.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
}

// Done is closed once the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
