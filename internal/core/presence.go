package core

import "slices"

// Presence is the authoritative table of online users. It is not
// synchronized: only the hub loop touches it, one turn at a time.
type Presence struct {
	byUser  map[int64]*Client
	handles map[*Client]struct{}
}

// NewPresence returns an empty table.
func NewPresence() *Presence {
	return &Presence{
		byUser:  make(map[int64]*Client),
		handles: make(map[*Client]struct{}),
	}
}

// Register maps userID to c and adds c to the broadcast set. A previous
// connection for the same user is removed and returned.
func (p *Presence) Register(userID int64, c *Client) (replaced *Client) {
	if prev, ok := p.byUser[userID]; ok && prev != c {
		delete(p.handles, prev)
		replaced = prev
	}
	p.byUser[userID] = c
	p.handles[c] = struct{}{}
	return replaced
}

// Unregister removes userID only while it still maps to c, so a stale
// connection cannot unregister its replacement. Reports whether it removed.
func (p *Presence) Unregister(userID int64, c *Client) bool {
	delete(p.handles, c)
	if cur, ok := p.byUser[userID]; !ok || cur != c {
		return false
	}
	delete(p.byUser, userID)
	return true
}

// IsOnline reports whether userID has a joined connection.
func (p *Presence) IsOnline(userID int64) bool {
	_, ok := p.byUser[userID]
	return ok
}

// Lookup returns the connection registered for userID.
func (p *Presence) Lookup(userID int64) (*Client, bool) {
	c, ok := p.byUser[userID]
	return c, ok
}

// Snapshot returns the online user ids in ascending order.
func (p *Presence) Snapshot() []int64 {
	users := make([]int64, 0, len(p.byUser))
	for id := range p.byUser {
		users = append(users, id)
	}
	slices.Sort(users)
	return users
}

// BroadcastHandles returns every joined connection.
func (p *Presence) BroadcastHandles() []*Client {
	out := make([]*Client, 0, len(p.handles))
	for c := range p.handles {
		out = append(out, c)
	}
	return out
}

// Len returns the number of online users.
func (p *Presence) Len() int {
	return len(p.byUser)
}
