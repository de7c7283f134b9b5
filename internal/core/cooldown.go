package core

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const cooldownPruneThreshold = 4096

// Cooldown enforces a minimum interval between accepted messages per user.
// It is safe for concurrent use.
type Cooldown struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[int64]*rate.Limiter
	now      func() time.Time
}

// NewCooldown returns a Cooldown; an interval of zero disables it.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		limiters: make(map[int64]*rate.Limiter),
		now:      time.Now,
	}
}

// Ticket is a reserved send slot. Cancel gives it back when the message is
// rejected after the cooldown check.
type Ticket struct {
	res *rate.Reservation
	at  time.Time
}

// Cancel returns the slot. Safe on a zero Ticket.
func (t Ticket) Cancel() {
	if t.res != nil {
		t.res.CancelAt(t.at)
	}
}

// Reserve claims a send slot for userID. When the user is still cooling
// down it returns the remaining wait and claims nothing.
func (c *Cooldown) Reserve(userID int64) (Ticket, time.Duration) {
	if c == nil || c.interval <= 0 {
		return Ticket{}, 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	lim, ok := c.limiters[userID]
	if !ok {
		if len(c.limiters) >= cooldownPruneThreshold {
			c.prune(now)
		}
		lim = rate.NewLimiter(rate.Every(c.interval), 1)
		c.limiters[userID] = lim
	}

	res := lim.ReserveN(now, 1)
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return Ticket{}, wait
	}
	return Ticket{res: res, at: now}, 0
}

// prune drops limiters that are fully refilled; they carry no state.
func (c *Cooldown) prune(now time.Time) {
	for id, lim := range c.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(c.limiters, id)
		}
	}
}
