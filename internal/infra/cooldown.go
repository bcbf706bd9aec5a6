package infra

import (
	"sync"
	"time"
)

// Cooldown enforces a minimum interval between commands per caller. A
// caller who fires again inside the window is refused instead of queued.
// Safe for concurrent use.
type Cooldown struct {
	mu       sync.Mutex
	last     map[string]time.Time
	interval time.Duration
	now      func() time.Time
}

// NewCooldown creates a cooldown gate with the given minimum interval.
// A non-positive interval disables the gate.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		last:     make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether the caller may run a command now, and if so starts
// their next cooldown window.
func (c *Cooldown) Allow(key string) bool {
	if c.interval <= 0 {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if last, ok := c.last[key]; ok && now.Sub(last) < c.interval {
		return false
	}
	c.last[key] = now
	return true
}

// Remaining returns how long until the caller's next allowed command.
// Zero means the caller is clear.
func (c *Cooldown) Remaining(key string) time.Duration {
	if c.interval <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	last, ok := c.last[key]
	if !ok {
		return 0
	}
	rem := c.interval - c.now().Sub(last)
	if rem < 0 {
		return 0
	}
	return rem
}

// Purge drops entries older than one interval so the map does not grow
// with every caller ever seen. Call it occasionally from a housekeeping
// loop.
func (c *Cooldown) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.interval)
	for key, last := range c.last {
		if last.Before(cutoff) {
			delete(c.last, key)
		}
	}
}
