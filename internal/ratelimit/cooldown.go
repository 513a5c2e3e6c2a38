package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// CooldownKey identifies one nick using one command
type CooldownKey struct {
	Nick    string
	Command string
}

// Cooldown tracks per-nick command cooldowns. A zero duration disables it.
type Cooldown struct {
	mu       sync.Mutex
	lastUsed map[CooldownKey]time.Time
	duration time.Duration
	now      func() time.Time
}

// NewCooldown creates a new cooldown tracker
func NewCooldown(duration time.Duration) *Cooldown {
	return &Cooldown{
		lastUsed: make(map[CooldownKey]time.Time),
		duration: duration,
		now:      time.Now,
	}
}

// Enabled reports whether a positive cooldown is configured
func (c *Cooldown) Enabled() bool {
	return c != nil && c.duration > 0
}

// Acquire records a use of command by nick and returns true, or returns false
// along with the remaining wait when the nick is still cooling down.
func (c *Cooldown) Acquire(nick, command string) (bool, time.Duration) {
	if !c.Enabled() {
		return true, 0
	}

	key := CooldownKey{Nick: strings.ToLower(nick), Command: command}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.lastUsed[key]; ok {
		if elapsed := now.Sub(last); elapsed < c.duration {
			return false, c.duration - elapsed
		}
	}
	c.lastUsed[key] = now
	return true, 0
}

// Clear removes the cooldown for a nick-command combination
func (c *Cooldown) Clear(nick, command string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lastUsed, CooldownKey{Nick: strings.ToLower(nick), Command: command})
}

// Cleanup removes expired entries
func (c *Cooldown) Cleanup() {
	if !c.Enabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, last := range c.lastUsed {
		if now.Sub(last) >= c.duration {
			delete(c.lastUsed, key)
		}
	}
}

// StartCleanup periodically removes expired entries until stopCh is closed
func (c *Cooldown) StartCleanup(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Len returns the number of tracked entries
func (c *Cooldown) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lastUsed)
}
