package authtest

import (
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"accountforge/internal/auth"
)

// FastHasher is bcrypt at its minimum cost, for tests only.
func FastHasher() *auth.BcryptHasher {
	return &auth.BcryptHasher{Cost: bcrypt.MinCost}
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
