package router

import "sync"

// Counter is the unread-notification count. Local increments are an
// optimistic estimate between authoritative values; Set always wins.
type Counter struct {
	mu sync.Mutex
	n  int
}

// Increment adds one and returns the new value.
func (c *Counter) Increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.n
}

// Set replaces the count with an authoritative value. Negative values
// are clamped to zero.
func (c *Counter) Set(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = max(n, 0)
	return c.n
}

// Reset sets the count to zero.
func (c *Counter) Reset() {
	c.Set(0)
}

// Value returns the current count.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
