// Package ledger implements the Lamport logical clock, the Transaction value
// type, and the hash-linked block chain that materializes the agreed commit
// order for a single peer.
package ledger

import "sync"

// Clock is a Lamport logical clock. It is safe for concurrent use, though
// callers that need to coordinate a clock update with queue or ledger
// mutation should still take their own lock around the whole sequence (see
// internal/peernode.Engine).
type Clock struct {
	mu    sync.Mutex
	value uint64
}

// NewClock returns a clock initialized to zero.
func NewClock() *Clock {
	return &Clock{}
}

// LocalEvent bumps the clock for an internal event that isn't part of an
// in-progress transfer (e.g. a non-commit balance inquiry).
func (c *Clock) LocalEvent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value
}

// SendEvent bumps the clock ahead of stamping an outgoing message and
// returns the new value to embed as the message's sender_logic_clock.
func (c *Clock) SendEvent() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value++
	return c.value
}

// RecvEvent applies the Lamport receive rule: clock <- max(clock, remote) + 1.
func (c *Clock) RecvEvent(remote uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.value {
		c.value = remote
	}
	c.value++
	return c.value
}

// Value returns the current clock value without mutating it.
func (c *Clock) Value() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}
