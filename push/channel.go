// Package push maintains the registry of connected board viewers and
// broadcasts every committed change to all of them. Two channel kinds
// exist: persistent websockets and long-poll fallbacks. Delivery is
// best-effort; a channel that cannot take a payload is dropped from the
// registry rather than retried.
package push

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrChannelClosed reports delivery to, or a wait on, a closed channel.
	ErrChannelClosed = errors.New("push: channel closed")
	// ErrAwaitTimeout reports a long-poll wait that completed empty.
	ErrAwaitTimeout = errors.New("push: no payload within timeout")
)

// Channel is one connected viewer, whatever its transport.
type Channel interface {
	ID() string
	// Deliver hands the channel one payload. An error means the channel is
	// unusable and the caller should unregister it.
	Deliver(payload []byte) error
	Close() error
}

// LongPollChannel is the fallback transport for viewers that cannot hold a
// socket open. It buffers at most one payload between polls; a newer
// broadcast overwrites an unclaimed older one, so a slow poller sees the
// latest state rather than a growing queue.
type LongPollChannel struct {
	id string

	mu      sync.Mutex
	pending []byte
	waiter  chan []byte
	closed  bool
}

func NewLongPollChannel() *LongPollChannel {
	return &LongPollChannel{id: uuid.NewString()}
}

func (c *LongPollChannel) ID() string {
	return c.id
}

// Deliver never blocks: it completes a pending wait if one is parked, and
// otherwise replaces the buffered payload.
func (c *LongPollChannel) Deliver(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.waiter != nil {
		c.waiter <- payload
		c.waiter = nil
		return nil
	}
	c.pending = payload
	return nil
}

// AwaitNext returns the buffered payload if there is one, otherwise parks
// until a broadcast arrives, the timeout elapses (ErrAwaitTimeout), ctx is
// done, or the channel is closed. Only one wait may be pending at a time; a
// second concurrent wait displaces the first.
func (c *LongPollChannel) AwaitNext(ctx context.Context, timeout time.Duration) ([]byte, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrChannelClosed
	}
	if c.pending != nil {
		payload := c.pending
		c.pending = nil
		c.mu.Unlock()
		return payload, nil
	}
	waiter := make(chan []byte, 1)
	c.waiter = waiter
	c.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case payload, ok := <-waiter:
		if !ok {
			return nil, ErrChannelClosed
		}
		return payload, nil
	case <-timer.C:
	case <-ctx.Done():
		c.abandon(waiter)
		return nil, ctx.Err()
	}

	c.abandon(waiter)
	// a delivery may have slipped in after the timer fired
	select {
	case payload, ok := <-waiter:
		if ok {
			return payload, nil
		}
	default:
	}
	return nil, ErrAwaitTimeout
}

func (c *LongPollChannel) abandon(waiter chan []byte) {
	c.mu.Lock()
	if c.waiter == waiter {
		c.waiter = nil
	}
	c.mu.Unlock()
}

func (c *LongPollChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.pending = nil
	if c.waiter != nil {
		close(c.waiter)
		c.waiter = nil
	}
	return nil
}
