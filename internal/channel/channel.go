// Package channel provides the bounded FIFO between the resolver and the
// transport.
//
// A full channel suspends the sender until the receiver frees a slot.
// Nothing is ever dropped for capacity reasons; only Clear discards queued
// items, which the transport does when a session ends.
package channel

import (
	"context"
	"errors"
)

// DefaultCapacity is the number of queued items before senders block.
const DefaultCapacity = 8

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("channel closed")

// Channel is a bounded, ordered queue safe for concurrent use by any number
// of senders and receivers.
type Channel[T any] struct {
	items chan T
	done  chan struct{}

	// onDepth, if set, is called with the queue length after each change.
	onDepth func(int)
}

// Option configures a Channel.
type Option[T any] func(*Channel[T])

// WithDepthObserver sets a callback invoked with the queue length after
// every send, receive and clear.
func WithDepthObserver[T any](fn func(int)) Option[T] {
	return func(c *Channel[T]) {
		c.onDepth = fn
	}
}

// New creates a channel with the given capacity. A capacity below one
// selects DefaultCapacity.
func New[T any](capacity int, opts ...Option[T]) *Channel[T] {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	c := &Channel[T]{
		items: make(chan T, capacity),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send enqueues v, blocking while the channel is full. It returns ctx's
// error if ctx ends first, or ErrClosed after Close.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.items <- v:
		c.observe()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

// Receive dequeues the oldest item, blocking while the channel is empty.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-c.items:
		c.observe()
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-c.done:
		var zero T
		return zero, ErrClosed
	}
}

// TryReceive dequeues the oldest item without blocking.
func (c *Channel[T]) TryReceive() (T, bool) {
	select {
	case v := <-c.items:
		c.observe()
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Clear discards every queued item and returns how many were dropped.
func (c *Channel[T]) Clear() int {
	n := 0
	for {
		select {
		case <-c.items:
			n++
		default:
			c.observe()
			return n
		}
	}
}

// Close wakes every blocked sender and receiver with ErrClosed. Queued
// items are left in place for TryReceive. Close must be called at most once.
func (c *Channel[T]) Close() {
	close(c.done)
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	return len(c.items)
}

// Cap returns the capacity.
func (c *Channel[T]) Cap() int {
	return cap(c.items)
}

func (c *Channel[T]) observe() {
	if c.onDepth != nil {
		c.onDepth(len(c.items))
	}
}
