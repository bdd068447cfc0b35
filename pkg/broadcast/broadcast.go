package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 1000

var (
	// ErrClosed is returned by Send after Close, and by Recv once a closed
	// channel has been drained.
	ErrClosed = errors.New("broadcast: channel closed")

	// ErrNoReceivers is returned by Send when nobody is subscribed.
	// The value is discarded.
	ErrNoReceivers = errors.New("broadcast: no active receivers")
)

// LaggedError reports that a receiver fell behind by more than the channel
// capacity and Missed values were overwritten before it read them. The
// receiver has been moved to the oldest retained value.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("broadcast: receiver lagged, %d values skipped", e.Missed)
}

// Channel is a bounded multi-consumer broadcast queue. Every receiver sees
// every value sent after it subscribed, in order, unless it lags.
// Send never blocks; a slow receiver loses the oldest values instead.
// Safe for concurrent use.
type Channel[T any] struct {
	mu        sync.Mutex
	buf       []T
	tail      uint64 // sequence number of the next value to be written
	receivers int
	closed    bool
	notify    chan struct{}
}

// New creates a channel that retains at most capacity values.
func New[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel[T]{
		buf:    make([]T, capacity),
		notify: make(chan struct{}),
	}
}

// Send publishes v to all current receivers and returns how many there are.
func (c *Channel[T]) Send(v T) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrClosed
	}
	if c.receivers == 0 {
		return 0, ErrNoReceivers
	}

	c.buf[c.tail%uint64(len(c.buf))] = v
	c.tail++

	close(c.notify)
	c.notify = make(chan struct{})

	return c.receivers, nil
}

// Subscribe returns a receiver positioned after the most recently sent value.
// Receivers of a closed channel get ErrClosed from Recv.
func (c *Channel[T]) Subscribe() *Receiver[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.receivers++
	return &Receiver[T]{ch: c, next: c.tail}
}

// Receivers returns the number of subscribed receivers.
func (c *Channel[T]) Receivers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receivers
}

// Capacity returns the maximum number of retained values.
func (c *Channel[T]) Capacity() int {
	return len(c.buf)
}

// Close stops further sends and wakes all waiting receivers. Values already
// sent can still be received. Close is idempotent.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.notify)
}

// Receiver is one cursor into a Channel. It must be used by a single goroutine.
type Receiver[T any] struct {
	ch           *Channel[T]
	next         uint64
	unsubscribed bool
}

// Recv blocks until the next value is available.
//
// It returns a *LaggedError when values were skipped (the next call resumes
// at the oldest retained value), ErrClosed once the channel is closed and
// drained, or ctx.Err() when ctx is done first.
func (r *Receiver[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	c := r.ch

	for {
		c.mu.Lock()
		if r.unsubscribed {
			c.mu.Unlock()
			return zero, ErrClosed
		}

		size := uint64(len(c.buf))
		oldest := uint64(0)
		if c.tail > size {
			oldest = c.tail - size
		}

		if r.next < oldest {
			missed := oldest - r.next
			r.next = oldest
			c.mu.Unlock()
			return zero, &LaggedError{Missed: missed}
		}

		if r.next < c.tail {
			v := c.buf[r.next%size]
			r.next++
			c.mu.Unlock()
			return v, nil
		}

		if c.closed {
			c.mu.Unlock()
			return zero, ErrClosed
		}

		wait := c.notify
		c.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close unsubscribes the receiver. Later Recv calls return ErrClosed.
// Close is idempotent.
func (r *Receiver[T]) Close() {
	c := r.ch
	c.mu.Lock()
	defer c.mu.Unlock()

	if r.unsubscribed {
		return
	}
	r.unsubscribed = true
	c.receivers--
}
