// Package channel provides a closeable FIFO queue with suspending send and
// receive, for point-to-point and fan-in/fan-out communication between
// tasks. Four buffering policies are supported: rendezvous (capacity 0),
// fixed capacity, unlimited, and conflated (size one, overwrite).
package channel

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Send on a closed channel, and by Receive as the
// end-of-data marker once a closed channel has been fully drained.
var ErrClosed = errors.New("channel: closed")

// ErrCancelled is the default cause installed by Fail when none is given.
var ErrCancelled = errors.New("channel: cancelled")

// Unlimited is the capacity value for a channel that never suspends senders.
const Unlimited = -1

type sendWaiter[T any] struct {
	val  T
	done chan error // buffered 1; nil means delivered or buffered
}

type recvResult[T any] struct {
	val T
	err error
}

type recvWaiter[T any] struct {
	ch chan recvResult[T] // buffered 1
}

// Channel is a FIFO, closeable queue. The zero value is not usable; create
// one with New or NewConflated. All methods are safe for concurrent use.
//
// Waiters are queued FIFO, so when several receivers contend for one value
// the longest-waiting receiver wins. That winner choice is an
// implementation detail; only no-duplication and no-loss are guaranteed.
type Channel[T any] struct {
	mu        sync.Mutex
	buf       []T
	capacity  int // Unlimited or >= 0
	conflated bool
	closed    bool
	failed    error

	sendq []*sendWaiter[T]
	recvq []*recvWaiter[T]
}

// New creates a channel with the given capacity: 0 is rendezvous (every
// send suspends until a receiver takes the value), n > 0 buffers up to n
// elements, Unlimited never suspends senders. Any other negative capacity
// panics.
func New[T any](capacity int) *Channel[T] {
	if capacity < 0 && capacity != Unlimited {
		panic("channel: negative capacity")
	}
	return &Channel[T]{capacity: capacity}
}

// NewConflated creates a channel that keeps only the most recent element:
// a send to a full conflated channel overwrites the buffered element and
// never suspends.
func NewConflated[T any]() *Channel[T] {
	return &Channel[T]{capacity: 1, conflated: true}
}

// Send delivers v, suspending according to the buffering policy until
// space is available or a receiver takes the value. It returns ErrClosed
// if the channel is closed for send, the failure cause if the channel was
// failed, or the ctx error if the wait was abandoned. A ctx that is
// already done fails the send even when space is free.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if err := c.sendLockedFast(v); err != errWouldSuspend {
		c.mu.Unlock()
		return err
	}

	w := &sendWaiter[T]{val: v, done: make(chan error, 1)}
	c.sendq = append(c.sendq, w)
	c.mu.Unlock()

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		c.mu.Lock()
		removed := removeWaiter(&c.sendq, w)
		c.mu.Unlock()
		if removed {
			return ctx.Err()
		}
		// Completed concurrently with the context firing.
		return <-w.done
	}
}

// TrySend attempts a non-suspending send. It reports whether v was
// accepted; (false, nil) means the send would have suspended.
func (c *Channel[T]) TrySend(v T) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.sendLockedFast(v)
	if err == errWouldSuspend {
		return false, nil
	}
	return err == nil, err
}

var errWouldSuspend = errors.New("channel: would suspend")

// sendLockedFast performs the non-suspending part of a send. It returns
// errWouldSuspend when the caller has to queue.
func (c *Channel[T]) sendLockedFast(v T) error {
	if c.failed != nil {
		return c.failed
	}
	if c.closed {
		return ErrClosed
	}
	// Direct handoff to the longest-waiting receiver. Receivers only wait
	// while the buffer is empty, so FIFO order is preserved.
	if len(c.recvq) > 0 {
		w := c.recvq[0]
		c.recvq = c.recvq[1:]
		w.ch <- recvResult[T]{val: v}
		return nil
	}
	if c.conflated {
		if len(c.buf) == 0 {
			c.buf = append(c.buf, v)
		} else {
			c.buf[len(c.buf)-1] = v
		}
		return nil
	}
	if c.capacity == Unlimited || len(c.buf) < c.capacity {
		c.buf = append(c.buf, v)
		return nil
	}
	return errWouldSuspend
}

// Receive takes the next element, suspending until one is available or the
// channel closes. All elements sent before Close are delivered before the
// ErrClosed end-of-data marker is observed. A failed channel returns the
// failure cause immediately.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	c.mu.Lock()
	if v, err, ok := c.receiveLockedFast(); ok {
		c.mu.Unlock()
		return v, err
	}

	w := &recvWaiter[T]{ch: make(chan recvResult[T], 1)}
	c.recvq = append(c.recvq, w)
	c.mu.Unlock()

	select {
	case r := <-w.ch:
		return r.val, r.err
	case <-ctx.Done():
		c.mu.Lock()
		removed := removeRecvWaiter(&c.recvq, w)
		c.mu.Unlock()
		var zero T
		if removed {
			return zero, ctx.Err()
		}
		r := <-w.ch
		return r.val, r.err
	}
}

// TryReceive attempts a non-suspending receive. ok reports whether a value
// was taken; (zero, false, nil) means nothing was available yet.
func (c *Channel[T]) TryReceive() (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, err, done := c.receiveLockedFast(); done {
		if err != nil {
			var zero T
			return zero, false, err
		}
		return v, true, nil
	}
	var zero T
	return zero, false, nil
}

// receiveLockedFast performs the non-suspending part of a receive. The
// third result reports whether the receive resolved without queueing.
func (c *Channel[T]) receiveLockedFast() (T, error, bool) {
	var zero T
	if c.failed != nil {
		return zero, c.failed, true
	}
	if len(c.buf) > 0 {
		v := c.buf[0]
		c.buf = c.buf[1:]
		// A slot freed up: admit the longest-waiting sender.
		if len(c.sendq) > 0 {
			w := c.sendq[0]
			c.sendq = c.sendq[1:]
			c.buf = append(c.buf, w.val)
			w.done <- nil
		}
		return v, nil, true
	}
	// Rendezvous handoff from the longest-waiting sender.
	if len(c.sendq) > 0 {
		w := c.sendq[0]
		c.sendq = c.sendq[1:]
		w.done <- nil
		return w.val, nil, true
	}
	if c.closed {
		return zero, ErrClosed, true
	}
	return zero, nil, false
}

// Close stops the channel accepting new sends. Elements already buffered
// are still delivered; suspended senders are failed with ErrClosed, and
// waiting receivers observe end-of-data. Close is idempotent and reports
// whether this call performed the close.
func (c *Channel[T]) Close() bool {
	c.mu.Lock()
	if c.closed || c.failed != nil {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	sendq := c.sendq
	c.sendq = nil
	// Receivers only wait while the buffer is empty, so they all see
	// end-of-data.
	recvq := c.recvq
	c.recvq = nil
	c.mu.Unlock()

	for _, w := range sendq {
		w.done <- ErrClosed
	}
	var zero T
	for _, w := range recvq {
		w.ch <- recvResult[T]{val: zero, err: ErrClosed}
	}
	return true
}

// Fail immediately discards all buffered elements and fails every pending
// and future operation with cause (ErrCancelled when nil). This is the
// abortive counterpart of Close. Idempotent; a later Fail on a closed
// channel still discards the remaining buffer.
func (c *Channel[T]) Fail(cause error) {
	if cause == nil {
		cause = ErrCancelled
	}
	c.mu.Lock()
	if c.failed != nil {
		c.mu.Unlock()
		return
	}
	c.failed = cause
	c.closed = true
	c.buf = nil
	sendq := c.sendq
	c.sendq = nil
	recvq := c.recvq
	c.recvq = nil
	c.mu.Unlock()

	for _, w := range sendq {
		w.done <- cause
	}
	var zero T
	for _, w := range recvq {
		w.ch <- recvResult[T]{val: zero, err: cause}
	}
}

// Len returns the number of buffered elements.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buf)
}

// Cap returns the channel's capacity: Unlimited, or the buffer bound
// (1 for conflated channels).
func (c *Channel[T]) Cap() int { return c.capacity }

// IsClosed reports whether the channel no longer accepts sends.
func (c *Channel[T]) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func removeWaiter[T any](q *[]*sendWaiter[T], w *sendWaiter[T]) bool {
	for i, x := range *q {
		if x == w {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}

func removeRecvWaiter[T any](q *[]*recvWaiter[T], w *recvWaiter[T]) bool {
	for i, x := range *q {
		if x == w {
			*q = append((*q)[:i], (*q)[i+1:]...)
			return true
		}
	}
	return false
}
