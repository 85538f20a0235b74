package dispatch

import (
	"context"
	"errors"
	"sync"
)

// ErrConfinedClosed is returned by Confined.Dispatch after Close.
var ErrConfinedClosed = errors.New("dispatch: confined dispatcher closed")

// Confined runs every dispatched function sequentially on one dedicated
// goroutine, in FIFO order. Functions dispatched from that goroutine itself
// are queued, not run inline, so Dispatch never deadlocks on reentrancy.
type Confined struct {
	name string

	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	done   chan struct{}
}

// NewConfined starts the dedicated goroutine and returns the dispatcher.
// The name is for diagnostics only. Call Close to stop the goroutine.
func NewConfined(name string) *Confined {
	c := &Confined{
		name: name,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Name returns the diagnostic name given at construction.
func (c *Confined) Name() string { return c.name }

// Dispatch appends fn to the run queue. It returns ErrConfinedClosed after
// Close, or the context error if ctx was already done.
func (c *Confined) Dispatch(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConfinedClosed
	}
	c.queue = append(c.queue, fn)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops intake, lets already-queued functions finish, and then stops
// the dedicated goroutine. Close blocks until the queue has drained.
// It is idempotent.
func (c *Confined) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	<-c.done
}

func (c *Confined) loop() {
	defer close(c.done)
	for {
		c.mu.Lock()
		queue := c.queue
		c.queue = nil
		closed := c.closed
		c.mu.Unlock()

		for _, fn := range queue {
			fn()
		}

		if closed {
			// One last sweep: Dispatch cannot have added more after the
			// closed flag was observed under the lock.
			c.mu.Lock()
			rest := c.queue
			c.queue = nil
			c.mu.Unlock()
			for _, fn := range rest {
				fn()
			}
			return
		}

		if len(queue) == 0 {
			<-c.wake
		}
	}
}
