package dispatch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently running functions. Each Dispatch
// acquires a slot (blocking until one frees up or ctx is done), then runs
// fn on its own goroutine.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a Pool allowing at most n functions to run at once.
// It panics if n is not positive.
func NewPool(n int) *Pool {
	if n <= 0 {
		panic("dispatch: pool size must be positive")
	}
	return &Pool{sem: semaphore.NewWeighted(int64(n))}
}

// Dispatch blocks until a slot is free, then runs fn on a new goroutine.
// If ctx is done first, fn is not scheduled and the context error is returned.
func (p *Pool) Dispatch(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	go func() {
		defer p.sem.Release(1)
		fn()
	}()
	return nil
}
