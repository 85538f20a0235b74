// Package dispatch maps task bodies onto goroutines according to a
// scheduling policy: one goroutine per task, a bounded pool, a single
// confined goroutine, or inline on the caller.
package dispatch

import "context"

// Dispatcher schedules a function for execution. Dispatch returns once the
// function has been handed to a carrier; whether that is before, after, or
// concurrently with fn running depends on the policy. A non-nil error means
// fn was never scheduled and will not run.
type Dispatcher interface {
	Dispatch(ctx context.Context, fn func()) error
}

type goroutines struct{}

func (goroutines) Dispatch(_ context.Context, fn func()) error {
	go fn()
	return nil
}

// Goroutines returns the default dispatcher: every dispatched function gets
// its own goroutine, leaving scheduling to the Go runtime.
func Goroutines() Dispatcher { return goroutines{} }

type unconfined struct{}

func (unconfined) Dispatch(_ context.Context, fn func()) error {
	fn()
	return nil
}

// Unconfined returns a dispatcher that runs each function inline on the
// calling goroutine. Dispatch does not return until fn has.
func Unconfined() Dispatcher { return unconfined{} }
