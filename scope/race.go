package scope

import (
	"context"
	"fmt"
	"time"
)

// ErrTimeout is the cancellation cause used when a timed task loses its
// race against the timer.
var ErrTimeout = &CancelError{Message: "timed out"}

// Race runs all bodies concurrently under a supervising scope and returns
// the result of the first to succeed. The remaining tasks are cancelled as
// soon as a winner is picked. If every body fails, Race returns the zero
// value and the last failure observed; if ctx is cancelled first, the ctx
// error. Race panics if any body is nil.
func Race[T any](ctx context.Context, bodies ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(bodies) == 0 {
		return zero, nil
	}
	for i, fn := range bodies {
		if fn == nil {
			panic(fmt.Sprintf("scope: Race body[%d] must not be nil", i))
		}
	}

	s := NewSupervising(ctx)
	defer func() {
		s.Cancel(CancelledCause("race decided"))
		_ = s.Join()
	}()

	type outcome struct {
		val T
		err error
	}
	// Buffered so every contender can report without blocking after the
	// winner has been picked up.
	results := make(chan outcome, len(bodies))
	for _, fn := range bodies {
		s.Launch(func(taskCtx context.Context) error {
			v, err := fn(taskCtx)
			results <- outcome{val: v, err: err}
			return nil
		})
	}

	var lastErr error
	for range bodies {
		select {
		case res := <-results:
			if res.err == nil {
				return res.val, nil
			}
			lastErr = res.err
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return zero, ctx.Err()
	}
	return zero, lastErr
}

// WithTimeout races body against a timer. If the timer wins, the task is
// cancelled and the timeout surfaces as context.DeadlineExceeded.
func WithTimeout[T any](ctx context.Context, d time.Duration, body func(context.Context) (T, error)) (T, error) {
	v, err, timedOut := runTimed(ctx, d, body)
	if timedOut {
		var zero T
		return zero, context.DeadlineExceeded
	}
	return v, err
}

// WithSoftTimeout is the sentinel-returning timeout variant: when the
// timer wins the race it returns sentinel and a nil error instead of
// propagating the cancellation as a failure. The timed-out task is still
// cancelled and unwinds cooperatively.
func WithSoftTimeout[T any](ctx context.Context, d time.Duration, sentinel T, body func(context.Context) (T, error)) (T, error) {
	v, err, timedOut := runTimed(ctx, d, body)
	if timedOut {
		return sentinel, nil
	}
	return v, err
}

func runTimed[T any](ctx context.Context, d time.Duration, body func(context.Context) (T, error)) (T, error, bool) {
	s := NewSupervising(ctx)
	p := Async(s, body, WithName("timed"))

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.Handle().Done():
		s.Cancel(CancelledCause("timed body finished"))
		_ = s.Join()
		return p.val, p.err, false
	case <-timer.C:
		s.Cancel(ErrTimeout)
		_ = s.Join()
		var zero T
		return zero, nil, true
	case <-ctx.Done():
		s.Cancel(CancelledCause("caller context done"))
		_ = s.Join()
		var zero T
		return zero, ctx.Err(), false
	}
}
