package channel

import (
	"context"
	"errors"

	"github.com/weftrun/weft/scope"
)

// Produce launches a producer task on s that feeds a new channel of the
// given capacity. The channel is closed when the body returns nil and
// failed with the body's error otherwise, so consumers draining the
// channel observe the producer's fate. Cancellation of the owning scope
// fails the channel with the cancellation cause.
func Produce[T any](s *scope.Scope, capacity int, body func(ctx context.Context, ch *Channel[T]) error, opts ...scope.TaskOption) *Channel[T] {
	ch := New[T](capacity)
	s.Launch(func(ctx context.Context) error {
		err := body(ctx, ch)
		if err != nil {
			ch.Fail(err)
			return err
		}
		ch.Close()
		return nil
	}, opts...)
	return ch
}

// Drain receives until end-of-data, invoking fn for every element. It
// returns nil once ErrClosed is observed, or the first error from fn, a
// failed channel, or ctx.
func Drain[T any](ctx context.Context, ch *Channel[T], fn func(T) error) error {
	for {
		v, err := ch.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}
