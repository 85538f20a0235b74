package stream

import (
	"context"
	"errors"

	"github.com/weftrun/weft/channel"
	"github.com/weftrun/weft/dispatch"
)

// RunOn moves everything upstream of it onto d, buffering up to capacity
// values in a channel between the two sides. The downstream keeps running
// on the collector's goroutine with the collector's context, so this is
// the explicit, opt-in exception to context preservation.
//
// A downstream failure cancels the upstream side. An upstream failure
// surfaces from Collect after the values buffered before it have been
// delivered.
func RunOn[T any](s *Stream[T], d dispatch.Dispatcher, capacity int) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		ch := channel.New[T](capacity)
		upCtx, cancel := context.WithCancelCause(ctx)
		defer cancel(nil)

		done := make(chan error, 1)
		if err := d.Dispatch(upCtx, func() {
			err := s.run(upCtx, func(ctx context.Context, v T) error {
				return ch.Send(ctx, v)
			})
			// Close rather than Fail so values emitted before an upstream
			// failure still drain to the collector; the error itself
			// travels through done.
			ch.Close()
			done <- err
		}); err != nil {
			return err
		}

		for {
			v, err := ch.Receive(ctx)
			if err != nil {
				if errors.Is(err, channel.ErrClosed) {
					break
				}
				// The collector's ctx fired; stop the producer.
				cancel(err)
				<-done
				return err
			}
			if err := emit(ctx, v); err != nil {
				cancel(err)
				ch.Fail(err)
				<-done
				return err
			}
		}
		return <-done
	})
}
