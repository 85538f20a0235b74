package stream

import (
	"context"

	"github.com/weftrun/weft/scope"
)

// Catch intercepts failures raised upstream of it in the pipeline and
// hands them to handler, which may re-raise (return the error), emit
// substitute values, or suppress (return nil). Failures originating
// downstream of the Catch (collector errors and early stops) pass
// through untouched, as do cancellations: a producer can never
// misattribute the collector's failure as its own.
func Catch[T any](s *Stream[T], handler func(ctx context.Context, err error, emit EmitFunc[T]) error) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		err := s.run(ctx, emit)
		if err == nil {
			return nil
		}
		if isDownstream(err) || scope.IsCancellation(err) {
			return err
		}
		return handler(ctx, err, emit)
	})
}
