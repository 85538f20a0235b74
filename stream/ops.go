package stream

import (
	"context"
	"errors"

	"github.com/weftrun/weft/channel"
)

// Of builds a stream that emits the given values in order on every
// collection.
func Of[T any](values ...T) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		for _, v := range values {
			if err := emit(ctx, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Range builds a stream of the integers [from, from+count).
func Range(from, count int) *Stream[int] {
	return New(func(ctx context.Context, emit EmitFunc[int]) error {
		for i := 0; i < count; i++ {
			if err := emit(ctx, from+i); err != nil {
				return err
			}
		}
		return nil
	})
}

// FromChannel builds a stream that drains ch until end-of-data. Unlike
// other constructors this stream is backed by shared mutable state: a
// second collection only sees elements the first one left behind.
func FromChannel[T any](ch *channel.Channel[T]) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		for {
			v, err := ch.Receive(ctx)
			if err != nil {
				if errors.Is(err, channel.ErrClosed) {
					return nil
				}
				return err
			}
			if err := emit(ctx, v); err != nil {
				return err
			}
		}
	})
}

// Map transforms every value. Free function rather than a method because
// Go methods cannot introduce type parameters.
func Map[T, R any](s *Stream[T], fn func(T) R) *Stream[R] {
	return New(func(ctx context.Context, emit EmitFunc[R]) error {
		return s.run(ctx, func(ctx context.Context, v T) error {
			return emit(ctx, fn(v))
		})
	})
}

// Filter keeps only values matching pred.
func Filter[T any](s *Stream[T], pred func(T) bool) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		return s.run(ctx, func(ctx context.Context, v T) error {
			if !pred(v) {
				return nil
			}
			return emit(ctx, v)
		})
	})
}

// Take limits the stream to its first n values, then stops the upstream
// producer without failing the collection.
func Take[T any](s *Stream[T], n int) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		if n <= 0 {
			return nil
		}
		seen := 0
		err := s.run(ctx, func(ctx context.Context, v T) error {
			if err := emit(ctx, v); err != nil {
				return err
			}
			seen++
			if seen == n {
				return errStop
			}
			return nil
		})
		if errors.Is(err, errStop) {
			return nil
		}
		return err
	})
}

// Transform is the general operator: fn may emit zero or more values per
// upstream value, and may fail the collection by returning an error.
func Transform[T, R any](s *Stream[T], fn func(ctx context.Context, v T, emit EmitFunc[R]) error) *Stream[R] {
	return New(func(ctx context.Context, emit EmitFunc[R]) error {
		return s.run(ctx, func(ctx context.Context, v T) error {
			return fn(ctx, v, emit)
		})
	})
}

// Concat emits every stream in order, each collected to completion before
// the next starts.
func Concat[T any](streams ...*Stream[T]) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		for _, s := range streams {
			if err := s.run(ctx, emit); err != nil {
				return err
			}
		}
		return nil
	})
}

// OnEach invokes fn for every value flowing through, without changing it.
func OnEach[T any](s *Stream[T], fn func(T)) *Stream[T] {
	return New(func(ctx context.Context, emit EmitFunc[T]) error {
		return s.run(ctx, func(ctx context.Context, v T) error {
			fn(v)
			return emit(ctx, v)
		})
	})
}
