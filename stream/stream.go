// Package stream provides cold, lazily re-executed value sequences. A
// Stream is a description of production: building one (or applying an
// operator) does no work and cannot fail; only Collect runs the producer,
// and every Collect runs it from scratch.
//
// Producers execute on the collecting goroutine with the collector's
// context (context preservation). RunOn is the only sanctioned way to move
// the upstream to a different dispatcher, and it is explicit buffering,
// never a silent switch.
package stream

import (
	"context"
	"errors"

	"github.com/weftrun/weft/channel"
)

// EmitFunc delivers one value downstream. A non-nil return means the
// downstream has failed or the collection is done; the producer must
// propagate it, not swallow it.
type EmitFunc[T any] func(ctx context.Context, v T) error

// Stream is a cold sequence of T. The zero value is empty and safe to
// collect. Streams are stateless descriptions: concurrent Collect calls
// run independent executions.
type Stream[T any] struct {
	produce func(ctx context.Context, emit EmitFunc[T]) error
}

// New builds a stream from a producer body. The body runs once per
// Collect, receives the collector's context, and must return the first
// error an emit call hands back.
func New[T any](producer func(ctx context.Context, emit EmitFunc[T]) error) *Stream[T] {
	return &Stream[T]{produce: producer}
}

// downstreamError wraps an error raised by the collector (or an operator
// downstream of the producer). Producers see it as the return value of
// emit; Catch refuses to intercept it.
type downstreamError struct {
	err error
}

func (e *downstreamError) Error() string {
	return "stream: downstream failed: " + e.err.Error()
}

func (e *downstreamError) Unwrap() error { return e.err }

// errStop terminates a collection early without failing it (Take).
var errStop = errors.New("stream: stop collecting")

// run drives the producer, treating nil (the zero-value stream) as empty.
func (s *Stream[T]) run(ctx context.Context, emit EmitFunc[T]) error {
	if s == nil || s.produce == nil {
		return nil
	}
	return s.produce(ctx, emit)
}

// Collect runs the stream, invoking onValue for each emitted value in
// order, and returns when the producer finishes or anything fails. An
// error raised by onValue wins over whatever the producer returns, even
// if the producer swallowed it: exception transparency is enforced here,
// not trusted to producer code. Cancellation is observed at every
// emission.
func (s *Stream[T]) Collect(ctx context.Context, onValue func(v T) error) error {
	var downstream *downstreamError
	emit := func(ctx context.Context, v T) error {
		if downstream != nil {
			// The producer ignored a downstream failure and kept emitting.
			return downstream
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onValue(v); err != nil {
			downstream = &downstreamError{err: err}
			return downstream
		}
		return nil
	}

	err := s.run(ctx, emit)
	if downstream != nil {
		return downstream.err
	}
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}

// CollectInto collects the stream into a channel sink, one Send per value.
// The sink is not closed; that is the caller's decision.
func CollectInto[T any](ctx context.Context, s *Stream[T], sink *channel.Channel[T]) error {
	return s.Collect(ctx, func(v T) error {
		return sink.Send(ctx, v)
	})
}

// ToSlice collects the whole stream into a slice.
func ToSlice[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var out []T
	err := s.Collect(ctx, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

// isDownstream reports whether err originated downstream of the producer
// (collector failure or early stop) rather than from the producer itself.
func isDownstream(err error) bool {
	var de *downstreamError
	return errors.As(err, &de) || errors.Is(err, errStop)
}
