package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/weftrun/weft/scope"
)

// Observer implements scope.Observer by recording span events on the span
// carried in the event's context. Without a recording span in the context
// every call is a cheap no-op.
type Observer struct{}

// New returns the observer.
func New() *Observer { return &Observer{} }

func (*Observer) ScopeCreated(ctx context.Context) {
	trace.SpanFromContext(ctx).AddEvent("scope.created")
}

func (*Observer) ScopeCancelled(ctx context.Context, cause error) {
	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{}
	if cause != nil {
		attrs = append(attrs, attribute.String("cause", cause.Error()))
	}
	span.AddEvent("scope.cancelled", trace.WithAttributes(attrs...))
}

func (*Observer) ScopeJoined(ctx context.Context, wait time.Duration) {
	trace.SpanFromContext(ctx).AddEvent("scope.joined",
		trace.WithAttributes(attribute.Int64("wait_ms", wait.Milliseconds())))
}

func (*Observer) TaskStarted(ctx context.Context, info scope.TaskInfo) {
	trace.SpanFromContext(ctx).AddEvent("task.started",
		trace.WithAttributes(attribute.String("task", info.Name)))
}

func (*Observer) TaskFinished(ctx context.Context, info scope.TaskInfo, dur time.Duration, err error, panicked bool) {
	span := trace.SpanFromContext(ctx)
	attrs := []attribute.KeyValue{
		attribute.String("task", info.Name),
		attribute.Int64("duration_ms", dur.Milliseconds()),
		attribute.Bool("panicked", panicked),
	}
	if err != nil {
		attrs = append(attrs, attribute.String("error", err.Error()))
		if !scope.IsCancellation(err) {
			span.RecordError(err)
		}
	}
	span.AddEvent("task.finished", trace.WithAttributes(attrs...))
}
