// Package otel provides an OpenTelemetry observer for the scope library.
// It emits span events (task start/finish, scope cancel/join, error,
// panic) on whatever span is active in the context, with low overhead.
package otel
