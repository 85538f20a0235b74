package scope

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// FailureError is the error surfaced by a structured scope when one or more
// of its tasks fail. The first failure observed is the primary; failures
// from concurrently failing siblings are attached as suppressed, never lost.
type FailureError struct {
	// Task identifies the task whose failure was recorded first.
	Task TaskInfo
	// Err is the primary failure.
	Err error

	suppressed []error
}

func (e *FailureError) Error() string {
	if len(e.suppressed) == 0 {
		return fmt.Sprintf("task %q failed: %v", e.Task.Name, e.Err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "task %q failed: %v (and %d suppressed:", e.Task.Name, e.Err, len(e.suppressed))
	for _, s := range e.suppressed {
		fmt.Fprintf(&b, " %v;", s)
	}
	b.WriteString(")")
	return b.String()
}

// Unwrap exposes the primary failure followed by the suppressed ones, so
// errors.Is and errors.As see the whole set.
func (e *FailureError) Unwrap() []error {
	out := make([]error, 0, 1+len(e.suppressed))
	out = append(out, e.Err)
	out = append(out, e.suppressed...)
	return out
}

// Suppressed returns the failures recorded after the primary one.
// The returned slice must not be modified.
func (e *FailureError) Suppressed() []error { return e.suppressed }

// PanicError wraps a recovered panic value together with the goroutine
// stack trace captured at the point of the panic. Panics in task bodies
// are converted to *PanicError when the scope runs with PanicAsError
// (the default); otherwise they re-raise on the task goroutine.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any
	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	// runtime.Stack truncates gracefully if the buffer is too small.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// CancelError marks a deliberate cancellation. It is never recorded as a
// scope failure and never reaches uncaught-failure handlers; the message
// is carried for diagnostics only.
type CancelError struct {
	Message string
}

func (e *CancelError) Error() string {
	if e.Message == "" {
		return "cancelled"
	}
	return "cancelled: " + e.Message
}

// CancelledCause builds a CancelError with the given diagnostic message.
func CancelledCause(message string) error { return &CancelError{Message: message} }

// IsCancellation reports whether err belongs to the cancellation taxonomy
// rather than the failure taxonomy: context cancellation and deadline
// errors, and *CancelError values, in any position of err's chain.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	var ce *CancelError
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &ce)
}
