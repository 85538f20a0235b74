package scope

import (
	"context"
	"sync/atomic"

	"github.com/weftrun/weft/dispatch"
	"github.com/weftrun/weft/element"
)

// State is the lifecycle state of a task.
type State int32

const (
	// Created: built but not yet picked up by a dispatcher.
	Created State = iota
	// Active: body is executing.
	Active
	// Completing: body returned normally, terminal bookkeeping in progress.
	Completing
	// Cancelling: cancellation requested while the body was active.
	Cancelling
	// Completed: body returned nil.
	Completed
	// Cancelled: task unwound due to cancellation.
	Cancelled
	// Failed: body returned a non-cancellation error or panicked.
	Failed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Active:
		return "active"
	case Completing:
		return "completing"
	case Cancelling:
		return "cancelling"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether s is one of the end states.
func (s State) Terminal() bool {
	return s == Completed || s == Cancelled || s == Failed
}

// TaskInfo carries a task's identity and its effective element set. The
// element set is computed once at launch (scope elements merged with
// per-task overrides) and never changes afterwards.
type TaskInfo struct {
	Name     string
	Elements element.Set
}

// Handle controls and observes one launched task.
type Handle struct {
	info   TaskInfo
	state  atomic.Int32
	cancel context.CancelCauseFunc
	done   chan struct{}
	err    atomic.Pointer[taskErr]
}

type taskErr struct{ err error }

func newHandle(info TaskInfo, cancel context.CancelCauseFunc) *Handle {
	return &Handle{info: info, cancel: cancel, done: make(chan struct{})}
}

// Info returns the task's identity and effective elements.
func (h *Handle) Info() TaskInfo { return h.info }

// State returns the task's current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Cancel requests cooperative cancellation of this task (and only this
// task: cancelling a task never affects its parent scope). The task
// observes the request at its next context-aware point. Idempotent.
func (h *Handle) Cancel(cause error) {
	if cause == nil {
		cause = &CancelError{}
	}
	h.state.CompareAndSwap(int32(Active), int32(Cancelling))
	h.cancel(cause)
}

// Done returns a channel closed once the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Join blocks until the task is terminal or ctx is done. It returns the
// ctx error if the wait itself was abandoned, nil otherwise; the task's
// own outcome is read with Err.
func (h *Handle) Join(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the task's terminal error: nil while non-terminal or on
// success, a cancellation error for Cancelled, the failure for Failed.
func (h *Handle) Err() error {
	if p := h.err.Load(); p != nil {
		return p.err
	}
	return nil
}

func (h *Handle) finish(s State, err error) {
	if err != nil {
		h.err.Store(&taskErr{err: err})
	}
	h.state.Store(int32(s))
	close(h.done)
}

// TaskOptions configure one task at launch time.
type TaskOptions struct {
	Name       string
	Overrides  element.Set
	Dispatcher dispatch.Dispatcher
}

// TaskOption mutates TaskOptions.
type TaskOption func(*TaskOptions)

// WithName names the task for diagnostics, observers, and failure
// attribution. The name is also stored as an element.
func WithName(name string) TaskOption {
	return func(o *TaskOptions) { o.Name = name }
}

// WithOverrides merges per-task elements over the scope's set
// (right-biased, the override wins).
func WithOverrides(set element.Set) TaskOption {
	return func(o *TaskOptions) { o.Overrides = o.Overrides.Merge(set) }
}

// WithTaskDispatcher runs this task on d instead of the scope's dispatcher.
func WithTaskDispatcher(d dispatch.Dispatcher) TaskOption {
	return func(o *TaskOptions) { o.Dispatcher = d }
}

// WithTaskUncaught installs a per-task uncaught-failure handler element.
// Under a supervising scope this is where the task's failure is delivered.
func WithTaskUncaught(h func(element.Set, error)) TaskOption {
	return func(o *TaskOptions) { o.Overrides = o.Overrides.Merge(UncaughtElement(h)) }
}

// Promise is the result slot of a task started with Async. Failure
// delivery is deferred: the stored failure surfaces only when Await is
// called, never through the scope's failure path.
type Promise[T any] struct {
	h   *Handle
	val T
	err error
}

// Handle returns the underlying task handle.
func (p *Promise[T]) Handle() *Handle { return p.h }

// Await blocks until the task is terminal, then returns its value or
// re-raises its stored failure. If ctx is done first, Await returns the
// ctx error without disturbing the task.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.h.done:
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
	if p.err == nil {
		// The body never stored a result: it panicked (the recovered
		// *PanicError lives on the handle), or the scope cancelled the
		// task before it could run.
		if st := p.h.State(); st != Completed {
			var zero T
			return zero, p.h.Err()
		}
	}
	return p.val, p.err
}

// Async starts a task whose failure is deferred to whoever reads the
// result: the body's error is stored in the returned Promise and re-raised
// by Await, and is not forwarded to the scope's failure path. An un-awaited
// failure is lost (observers still see it).
func Async[T any](s *Scope, body func(ctx context.Context) (T, error), opts ...TaskOption) *Promise[T] {
	p := &Promise[T]{}
	p.h = s.launch(func(ctx context.Context) error {
		v, err := body(ctx)
		p.val, p.err = v, err
		return err
	}, true, opts)
	return p
}
