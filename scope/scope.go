package scope

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/weftrun/weft/dispatch"
	"github.com/weftrun/weft/element"
)

// Option configures a Scope.
type Option func(*Options)

// Options collects scope configuration.
type Options struct {
	// PanicAsError converts task panics to *PanicError failures instead of
	// re-raising them on the task goroutine. Default true.
	PanicAsError bool
	// Observer receives lifecycle events; nil disables observation.
	Observer Observer
	// MaxConcurrency bounds tasks running at once; 0 means unlimited.
	MaxConcurrency int
	// Dispatcher schedules task bodies; defaults to dispatch.Goroutines().
	Dispatcher dispatch.Dispatcher
	// Elements is the scope's root element set, inherited by every task.
	Elements element.Set
	// OnUncaught receives the scope's recorded failure once every task is
	// terminal. When set, Join returns nil for failures (already handled).
	OnUncaught func(element.Set, error)
}

func defaultOptions() Options { return Options{PanicAsError: true} }

// WithPanicAsError toggles panic-to-error conversion.
func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

// WithObserver installs a lifecycle observer.
func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

// WithMaxConcurrency bounds how many of the scope's tasks run at once.
func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithDispatcher sets the scope's default dispatcher.
func WithDispatcher(d dispatch.Dispatcher) Option { return func(o *Options) { o.Dispatcher = d } }

// WithElements merges set into the scope's root element set.
func WithElements(set element.Set) Option {
	return func(o *Options) { o.Elements = o.Elements.Merge(set) }
}

// WithOnUncaught registers the scope failure handler.
func WithOnUncaught(h func(element.Set, error)) Option {
	return func(o *Options) { o.OnUncaught = h }
}

// Observer receives scope and task lifecycle events. Implementations must
// be safe for concurrent use and must not panic.
type Observer interface {
	ScopeCreated(ctx context.Context)
	ScopeCancelled(ctx context.Context, cause error)
	ScopeJoined(ctx context.Context, wait time.Duration)
	TaskStarted(ctx context.Context, info TaskInfo)
	TaskFinished(ctx context.Context, info TaskInfo, dur time.Duration, err error, panicked bool)
}

// Scope owns a set of tasks and enforces structured concurrency: it is not
// finished until every task it owns has reached a terminal state, and a
// failing task (under the structured variant) cancels its siblings.
type Scope struct {
	ctx         context.Context
	cancel      context.CancelCauseFunc
	supervising bool
	detached    bool

	wg      sync.WaitGroup
	pending atomic.Int64

	mu        sync.Mutex
	failure   *FailureError
	canceled  bool
	delivered bool
	handles   []*Handle

	elems element.Set
	opts  Options
	obs   Observer
	lim   Limiter
	disp  dispatch.Dispatcher
}

// New creates a structured scope: a task failure cancels all siblings and
// surfaces exactly one primary failure with concurrent failures suppressed.
// The scope's cancellation signal is parented on parent's.
func New(parent context.Context, opts ...Option) *Scope {
	return newScope(parent, false, false, opts)
}

// NewSupervising creates a supervising scope: a failing task cancels only
// its own subtree, never siblings, and its failure never reaches the
// scope's handler or Join. Each task is individually responsible, through
// Async plus Await or a per-task uncaught handler element.
func NewSupervising(parent context.Context, opts ...Option) *Scope {
	return newScope(parent, true, false, opts)
}

// NewDetached creates a root scope with no parent cancellation signal, the
// equivalent of an unscoped global entry point. Failures in its tasks are
// never surfaced through a parent: a failure with no handler configured
// anywhere re-panics on the task goroutine and takes the process down.
// Prefer New in almost every case.
func NewDetached(opts ...Option) *Scope {
	return newScope(context.Background(), false, true, opts)
}

func newScope(parent context.Context, supervising, detached bool, optFns []Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancelCause(parent)
	s := &Scope{
		ctx:         ctx,
		cancel:      cancel,
		supervising: supervising,
		detached:    detached,
		opts:        defaultOptions(),
	}
	for _, fn := range optFns {
		fn(&s.opts)
	}
	s.elems = s.opts.Elements
	s.obs = s.opts.Observer
	s.disp = s.opts.Dispatcher
	if s.disp == nil {
		s.disp = dispatch.Goroutines()
	}
	if s.opts.MaxConcurrency > 0 {
		s.lim = newSemaphoreLimiter(s.opts.MaxConcurrency)
	}
	if s.obs != nil {
		s.obs.ScopeCreated(ctx)
	}
	return s
}

// Child creates a structured scope whose cancellation signal is parented
// on s. Options default to the parent's and may be overridden.
func (s *Scope) Child(opts ...Option) *Scope {
	return s.childScope(false, opts)
}

// SupervisingChild creates a supervising scope parented on s.
func (s *Scope) SupervisingChild(opts ...Option) *Scope {
	return s.childScope(true, opts)
}

func (s *Scope) childScope(supervising bool, optFns []Option) *Scope {
	merged := make([]Option, 0, len(optFns)+1)
	merged = append(merged, func(o *Options) { *o = s.opts })
	merged = append(merged, optFns...)
	return newScope(s.ctx, supervising, false, merged)
}

// Context returns the scope's context, cancelled when the scope is
// cancelled or a structured sibling fails.
func (s *Scope) Context() context.Context { return s.ctx }

// Elements returns the scope's root element set.
func (s *Scope) Elements() element.Set { return s.elems }

// Launch starts a fire-and-forget task. A failure of the body is never
// exposed through the returned handle's creator path; it routes to the
// scope's failure machinery instead (structured scopes cancel siblings,
// supervising scopes deliver to the task's own handler element). Launch
// returns as soon as the body is scheduled.
func (s *Scope) Launch(body func(ctx context.Context) error, opts ...TaskOption) *Handle {
	return s.launch(body, false, opts)
}

func (s *Scope) launch(body func(ctx context.Context) error, deferred bool, optFns []TaskOption) *Handle {
	var to TaskOptions
	for _, fn := range optFns {
		fn(&to)
	}
	elems := s.elems.Merge(to.Overrides)
	if to.Name != "" {
		elems = elems.Merge(NameElement(to.Name))
	} else if n, ok := NameOf(elems); ok {
		to.Name = n
	}
	info := TaskInfo{Name: to.Name, Elements: elems}

	taskCtx, taskCancel := context.WithCancelCause(s.ctx)
	h := newHandle(info, taskCancel)

	d := to.Dispatcher
	if d == nil {
		if ed, ok := DispatcherOf(elems); ok {
			d = ed
		}
	}
	if d == nil {
		d = s.disp
	}

	// A cancelled scope starts no new tasks.
	if s.ctx.Err() != nil {
		cause := context.Cause(s.ctx)
		taskCancel(cause)
		h.finish(Cancelled, cause)
		return h
	}

	s.mu.Lock()
	s.handles = append(s.handles, h)
	s.mu.Unlock()

	s.wg.Add(1)
	s.pending.Add(1)
	if err := d.Dispatch(s.ctx, func() {
		s.run(h, taskCtx, taskCancel, body, deferred)
	}); err != nil {
		taskCancel(err)
		h.finish(Cancelled, err)
		s.taskDone()
	}
	return h
}

func (s *Scope) run(h *Handle, ctx context.Context, cancel context.CancelCauseFunc, body func(ctx context.Context) error, deferred bool) {
	defer s.taskDone()
	defer cancel(nil)

	if s.lim != nil {
		if err := s.lim.Acquire(ctx); err != nil {
			h.finish(Cancelled, err)
			return
		}
		defer s.lim.Release()
	}
	if s.ctx.Err() != nil {
		h.finish(Cancelled, context.Cause(s.ctx))
		return
	}

	h.state.CompareAndSwap(int32(Created), int32(Active))
	var start time.Time
	if s.obs != nil {
		start = time.Now()
		s.obs.TaskStarted(ctx, h.info)
	}

	err, panicked := s.exec(ctx, body)

	switch {
	case err == nil:
		h.state.Store(int32(Completing))
		h.finish(Completed, nil)
	case IsCancellation(err):
		h.finish(Cancelled, err)
	default:
		// Fail the task's own subtree before bookkeeping so descendants
		// parented on this task's context unwind too.
		cancel(err)
		h.finish(Failed, err)
		if !deferred {
			s.recordFailure(h.info, err)
		}
	}

	if s.obs != nil {
		s.obs.TaskFinished(ctx, h.info, time.Since(start), err, panicked)
	}
}

func (s *Scope) exec(ctx context.Context, body func(ctx context.Context) error) (err error, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			if !s.opts.PanicAsError {
				panic(r)
			}
			panicked = true
			err = newPanicError(r)
		}
	}()
	return body(ctx), false
}

func (s *Scope) recordFailure(info TaskInfo, err error) {
	if s.detached {
		if h, ok := UncaughtOf(info.Elements); ok {
			h(info.Elements, err)
			return
		}
		if s.opts.OnUncaught != nil {
			s.opts.OnUncaught(info.Elements, err)
			return
		}
		panic(err)
	}
	if s.supervising {
		if h, ok := UncaughtOf(info.Elements); ok {
			h(info.Elements, err)
		}
		return
	}

	s.mu.Lock()
	first := s.failure == nil
	if first {
		s.failure = &FailureError{Task: info, Err: err}
	} else {
		s.failure.suppressed = append(s.failure.suppressed, &FailureError{Task: info, Err: err})
	}
	cause := s.failure
	s.mu.Unlock()

	if first {
		s.Cancel(cause)
	}
}

// Cancel cancels the scope and transitively every task and child scope
// parented on it, and prevents new tasks from starting. Cancellation is
// one-directional and idempotent; cancelling a task never cancels its
// scope. A nil cause is replaced with a plain *CancelError.
func (s *Scope) Cancel(cause error) {
	if cause == nil {
		cause = &CancelError{}
	}
	s.mu.Lock()
	wasCanceled := s.canceled
	s.canceled = true
	active := make([]*Handle, len(s.handles))
	copy(active, s.handles)
	s.mu.Unlock()

	// Running tasks move to Cancelling until their bodies observe the
	// request and unwind; terminal tasks are untouched by the CAS.
	for _, h := range active {
		h.state.CompareAndSwap(int32(Active), int32(Cancelling))
	}
	s.cancel(cause)
	if !wasCanceled && s.obs != nil {
		s.obs.ScopeCancelled(s.ctx, cause)
	}
}

// Join blocks until every task the scope owns (and, through context
// parenting, every descendant) is terminal. The recorded failure is then
// surfaced: to the OnUncaught handler when one is configured (Join returns
// nil), otherwise as Join's return value. Delivery never happens before
// all tasks are terminal; exactly one primary failure is surfaced with the
// rest suppressed. If the scope was cancelled without failing, Join
// returns the cancellation cause. Join is idempotent.
func (s *Scope) Join() error {
	var start time.Time
	if s.obs != nil {
		start = time.Now()
	}
	s.wg.Wait()
	if s.obs != nil {
		s.obs.ScopeJoined(s.ctx, time.Since(start))
	}

	s.mu.Lock()
	f := s.failure
	var deliver func(element.Set, error)
	if f != nil && !s.delivered && s.opts.OnUncaught != nil {
		s.delivered = true
		deliver = s.opts.OnUncaught
	}
	handled := s.delivered
	canceled := s.canceled
	s.mu.Unlock()

	if deliver != nil {
		deliver(s.elems, f)
	}
	if f != nil {
		if handled {
			return nil
		}
		return f
	}
	if canceled {
		return context.Cause(s.ctx)
	}
	return nil
}

// Failure returns the scope's recorded failure, if any, without waiting.
func (s *Scope) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure == nil {
		return nil
	}
	return s.failure
}

func (s *Scope) taskDone() {
	n := s.pending.Add(-1)
	s.wg.Done()
	if n == 0 {
		s.maybeDeliver()
	}
}

// maybeDeliver pushes the recorded failure to the handler once the scope
// is quiescent, so an un-joined scope still surfaces it.
func (s *Scope) maybeDeliver() {
	s.mu.Lock()
	f := s.failure
	if f == nil || s.delivered || s.opts.OnUncaught == nil {
		s.mu.Unlock()
		return
	}
	s.delivered = true
	s.mu.Unlock()
	s.opts.OnUncaught(s.elems, f)
}
