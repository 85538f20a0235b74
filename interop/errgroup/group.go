// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics using the weft scope implementation. It enables incremental
// migration of errgroup call sites without changing their shape.
package errgroup

import (
	"context"

	"github.com/weftrun/weft/scope"
)

// Group is an errgroup-like wrapper over a structured scope: the first
// non-nil error cancels the rest and is returned from Wait. Suppressed
// sibling errors remain reachable through errors.As on the returned
// *scope.FailureError.
type Group struct {
	s   *scope.Scope
	ctx context.Context
}

// WithContext creates a Group bound to ctx. The returned context is
// cancelled when any function passed to Go returns a non-nil error.
func WithContext(ctx context.Context) (*Group, context.Context) {
	s := scope.New(ctx)
	return &Group{s: s, ctx: s.Context()}, s.Context()
}

// Go starts a function. A non-nil return signals failure.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	g.s.Launch(func(context.Context) error {
		return f()
	})
}

// Wait blocks until all functions have returned. It returns the first
// non-nil error, the parent context's error if that fired first, or nil
// on success.
func (g *Group) Wait() error {
	if err := g.s.Join(); err != nil && !scope.IsCancellation(err) {
		return err
	}
	return g.ctx.Err()
}
