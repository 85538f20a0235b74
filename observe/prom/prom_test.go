package prom

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftrun/weft/scope"
)

func TestMetricsObserveLifecycle(t *testing.T) {
	t.Parallel()
	m := New("")
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	s := scope.New(context.Background(), scope.WithObserver(m))
	done := make(chan struct{})
	s.Launch(func(_ context.Context) error {
		close(done)
		return nil
	})
	// Fail only after the sibling ran, so both tasks reach the observer.
	s.Launch(func(_ context.Context) error {
		<-done
		return errors.New("boom")
	})
	_ = s.Join()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.scopesCreated))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.tasksStarted))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.activeTasks))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.joins))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.scopesCancelled), "fail-fast cancel counted once")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksFinished.WithLabelValues("completed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksFinished.WithLabelValues("failed")))
}

func TestOutcomeLabels(t *testing.T) {
	t.Parallel()
	m := New("weftapp")
	reg := prometheus.NewRegistry()
	m.MustRegister(reg)

	s := scope.New(context.Background(), scope.WithObserver(m))
	ready := make(chan struct{})
	s.Launch(func(ctx context.Context) error {
		close(ready)
		<-ctx.Done()
		return ctx.Err()
	})
	s.Launch(func(_ context.Context) error {
		<-ready
		panic("kaboom")
	})
	_ = s.Join()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksFinished.WithLabelValues("panicked")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.tasksFinished.WithLabelValues("cancelled")))
}

func TestRegisterCollision(t *testing.T) {
	t.Parallel()
	reg := prometheus.NewRegistry()
	require.NoError(t, New("").Register(reg))
	assert.Error(t, New("").Register(reg), "same names cannot be registered twice")
}
