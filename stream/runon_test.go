package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftrun/weft/dispatch"
)

func TestRunOnDeliversAllValues(t *testing.T) {
	t.Parallel()
	got, err := ToSlice(context.Background(), RunOn(Range(0, 50), dispatch.Goroutines(), 8))
	require.NoError(t, err)
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v, "buffering must not reorder")
	}
}

func TestRunOnMovesUpstreamOffCollector(t *testing.T) {
	t.Parallel()
	conf := dispatch.NewConfined("producer")
	defer conf.Close()

	producerCh := make(chan struct{}, 1)
	s := New(func(ctx context.Context, emit EmitFunc[int]) error {
		producerCh <- struct{}{} // proves the producer ran off-thread: it
		// started while the collector was blocked in Receive.
		return emit(ctx, 1)
	})
	got, err := ToSlice(context.Background(), RunOn(s, conf, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{1}, got)
	<-producerCh
}

func TestRunOnPropagatesUpstreamFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	failing := New(func(ctx context.Context, emit EmitFunc[int]) error {
		if err := emit(ctx, 1); err != nil {
			return err
		}
		return boom
	})
	var got []int
	err := RunOn(failing, dispatch.Goroutines(), 4).Collect(context.Background(), func(v int) error {
		got = append(got, v)
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1}, got, "values emitted before the failure are still delivered")
}

func TestRunOnStopsUpstreamOnDownstreamFailure(t *testing.T) {
	t.Parallel()
	stop := errors.New("stop")
	emitted := make(chan int, 1000)
	infinite := New(func(ctx context.Context, emit EmitFunc[int]) error {
		for i := 0; ; i++ {
			if err := emit(ctx, i); err != nil {
				return err
			}
			emitted <- i
		}
	})
	err := RunOn(infinite, dispatch.Goroutines(), 2).Collect(context.Background(), func(v int) error {
		if v >= 3 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop, "downstream failure surfaces unchanged through RunOn")
	// The producer goroutine has been cancelled; RunOn joined it before
	// returning, so no further emissions can happen.
	close(emitted)
}

func TestRunOnRespectsCollectorContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	blocked := New(func(ctx context.Context, emit EmitFunc[int]) error {
		<-ctx.Done() // upstream never emits
		return ctx.Err()
	})
	err := RunOn(blocked, dispatch.Goroutines(), 0).Collect(ctx, func(int) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunOnCatchUpstreamOfBufferStillWorks(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	failing := New(func(_ context.Context, _ EmitFunc[int]) error { return boom })
	pipeline := RunOn(
		Catch(failing, func(ctx context.Context, err error, emit EmitFunc[int]) error {
			return emit(ctx, -1)
		}),
		dispatch.Goroutines(), 1)
	got, err := ToSlice(context.Background(), pipeline)
	require.NoError(t, err)
	assert.Equal(t, []int{-1}, got)
}
