package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/weftrun/weft/channel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConstructionDoesNoWork(t *testing.T) {
	t.Parallel()
	var ran atomic.Int32
	s := New(func(ctx context.Context, emit EmitFunc[int]) error {
		ran.Add(1)
		return emit(ctx, 1)
	})
	_ = Map(Filter(s, func(int) bool { return true }), func(v int) int { return v })
	assert.Equal(t, int32(0), ran.Load(), "building a pipeline must not run the producer")
}

// Collecting twice yields two independent, equal executions: the cold
// contract.
func TestColdReExecution(t *testing.T) {
	t.Parallel()
	var runs atomic.Int32
	s := New(func(ctx context.Context, emit EmitFunc[int]) error {
		runs.Add(1)
		for i := 1; i <= 3; i++ {
			if err := emit(ctx, i); err != nil {
				return err
			}
		}
		return nil
	})

	first, err := ToSlice(context.Background(), s)
	require.NoError(t, err)
	second, err := ToSlice(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, first)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), runs.Load(), "each collection re-runs the producer from scratch")
}

func TestOfAndRange(t *testing.T) {
	t.Parallel()
	got, err := ToSlice(context.Background(), Of("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	nums, err := ToSlice(context.Background(), Range(5, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{5, 6, 7}, nums)
}

func TestMapFilterTake(t *testing.T) {
	t.Parallel()
	evensDoubled := Map(
		Filter(Range(0, 100), func(v int) bool { return v%2 == 0 }),
		func(v int) int { return v * 10 },
	)
	got, err := ToSlice(context.Background(), Take(evensDoubled, 4))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 20, 40, 60}, got)
}

func TestTakeStopsInfiniteProducer(t *testing.T) {
	t.Parallel()
	naturals := New(func(ctx context.Context, emit EmitFunc[int]) error {
		for i := 0; ; i++ {
			if err := emit(ctx, i); err != nil {
				return err
			}
		}
	})
	got, err := ToSlice(context.Background(), Take(naturals, 3))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestTakeZero(t *testing.T) {
	t.Parallel()
	got, err := ToSlice(context.Background(), Take(Of(1, 2), 0))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTransformExpandsAndFails(t *testing.T) {
	t.Parallel()
	dup := Transform(Of(1, 2), func(ctx context.Context, v int, emit EmitFunc[int]) error {
		if err := emit(ctx, v); err != nil {
			return err
		}
		return emit(ctx, v)
	})
	got, err := ToSlice(context.Background(), dup)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 2, 2}, got)

	boom := errors.New("boom")
	failing := Transform(Of(1), func(_ context.Context, _ int, _ EmitFunc[int]) error {
		return boom
	})
	_, err = ToSlice(context.Background(), failing)
	assert.ErrorIs(t, err, boom)
}

func TestConcat(t *testing.T) {
	t.Parallel()
	got, err := ToSlice(context.Background(), Concat(Of(1), &Stream[int]{}, Of(2, 3)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestCollectorErrorStopsCollection(t *testing.T) {
	t.Parallel()
	stop := errors.New("stop")
	var emitted atomic.Int32
	s := OnEach(Range(0, 100), func(int) { emitted.Add(1) })
	err := s.Collect(context.Background(), func(v int) error {
		if v == 5 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, int32(6), emitted.Load(), "production stops at the failing emission")
}

func TestCancellationObservedAtEmission(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	seen := 0
	err := Range(0, 1000000).Collect(ctx, func(v int) error {
		seen++
		if v == 10 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 11, seen, "emission after cancel must not reach the collector")
}

func TestCollectInto(t *testing.T) {
	t.Parallel()
	sink := channel.New[int](channel.Unlimited)
	require.NoError(t, CollectInto(context.Background(), Of(7, 8), sink))
	sink.Close()
	v, err := sink.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	v, err = sink.Receive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, v)
	_, err = sink.Receive(context.Background())
	assert.ErrorIs(t, err, channel.ErrClosed)
}

func TestFromChannelDrains(t *testing.T) {
	t.Parallel()
	ch := channel.New[int](channel.Unlimited)
	for i := 1; i <= 3; i++ {
		require.NoError(t, ch.Send(context.Background(), i))
	}
	ch.Close()
	got, err := ToSlice(context.Background(), FromChannel(ch))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestZeroValueStreamIsEmpty(t *testing.T) {
	t.Parallel()
	var s Stream[int]
	got, err := ToSlice(context.Background(), &s)
	require.NoError(t, err)
	assert.Empty(t, got)
}
