package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestGoroutinesRunsConcurrently(t *testing.T) {
	t.Parallel()
	d := Goroutines()
	var wg sync.WaitGroup
	var n atomic.Int32
	wg.Add(10)
	for i := 0; i < 10; i++ {
		err := d.Dispatch(context.Background(), func() {
			n.Add(1)
			wg.Done()
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.Equal(t, int32(10), n.Load())
}

func TestUnconfinedRunsInline(t *testing.T) {
	t.Parallel()
	ran := false
	err := Unconfined().Dispatch(context.Background(), func() { ran = true })
	require.NoError(t, err)
	// Inline policy: fn finished before Dispatch returned, no
	// synchronization needed.
	assert.True(t, ran)
}

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()
	const limit = 3
	const total = 20
	p := NewPool(limit)
	var cur, maxSeen atomic.Int64
	var wg sync.WaitGroup
	wg.Add(total)
	for i := 0; i < total; i++ {
		err := p.Dispatch(context.Background(), func() {
			defer wg.Done()
			c := cur.Add(1)
			for {
				m := maxSeen.Load()
				if c <= m || maxSeen.CompareAndSwap(m, c) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			cur.Add(-1)
		})
		require.NoError(t, err)
	}
	wg.Wait()
	assert.LessOrEqual(t, maxSeen.Load(), int64(limit))
}

func TestPoolDispatchRespectsContext(t *testing.T) {
	t.Parallel()
	p := NewPool(1)
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, p.Dispatch(context.Background(), func() {
		defer wg.Done()
		<-release
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Dispatch(ctx, func() { t.Error("must not run") })
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
	wg.Wait()
}

func TestNewPoolPanicsOnNonPositive(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { NewPool(0) })
}

func TestConfinedSequentialFIFO(t *testing.T) {
	t.Parallel()
	c := NewConfined("test")
	defer c.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup
	wg.Add(50)
	for i := 0; i < 50; i++ {
		require.NoError(t, c.Dispatch(context.Background(), func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v, "confined dispatcher must preserve FIFO order")
	}
}

func TestConfinedReentrantDispatch(t *testing.T) {
	t.Parallel()
	c := NewConfined("reentrant")
	defer c.Close()

	done := make(chan struct{})
	require.NoError(t, c.Dispatch(context.Background(), func() {
		// Dispatching from the confined goroutine must queue, not deadlock.
		_ = c.Dispatch(context.Background(), func() { close(done) })
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reentrant dispatch never ran")
	}
}

func TestConfinedCloseDrainsAndRejects(t *testing.T) {
	t.Parallel()
	c := NewConfined("closing")
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.NoError(t, c.Dispatch(context.Background(), func() {
			ran.Add(1)
		}))
	}
	c.Close()
	assert.Equal(t, int32(10), ran.Load(), "Close must drain the queue")
	assert.ErrorIs(t, c.Dispatch(context.Background(), func() {}), ErrConfinedClosed)
	// Idempotent.
	c.Close()
	assert.Equal(t, "closing", c.Name())
}
