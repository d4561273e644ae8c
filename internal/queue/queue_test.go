package queue

import (
	"context"
	"errors"
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

func TestQueue_RunsTaskAndReturnsError(t *testing.T) {
	q := New(1, 0, nil, nil)
	defer q.Close()

	ran := false
	err := q.Enqueue(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	wantErr := errors.New("provider exploded")
	err = q.Enqueue(context.Background(), func(context.Context) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)

	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Completed)
	assert.Equal(t, uint64(1), stats.Failed)
}

func TestQueue_DispatchesInSubmissionOrder(t *testing.T) {
	q := New(1, 0, nil, nil)
	defer q.Close()

	ctx := context.Background()
	release := make(chan struct{})

	var mu sync.Mutex
	var order []int

	blocker, err := q.submit(ctx, func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	const n = 5
	tasks := make([]*task, 0, n)
	for i := 0; i < n; i++ {
		i := i
		tk, err := q.submit(ctx, func(context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
		tasks = append(tasks, tk)
	}

	close(release)
	require.NoError(t, q.wait(ctx, blocker))
	for _, tk := range tasks {
		require.NoError(t, q.wait(ctx, tk))
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestQueue_NeverExceedsConcurrency(t *testing.T) {
	const concurrency = 2
	q := New(concurrency, 0, nil, nil)
	defer q.Close()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(context.Background(), func(context.Context) error {
				n := running.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				running.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(concurrency))
	assert.Equal(t, uint64(8), q.Stats().Completed)
}

func TestQueue_SpacesStarts(t *testing.T) {
	const spacing = 50 * time.Millisecond
	q := New(3, spacing, nil, nil)
	defer q.Close()

	var mu sync.Mutex
	var starts []time.Time

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Enqueue(context.Background(), func(context.Context) error {
				mu.Lock()
				starts = append(starts, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	require.Len(t, starts, 3)
	for i := 1; i < len(starts); i++ {
		gap := starts[i].Sub(starts[i-1])
		// rate.Limiter reservations are exact; allow scheduler jitter only.
		assert.GreaterOrEqual(t, gap, spacing-10*time.Millisecond, "gap %d", i)
	}
}

func TestQueue_FailureIsIsolated(t *testing.T) {
	q := New(2, 0, nil, nil)
	defer q.Close()

	ctx := context.Background()
	errs := make([]error, 3)
	var wg sync.WaitGroup
	runs := []func(context.Context) error{
		func(context.Context) error { return errors.New("boom") },
		func(context.Context) error { panic("worse") },
		func(context.Context) error { return nil },
	}
	for i, run := range runs {
		wg.Add(1)
		go func(i int, run func(context.Context) error) {
			defer wg.Done()
			errs[i] = q.Enqueue(ctx, run)
		}(i, run)
	}
	wg.Wait()

	assert.EqualError(t, errs[0], "boom")
	assert.ErrorContains(t, errs[1], "panicked")
	assert.NoError(t, errs[2])

	// The queue still works afterwards.
	assert.NoError(t, q.Enqueue(ctx, func(context.Context) error { return nil }))
}

func TestQueue_SkipsTasksCancelledBeforeStart(t *testing.T) {
	q := New(1, 0, nil, nil)
	defer q.Close()

	bg := context.Background()
	release := make(chan struct{})
	blocker, err := q.submit(bg, func(context.Context) error {
		<-release
		return nil
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(bg)
	var ran atomic.Bool
	skipped, err := q.submit(ctx, func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)

	cancel()
	close(release)
	require.NoError(t, q.wait(bg, blocker))

	// Wait on a background context so we observe the dispatcher's verdict.
	err = q.wait(bg, skipped)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran.Load())
}

func TestQueue_CloseFailsWaitingTasks(t *testing.T) {
	q := New(1, 0, nil, nil)

	ctx := context.Background()
	release := make(chan struct{})
	started := make(chan struct{})
	blocker, err := q.submit(ctx, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	waiting, err := q.submit(ctx, func(context.Context) error { return nil })
	require.NoError(t, err)

	<-started
	closed := make(chan struct{})
	go func() {
		q.Close()
		close(closed)
	}()

	// The blocker holds the only slot until Close has cancelled dispatch, so
	// the waiting task can never be started.
	require.Eventually(t, func() bool { return q.ctx.Err() != nil }, time.Second, time.Millisecond)
	close(release)
	<-closed

	assert.NoError(t, q.wait(ctx, blocker))
	assert.ErrorIs(t, q.wait(ctx, waiting), ErrClosed)
	assert.ErrorIs(t, q.Enqueue(ctx, func(context.Context) error { return nil }), ErrClosed)
}
