// Package queue staggers outbound provider calls: tasks start in submission
// order, at most C run at once, and consecutive starts are at least D apart.
// The queue never retries; a failed task only affects its own caller.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fleveque/restaurant-images/internal/metrics"
)

// ErrClosed is returned for tasks submitted to, or still waiting in, a closed queue.
var ErrClosed = errors.New("queue closed")

// backlog bounds how many tasks may wait for dispatch before Enqueue blocks.
const backlog = 256

type task struct {
	ctx        context.Context
	run        func(ctx context.Context) error
	enqueuedAt time.Time
	done       chan error // buffered, receives exactly one value
}

// Stats is a snapshot of queue occupancy.
type Stats struct {
	Pending     int64         `json:"pending"`
	InFlight    int64         `json:"in_flight"`
	Completed   uint64        `json:"completed"`
	Failed      uint64        `json:"failed"`
	Concurrency int           `json:"concurrency"`
	Spacing     time.Duration `json:"spacing_ns"`
}

// Queue is a FIFO dispatcher with fixed concurrency and start spacing.
type Queue struct {
	tasks       chan *task
	slots       chan struct{} // semaphore, one token per running task
	limiter     *rate.Limiter // one start per spacing interval
	concurrency int
	spacing     time.Duration

	ctx     context.Context // cancelled by Close
	cancel  context.CancelFunc
	stopped chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	pending   atomic.Int64
	inFlight  atomic.Int64
	completed atomic.Uint64
	failed    atomic.Uint64

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New starts a queue running at most concurrency tasks at once, with task
// starts at least spacing apart. concurrency below 1 is treated as 1 and a
// zero spacing disables the stagger.
func New(concurrency int, spacing time.Duration, m *metrics.Metrics, logger *zap.Logger) *Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if spacing > 0 {
		limit = rate.Every(spacing)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:       make(chan *task, backlog),
		slots:       make(chan struct{}, concurrency),
		limiter:     rate.NewLimiter(limit, 1), // burst of 1: starts never bunch up
		concurrency: concurrency,
		spacing:     spacing,
		ctx:         ctx,
		cancel:      cancel,
		stopped:     make(chan struct{}),
		metrics:     m,
		logger:      logger,
	}

	q.wg.Add(1)
	go q.dispatch()
	return q
}

// Enqueue submits run and blocks until it has finished, returning its error.
// If ctx ends first, Enqueue returns ctx.Err(); a task that has not started
// by then is skipped, and a running task sees the cancellation through ctx.
func (q *Queue) Enqueue(ctx context.Context, run func(ctx context.Context) error) error {
	t, err := q.submit(ctx, run)
	if err != nil {
		return err
	}
	return q.wait(ctx, t)
}

// submit places a task at the tail of the queue and returns once it is queued.
func (q *Queue) submit(ctx context.Context, run func(ctx context.Context) error) (*task, error) {
	if q.ctx.Err() != nil {
		return nil, ErrClosed
	}

	t := &task{
		ctx:        ctx,
		run:        run,
		enqueuedAt: time.Now(),
		done:       make(chan error, 1),
	}

	q.metrics.SetQueueDepth(int(q.pending.Add(1)))
	select {
	case q.tasks <- t:
		return t, nil
	case <-ctx.Done():
		q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
		return nil, ctx.Err()
	case <-q.ctx.Done():
		q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
		return nil, ErrClosed
	}
}

func (q *Queue) wait(ctx context.Context, t *task) error {
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.stopped:
		select {
		case err := <-t.done:
			return err
		default:
			return ErrClosed
		}
	}
}

// Stats returns current occupancy counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:     q.pending.Load(),
		InFlight:    q.inFlight.Load(),
		Completed:   q.completed.Load(),
		Failed:      q.failed.Load(),
		Concurrency: q.concurrency,
		Spacing:     q.spacing,
	}
}

// Close stops dispatching, fails tasks that have not started with ErrClosed,
// and waits for running tasks to return.
func (q *Queue) Close() {
	q.once.Do(func() {
		q.cancel()
		q.wg.Wait()
		q.drain()
		close(q.stopped)
	})
}

func (q *Queue) dispatch() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case t := <-q.tasks:
			if !q.start(t) {
				return
			}
		}
	}
}

// start waits for a free slot and the spacing interval, then launches t.
// It returns false once the queue is closing.
func (q *Queue) start(t *task) bool {
	if err := t.ctx.Err(); err != nil {
		q.finishUnstarted(t, err)
		return true
	}

	select {
	case q.slots <- struct{}{}:
	case <-q.ctx.Done():
		q.finishUnstarted(t, ErrClosed)
		return false
	}

	if err := q.limiter.Wait(q.ctx); err != nil {
		<-q.slots
		q.finishUnstarted(t, ErrClosed)
		return false
	}

	// The caller may have given up while we waited for a slot.
	if err := t.ctx.Err(); err != nil {
		<-q.slots
		q.finishUnstarted(t, err)
		return true
	}

	q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
	q.metrics.RecordQueueWait(time.Since(t.enqueuedAt).Seconds())
	q.inFlight.Add(1)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer func() { <-q.slots }()

		err := q.execute(t)
		q.inFlight.Add(-1)
		if err != nil {
			q.failed.Add(1)
			q.logger.Debug("queued task failed", zap.Error(err))
		} else {
			q.completed.Add(1)
		}
		t.done <- err
	}()
	return true
}

// execute runs the task, converting a panic into an error so one task cannot
// take the dispatcher down.
func (q *Queue) execute(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queued task panicked: %v", r)
		}
	}()
	return t.run(t.ctx)
}

func (q *Queue) finishUnstarted(t *task, err error) {
	q.metrics.SetQueueDepth(int(q.pending.Add(-1)))
	t.done <- err
}

// drain fails every task still buffered after the dispatcher exited.
func (q *Queue) drain() {
	for {
		select {
		case t := <-q.tasks:
			q.finishUnstarted(t, ErrClosed)
		default:
			return
		}
	}
}
