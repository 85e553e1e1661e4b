package loader

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/beadring/pkg/errors"
	"github.com/matzehuels/beadring/pkg/observability"
)

// DefaultMaxConcurrent is used when NewQueue is given a limit below 1.
const DefaultMaxConcurrent = 4

// ErrDestroyed is returned for tasks rejected by [Queue.Destroy].
var ErrDestroyed = errors.New(errors.ErrCodeQueueDestroyed, "loader queue destroyed")

// Option configures a [Queue].
type Option func(*Queue)

// WithLogger sets the logger for queue diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(q *Queue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithName labels the queue in log output.
func WithName(name string) Option {
	return func(q *Queue) { q.name = name }
}

// Queue is a bounded-concurrency FIFO task queue. It is safe for concurrent use.
type Queue struct {
	mu        sync.Mutex
	max       int
	running   int
	pending   []*ticket
	destroyed bool

	name   string
	logger *log.Logger
}

// ticket is a pending task's claim on a slot. ready receives nil when the
// slot is granted, or the rejection error.
type ticket struct {
	ready    chan error
	enqueued time.Time
}

// NewQueue creates a queue that runs at most maxConcurrent tasks at once.
func NewQueue(maxConcurrent int, opts ...Option) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	q := &Queue{
		max:    maxConcurrent,
		name:   "loader",
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue runs task on q once a slot is free and returns its result.
// It blocks until the task completes, is rejected, or ctx ends while the
// task is still pending.
func Enqueue[T any](ctx context.Context, q *Queue, task func(context.Context) (T, error)) (T, error) {
	var zero T
	t, err := q.reserve(ctx)
	if err != nil {
		return zero, err
	}
	if err := q.wait(ctx, t); err != nil {
		return zero, err
	}
	return run(ctx, q, task)
}

// Go reserves a place in line immediately and runs task in a new goroutine
// once a slot is free. The returned channel receives the task's error (or
// the rejection) and is then closed.
func (q *Queue) Go(ctx context.Context, task func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	t, err := q.reserve(ctx)
	if err != nil {
		done <- err
		close(done)
		return done
	}
	go func() {
		defer close(done)
		if err := q.wait(ctx, t); err != nil {
			done <- err
			return
		}
		_, err := run(ctx, q, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, task(ctx)
		})
		done <- err
	}()
	return done
}

func run[T any](ctx context.Context, q *Queue, task func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := task(ctx)
	q.release(ctx, time.Since(start), err)
	return v, err
}

// reserve claims a slot or joins the pending list. A nil ticket means the
// slot was granted on the spot.
func (q *Queue) reserve(ctx context.Context) (*ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return nil, ErrDestroyed
	}
	if q.running < q.max && len(q.pending) == 0 {
		q.running++
		observability.Loader().OnStart(ctx, q.running, 0, 0)
		return nil, nil
	}

	t := &ticket{ready: make(chan error, 1), enqueued: time.Now()}
	q.pending = append(q.pending, t)
	q.logger.Debug("task queued", "queue", q.name, "pending", len(q.pending), "running", q.running)
	observability.Loader().OnEnqueue(ctx, len(q.pending))
	return t, nil
}

// wait blocks until t is granted a slot or rejected. If ctx ends first the
// ticket is withdrawn.
func (q *Queue) wait(ctx context.Context, t *ticket) error {
	if t == nil {
		return nil
	}
	select {
	case err := <-t.ready:
		return err
	case <-ctx.Done():
	}

	q.mu.Lock()
	withdrawn := q.withdraw(t)
	q.mu.Unlock()
	if withdrawn {
		return ctx.Err()
	}

	// Granted or rejected between ctx.Done and the lock.
	if err := <-t.ready; err != nil {
		return err
	}
	q.release(ctx, 0, ctx.Err())
	return ctx.Err()
}

func (q *Queue) withdraw(t *ticket) bool {
	for i, p := range q.pending {
		if p == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) release(ctx context.Context, took time.Duration, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.running--
	observability.Loader().OnFinish(ctx, q.running, len(q.pending), took, err)
	q.dispatch(ctx)
}

// dispatch starts pending tasks while slots are free. Callers hold q.mu.
func (q *Queue) dispatch(ctx context.Context) {
	for !q.destroyed && q.running < q.max && len(q.pending) > 0 {
		t := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.running++
		observability.Loader().OnStart(ctx, q.running, len(q.pending), time.Since(t.enqueued))
		t.ready <- nil
	}
}

// Resize changes the concurrency ceiling. Limits below 1 are clamped to 1.
// Queued tasks start immediately if the new limit allows.
func (q *Queue) Resize(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.max = max(n, 1)
	q.logger.Debug("queue resized", "queue", q.name, "max", q.max)
	q.dispatch(context.Background())
}

// Destroy rejects all pending tasks and any later submissions with
// [ErrDestroyed]. Running tasks are not interrupted. Destroy is idempotent.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.destroyed {
		return
	}
	q.destroyed = true
	for _, t := range q.pending {
		t.ready <- ErrDestroyed
	}
	if n := len(q.pending); n > 0 {
		q.logger.Debug("queue destroyed", "queue", q.name, "rejected", n)
	}
	q.pending = nil
}

// Running returns the number of tasks currently running.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Pending returns the number of tasks waiting for a slot.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// MaxConcurrent returns the current concurrency ceiling.
func (q *Queue) MaxConcurrent() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.max
}

// Destroyed reports whether Destroy has been called.
func (q *Queue) Destroyed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.destroyed
}
