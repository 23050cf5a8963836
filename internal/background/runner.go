package background

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Varun5711/shortqr/internal/logger"
)

// Task is a side effect run off the request path.
type Task func(ctx context.Context) error

// Runner executes fire-and-forget tasks with a cap on how many run at once.
// Submissions beyond the cap are dropped rather than queued.
type Runner struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	log     *logger.Logger
	wg      sync.WaitGroup
	dropped atomic.Int64
	failed  atomic.Int64
}

func NewRunner(maxInFlight int, taskTimeout time.Duration, log *logger.Logger) *Runner {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	if taskTimeout <= 0 {
		taskTimeout = 5 * time.Second
	}
	return &Runner{
		sem:     semaphore.NewWeighted(int64(maxInFlight)),
		timeout: taskTimeout,
		log:     log,
	}
}

// Go starts task in the background and reports whether it was accepted.
// The task gets a fresh context bounded by the runner's timeout.
func (r *Runner) Go(name string, task Task) bool {
	if !r.sem.TryAcquire(1) {
		r.dropped.Add(1)
		r.log.Warn("Background runner saturated, dropping task %s", name)
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.sem.Release(1)
		defer func() {
			if p := recover(); p != nil {
				r.failed.Add(1)
				r.log.Error("Background task %s panicked: %v", name, p)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := task(ctx); err != nil {
			r.failed.Add(1)
			r.log.Warn("Background task %s failed: %v", name, err)
		}
	}()
	return true
}

// Wait blocks until running tasks finish or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Dropped() int64 { return r.dropped.Load() }

func (r *Runner) Failed() int64 { return r.failed.Load() }
