// Package async implements the Asynchronous Shim of spec.md §4.5: a thin
// scheduling wrapper that runs a synchronous Channel operation on a worker
// goroutine and hands the caller back a handle to wait on or cancel.
//
// The worker pool is grounded on this codebase's TransferQueue
// (pkg/payload/transfer/queue.go): a fixed number of goroutines pulling
// jobs off a channel, started and stopped together. The non-blocking
// submission fast path uses golang.org/x/sync/semaphore's TryAcquire,
// which this codebase does not itself use but which several of its
// sibling examples reach for to implement a "submit now or fail" gate
// without spinning up a whole queue just to ask "is a slot free".
package async

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Shim runs submitted operations on a bounded pool of worker goroutines.
type Shim struct {
	sem *semaphore.Weighted

	jobs   chan job
	wg     sync.WaitGroup
	stopCh chan struct{}
}

type job struct {
	run  func() (any, error)
	task *Task
}

// New creates a Shim with the given number of workers and submission queue
// depth, and starts its workers immediately.
func New(workers, queueDepth int) *Shim {
	if workers <= 0 {
		workers = 1
	}
	if queueDepth <= 0 {
		queueDepth = workers
	}
	s := &Shim{
		sem:    semaphore.NewWeighted(int64(workers)),
		jobs:   make(chan job, queueDepth),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.runWorker()
	}
	return s
}

func (s *Shim) runWorker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case j, ok := <-s.jobs:
			if !ok {
				return
			}
			s.execute(j)
		}
	}
}

func (s *Shim) execute(j job) {
	if j.task.Done() {
		// Canceled while still queued: do not start it.
		return
	}
	_ = s.sem.Acquire(context.Background(), 1)
	defer s.sem.Release(1)

	result, err := j.run()
	j.task.complete(result, err)
}

// Submit queues fn to run on a worker, blocking if the submission queue is
// full, and returns a Task to observe its completion. Per spec.md §4.5,
// canceling the returned Task does not interrupt fn once it has started
// running -- cancellation only prevents a not-yet-started fn from running,
// and lets a caller stop waiting on Get without affecting the underlying
// synchronous operation.
func (s *Shim) Submit(fn func() (any, error)) *Task {
	t := newTask()
	select {
	case <-s.stopCh:
		t.complete(nil, ErrShimClosed)
		return t
	default:
	}
	select {
	case s.jobs <- job{run: fn, task: t}:
	case <-s.stopCh:
		t.complete(nil, ErrShimClosed)
	}
	return t
}

// TrySubmit attempts to queue fn without blocking. It returns nil, false
// if no worker slot is immediately available instead of waiting for one.
func (s *Shim) TrySubmit(fn func() (any, error)) (*Task, bool) {
	if !s.sem.TryAcquire(1) {
		return nil, false
	}
	s.sem.Release(1)

	t := newTask()
	select {
	case s.jobs <- job{run: fn, task: t}:
		return t, true
	default:
		return nil, false
	}
}

// Close stops accepting new work and waits for in-flight jobs to finish.
// Jobs still queued but not yet started are dropped, mirroring
// TransferQueue.Stop's shutdown behavior.
func (s *Shim) Close() {
	close(s.stopCh)
	s.wg.Wait()
}
