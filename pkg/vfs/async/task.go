package async

import (
	"context"
	"errors"
	"sync"
)

// ErrShimClosed is returned by a Task's result when the shim was closed
// before the task could run.
var ErrShimClosed = errors.New("async shim is closed")

// ErrCanceled is returned by Get when the Task was canceled before it
// completed.
var ErrCanceled = errors.New("async task canceled")

// Task is a handle to an operation running on a Shim's worker pool.
type Task struct {
	once   sync.Once
	done   chan struct{}
	result any
	err    error
}

func newTask() *Task {
	return &Task{done: make(chan struct{})}
}

// complete reports the task's outcome. Only the first call has any effect,
// so a Cancel racing against a worker's own completion can never cause a
// double-close of done.
func (t *Task) complete(result any, err error) {
	t.once.Do(func() {
		t.result = result
		t.err = err
		close(t.done)
	})
}

// Get blocks until the task completes or ctx is done, whichever comes
// first.
func (t *Task) Get(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.result, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done reports whether the task has completed.
func (t *Task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Cancel marks the task as canceled from the caller's perspective. Per
// spec.md §4.5, this does not interrupt a synchronous operation that has
// already started running on its worker -- that operation runs to
// completion regardless. Cancel only short-circuits a caller that no
// longer wants to wait for it: a subsequent Get, if the task had not
// already completed by the time Cancel ran, returns ErrCanceled.
func (t *Task) Cancel() {
	t.complete(nil, ErrCanceled)
}
