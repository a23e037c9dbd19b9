// Package file implements the Regular File abstraction of spec.md §4.2: a
// Byte Store plus metadata plus a reader/writer lock, shared by every
// Channel open on the same file identity.
package file

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/marmos91/memvfs/pkg/vfs/attrs"
	"github.com/marmos91/memvfs/pkg/vfs/store"
)

// RegularFile is one file's shared, lock-protected state. Every open
// Channel on the same file holds a reference to the same *RegularFile; the
// store is only ever touched while holding this file's read or write lock.
// The lock does not cover attrs: Channel stamps access and modified times
// after the lock has been released, relying on the Attrs implementation's
// own synchronization.
type RegularFile struct {
	id uuid.UUID

	store *store.ByteStore
	attrs attrs.Attrs

	lock *rwlock

	openCount atomic.Int32
}

// New creates a RegularFile backed by a fresh, empty ByteStore using the
// given page size and pool.
func New(pageSize uint64, pool *store.PagePool, a attrs.Attrs) *RegularFile {
	return &RegularFile{
		id:    uuid.New(),
		store: store.New(pageSize, pool),
		attrs: a,
		lock:  newRWLock(),
	}
}

// ID returns the file's identity, stable for its lifetime.
func (f *RegularFile) ID() uuid.UUID {
	return f.id
}

// Store returns the file's backing ByteStore. Callers must hold the read
// or write lock (via ReadLocked/WriteLocked) before touching it.
func (f *RegularFile) Store() *store.ByteStore {
	return f.store
}

// Attrs returns the file's metadata collaborator.
func (f *RegularFile) Attrs() attrs.Attrs {
	return f.attrs
}

// ReadLocked runs fn while holding the file's read lock. Multiple readers
// may run concurrently; a write lock holder excludes all of them. Returns
// ctx.Err() without running fn if ctx is done before the lock is granted.
func (f *RegularFile) ReadLocked(ctx context.Context, fn func() error) error {
	release, err := f.lock.RLock(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// WriteLocked runs fn while holding the file's write lock, excluding all
// readers and other writers. Returns ctx.Err() without running fn if ctx
// is done before the lock is granted.
func (f *RegularFile) WriteLocked(ctx context.Context, fn func() error) error {
	release, err := f.lock.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// Open registers a new open reference (a Channel) against this file and
// returns the new open count.
func (f *RegularFile) Open() int32 {
	return f.openCount.Add(1)
}

// CloseRef releases one open reference. When the open count and the link
// count both reach zero, the file's content is no longer reachable from
// any path or handle and its ByteStore is released back to its pool.
// Returns true if this call triggered that release.
func (f *RegularFile) CloseRef() bool {
	remaining := f.openCount.Add(-1)
	if remaining > 0 {
		return false
	}
	if f.attrs.LinkCount() > 0 {
		return false
	}
	f.store.Release()
	return true
}

// OpenCount returns the number of live Channels referencing this file.
func (f *RegularFile) OpenCount() int32 {
	return f.openCount.Load()
}

// SplitCOW gives this file its own private copy of its ByteStore, breaking
// any sharing with another file identity that was pointing at the same
// pages (a hard-link implementation's copy-on-write split, the in-memory
// analogue of the reference codebase's COWSourcePayloadID bookkeeping: a
// second identity references the same content until one of them writes,
// at which point it needs content of its own). It must be called while
// holding the file's write lock.
func (f *RegularFile) SplitCOW() error {
	dup, err := f.store.Copy()
	if err != nil {
		return err
	}
	old := f.store
	f.store = dup
	old.Release()
	return nil
}
