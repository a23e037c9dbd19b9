// Package lock implements the Advisory Lock of spec.md §4.4: an unenforced
// byte-range claim over a channel's file, recorded so cooperating holders
// can check for conflicts, not something the core itself enforces against
// concurrent reads and writes.
//
// Modeled on this codebase's FileLock (pkg/metadata/lock), stripped of the
// session-registry and grace-period machinery that exists there to survive
// a client reconnecting after a crash -- this module has no client
// sessions or crash recovery to speak of.
package lock

import (
	"sync"

	"github.com/google/uuid"
)

// AdvisoryLock represents a claimed byte range on a file, owned by one
// Channel. It is never consulted by RegularFile, ByteStore, or any other
// Channel's reads and writes; it exists purely as shared bookkeeping for
// cooperating callers.
type AdvisoryLock struct {
	mu sync.Mutex

	id        uuid.UUID
	channelID uuid.UUID

	position  uint64
	size      uint64 // 0 means "to end of file", mirroring java.nio's convention
	shared    bool
	valid     bool
}

// New creates a valid advisory lock over [position, position+size) for the
// given owning channel. size == 0 means the lock extends to the end of the
// file, tracking growth.
func New(channelID uuid.UUID, position, size uint64, shared bool) *AdvisoryLock {
	return &AdvisoryLock{
		id:        uuid.New(),
		channelID: channelID,
		position:  position,
		size:      size,
		shared:    shared,
		valid:     true,
	}
}

// ID returns the lock's identity.
func (l *AdvisoryLock) ID() uuid.UUID {
	return l.id
}

// ChannelID returns the identity of the channel that owns this lock.
func (l *AdvisoryLock) ChannelID() uuid.UUID {
	return l.channelID
}

// Position returns the start of the locked region.
func (l *AdvisoryLock) Position() uint64 {
	return l.position
}

// Size returns the length of the locked region, or 0 if it extends to the
// end of the file.
func (l *AdvisoryLock) Size() uint64 {
	return l.size
}

// IsShared reports whether this is a shared (read) lock as opposed to an
// exclusive (write) lock.
func (l *AdvisoryLock) IsShared() bool {
	return l.shared
}

// Overlaps reports whether this lock's region intersects [position, position+size).
// A size of 0 on either side means "to end of file".
func (l *AdvisoryLock) Overlaps(position, size uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	aEnd := l.position + l.size
	bEnd := position + size
	if l.size == 0 {
		aEnd = ^uint64(0)
	}
	if size == 0 {
		bEnd = ^uint64(0)
	}
	return l.position < bEnd && position < aEnd
}

// IsValid reports whether the lock has not yet been released.
func (l *AdvisoryLock) IsValid() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.valid
}

// Release invalidates the lock. It is idempotent: releasing an
// already-invalid lock is a no-op, matching spec.md §4.4's "release is
// idempotent" edge case.
func (l *AdvisoryLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.valid = false
}
