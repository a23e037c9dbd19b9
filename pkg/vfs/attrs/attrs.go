// Package attrs defines the small metadata surface the core storage engine
// consumes from its embedding filesystem.
//
// The core never interprets ownership, permission bits, or path information.
// It only needs to stamp access/modified times and track a link count, so
// the Attrs interface exposes exactly that -- nothing more. A richer
// attribute system (basic/owner/posix/unix views, as a POSIX-style
// filesystem would expose to clients) lives outside this module and is
// expected to embed or wrap Record.
package attrs

import (
	"sync"
	"time"
)

// Attrs is the metadata surface consumed by pkg/vfs/file.RegularFile.
//
// Implementations must be safe for concurrent use: the core calls these
// methods without holding RegularFile's read or write lock (Channel stamps
// access and modified times after releasing it), and a caller outside the
// core (an attribute-view provider) may read concurrently as well.
type Attrs interface {
	// AccessTime returns the last time the content was read.
	AccessTime() time.Time

	// SetAccessTime records a read at t.
	SetAccessTime(t time.Time)

	// ModifiedTime returns the last time the content was written or truncated.
	ModifiedTime() time.Time

	// SetModifiedTime records a write or truncate at t.
	SetModifiedTime(t time.Time)

	// CreationTime returns when the object was created. Immutable after
	// construction.
	CreationTime() time.Time

	// LinkCount returns the current number of directory links naming this
	// object.
	LinkCount() uint32

	// IncrementLinkCount records a new directory link and returns the
	// resulting count.
	IncrementLinkCount() uint32

	// DecrementLinkCount records a removed directory link and returns the
	// resulting count. Decrementing below zero is a programmer error and
	// panics, mirroring the invariant in spec.md that link count never goes
	// negative.
	DecrementLinkCount() uint32
}

// Record is the default in-memory Attrs implementation.
//
// It carries the full POSIX-ish attribute set an owner/posix/unix
// attribute-view provider would want to read (owner, group, permission
// bits) even though the core itself never looks at those fields -- it just
// passes them through, the way spec.md §1 describes the attribute system as
// "an external collaborator".
type Record struct {
	mu sync.Mutex

	uid  uint32
	gid  uint32
	mode uint32

	creationTime time.Time
	accessTime   time.Time
	modifiedTime time.Time

	linkCount uint32
}

// NewRecord creates a Record with creation/access/modified time set to now
// and the given owner/group/mode.
func NewRecord(uid, gid, mode uint32) *Record {
	now := time.Now()
	return &Record{
		uid:          uid,
		gid:          gid,
		mode:         mode,
		creationTime: now,
		accessTime:   now,
		modifiedTime: now,
	}
}

// UID returns the owning user ID.
func (r *Record) UID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uid
}

// SetUID changes the owning user ID.
func (r *Record) SetUID(uid uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uid = uid
}

// GID returns the owning group ID.
func (r *Record) GID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gid
}

// SetGID changes the owning group ID.
func (r *Record) SetGID(gid uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gid = gid
}

// Mode returns the permission bits.
func (r *Record) Mode() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// SetMode changes the permission bits.
func (r *Record) SetMode(mode uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
}

// CreationTime implements Attrs.
func (r *Record) CreationTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creationTime
}

// AccessTime implements Attrs.
func (r *Record) AccessTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accessTime
}

// SetAccessTime implements Attrs.
func (r *Record) SetAccessTime(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accessTime = t
}

// ModifiedTime implements Attrs.
func (r *Record) ModifiedTime() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modifiedTime
}

// SetModifiedTime implements Attrs.
func (r *Record) SetModifiedTime(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modifiedTime = t
}

// LinkCount implements Attrs.
func (r *Record) LinkCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.linkCount
}

// IncrementLinkCount implements Attrs.
func (r *Record) IncrementLinkCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.linkCount++
	return r.linkCount
}

// DecrementLinkCount implements Attrs.
func (r *Record) DecrementLinkCount() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.linkCount == 0 {
		panic("attrs: DecrementLinkCount on zero link count")
	}
	r.linkCount--
	return r.linkCount
}

var _ Attrs = (*Record)(nil)
