// Package channel implements the Channel of spec.md §4.3: an interruptible,
// position-keeping, self-serializing I/O handle onto a Regular File.
//
// Self-serialization and interruptible blocking are grounded on this
// codebase's transfer manager (pkg/payload/transfer), which protects its
// per-upload state with its own mutex and wakes blocked waiters by closing
// a channel exactly once. A Channel has no OS thread to address the way
// java.nio.channels.Channel's blockingThread field does, so interruption
// is delivered by canceling a context.Context scoped to the in-flight
// blocking call; RegularFile's lock acquisition (pkg/vfs/file) reacts to
// that cancellation the same way it reacts to a caller-supplied deadline.
package channel

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/memvfs/pkg/vfs/file"
	lockpkg "github.com/marmos91/memvfs/pkg/vfs/lock"
	"github.com/marmos91/memvfs/pkg/vfs/verrors"
)

// Mode is a bitmask of the access modes a Channel was opened with.
type Mode uint8

const (
	ModeRead Mode = 1 << iota
	ModeWrite
	ModeAppend
)

func (m Mode) has(flag Mode) bool { return m&flag != 0 }

// Channel is a single open handle onto a RegularFile.
type Channel struct {
	id   uuid.UUID
	file *file.RegularFile
	mode Mode

	// opMu self-serializes every I/O and position operation on this
	// channel, matching spec.md §4.3's "at most one blocking operation
	// per channel at a time" invariant. It is deliberately distinct from
	// the file's own read/write lock: multiple channels on the same file
	// may each be individually serialized while still contending for the
	// shared file lock underneath.
	opMu     sync.Mutex
	position uint64

	// stateMu guards closed and the in-flight operation's cancel func, so
	// Close can interrupt a blocked operation without first acquiring
	// opMu -- which the blocked operation is, by definition, holding.
	stateMu sync.Mutex
	closed  bool
	cancel  context.CancelFunc

	locks []*lockpkg.AdvisoryLock
}

// Open creates a new Channel on file with the given mode, registering one
// open reference against the file.
func Open(f *file.RegularFile, mode Mode) *Channel {
	f.Open()
	return &Channel{
		id:   uuid.New(),
		file: f,
		mode: mode,
	}
}

// ID returns the channel's identity.
func (c *Channel) ID() uuid.UUID {
	return c.id
}

// IsOpen reports whether the channel has not yet been closed.
func (c *Channel) IsOpen() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return !c.closed
}

// Close closes the channel. It is idempotent: closing an already-closed
// channel returns nil. If another goroutine is blocked in a call on this
// channel, Close cancels it, which surfaces as ErrAsynchronousClose to
// that caller.
//
// Close also releases every advisory lock still held by this channel and
// drops the channel's reference on its file.
func (c *Channel) Close() error {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	locks := c.locks
	c.locks = nil
	c.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, l := range locks {
		l.Release()
	}

	c.file.CloseRef()
	return nil
}

// beginBlocking installs a cancelable context derived from ctx for the
// duration of one blocking operation and returns it along with a cleanup
// function. It fails fast with ErrClosedChannel if the channel is already
// closed.
func (c *Channel) beginBlocking(ctx context.Context) (context.Context, func(), error) {
	c.stateMu.Lock()
	if c.closed {
		c.stateMu.Unlock()
		return nil, nil, verrors.ErrClosedChannel
	}
	derived, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.stateMu.Unlock()

	cleanup := func() {
		c.stateMu.Lock()
		c.cancel = nil
		c.stateMu.Unlock()
		cancel()
	}
	return derived, cleanup, nil
}

// classifyBlockError turns a context error from a blocking call into the
// channel-level error it means, per spec.md §4.3's interrupt epilogue:
// if the caller's own ctx is why we stopped, the interruption closes the
// channel too (ErrClosedByInterrupt); otherwise some other goroutine
// closed the channel out from under us (ErrAsynchronousClose). Any other
// error (an IO error from a transfer sink or source) is returned as is.
func (c *Channel) classifyBlockError(callerCtx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if callerCtx.Err() != nil {
		c.Close()
		return verrors.ErrClosedByInterrupt
	}
	return verrors.ErrAsynchronousClose
}

func (c *Channel) checkReadable() error {
	if !c.mode.has(ModeRead) {
		return verrors.ErrNonReadableChannel
	}
	return nil
}

func (c *Channel) checkWritable() error {
	if !c.mode.has(ModeWrite) {
		return verrors.ErrNonWritableChannel
	}
	return nil
}

// validateBuffers rejects a gather/scatter buffer list before any lock is
// acquired: a nil list, an empty list, or a nil buffer within it are all
// contract violations, per spec.md §7's IllegalArgument taxonomy entry.
func validateBuffers(bufs [][]byte) error {
	if len(bufs) == 0 {
		return verrors.ErrIllegalArgument
	}
	for _, b := range bufs {
		if b == nil {
			return verrors.ErrIllegalArgument
		}
	}
	return nil
}

// Read reads into dst at the current position and advances it by the
// number of bytes read.
func (c *Channel) Read(ctx context.Context, dst []byte) (int64, error) {
	return c.ReadDsts(ctx, [][]byte{dst})
}

// ReadDsts scatter-reads into dsts at the current position and advances it
// by the total bytes read.
func (c *Channel) ReadDsts(ctx context.Context, dsts [][]byte) (int64, error) {
	if err := c.checkReadable(); err != nil {
		return 0, verrors.Wrap("read", c.id.String(), err)
	}
	if err := validateBuffers(dsts); err != nil {
		return 0, verrors.Wrap("read", c.id.String(), err)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("read", c.id.String(), err)
	}
	defer cleanup()

	var n int64
	lockErr := c.file.ReadLocked(derived, func() error {
		var readErr error
		n, readErr = c.file.Store().ReadV(c.position, dsts)
		return readErr
	})
	if lockErr != nil {
		return 0, verrors.Wrap("read", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if n > 0 {
		c.position += uint64(n)
		c.file.Attrs().SetAccessTime(time.Now())
	}
	return n, nil
}

// ReadAt reads into dst at the given absolute position without affecting
// the channel's current position.
func (c *Channel) ReadAt(ctx context.Context, dst []byte, position uint64) (int64, error) {
	if err := c.checkReadable(); err != nil {
		return 0, verrors.Wrap("read", c.id.String(), err)
	}
	if dst == nil {
		return 0, verrors.Wrap("read", c.id.String(), verrors.ErrIllegalArgument)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("read", c.id.String(), err)
	}
	defer cleanup()

	var n int64
	lockErr := c.file.ReadLocked(derived, func() error {
		var readErr error
		n, readErr = c.file.Store().Read(position, dst)
		return readErr
	})
	if lockErr != nil {
		return 0, verrors.Wrap("read", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if n > 0 {
		c.file.Attrs().SetAccessTime(time.Now())
	}
	return n, nil
}

// Write writes src at the current position (or, in append mode, at the
// file's end) and advances the position by the number of bytes written.
func (c *Channel) Write(ctx context.Context, src []byte) (int64, error) {
	return c.WriteSrcs(ctx, [][]byte{src})
}

// WriteSrcs gather-writes srcs at the current position (or, in append
// mode, at the file's end) and advances the position by the total bytes
// written.
func (c *Channel) WriteSrcs(ctx context.Context, srcs [][]byte) (int64, error) {
	if err := c.checkWritable(); err != nil {
		return 0, verrors.Wrap("write", c.id.String(), err)
	}
	if err := validateBuffers(srcs); err != nil {
		return 0, verrors.Wrap("write", c.id.String(), err)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("write", c.id.String(), err)
	}
	defer cleanup()

	var n int64
	lockErr := c.file.WriteLocked(derived, func() error {
		// In append mode the effective write offset is the file's size
		// at the instant the write lock is held, not whatever it was
		// when Write was called -- reading it any earlier would race
		// with a concurrent appender on another channel to the same
		// file.
		pos := c.position
		if c.mode.has(ModeAppend) {
			pos = c.file.Store().SizeWithoutLocking()
		}
		var writeErr error
		n, writeErr = c.file.Store().WriteV(pos, srcs)
		if writeErr == nil {
			c.position = pos + uint64(n)
		}
		return writeErr
	})
	if lockErr != nil {
		return 0, verrors.Wrap("write", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if n > 0 {
		c.file.Attrs().SetModifiedTime(time.Now())
	}
	return n, nil
}

// WriteAt writes src at the given absolute position; outside append mode
// the channel's current position is unchanged. In append mode the requested position is
// ignored and the write lands at the file's end instead, matching the
// non-positional Write's append behavior, since append mode always defines
// "where" implicitly; the channel's position is then set to the end of the
// written bytes.
func (c *Channel) WriteAt(ctx context.Context, src []byte, position uint64) (int64, error) {
	if err := c.checkWritable(); err != nil {
		return 0, verrors.Wrap("write", c.id.String(), err)
	}
	if src == nil {
		return 0, verrors.Wrap("write", c.id.String(), verrors.ErrIllegalArgument)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("write", c.id.String(), err)
	}
	defer cleanup()

	var n int64
	lockErr := c.file.WriteLocked(derived, func() error {
		pos := position
		if c.mode.has(ModeAppend) {
			pos = c.file.Store().SizeWithoutLocking()
		}
		var writeErr error
		n, writeErr = c.file.Store().Write(pos, src)
		if writeErr == nil && c.mode.has(ModeAppend) {
			c.position = pos + uint64(n)
		}
		return writeErr
	})
	if lockErr != nil {
		return 0, verrors.Wrap("write", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if n > 0 {
		c.file.Attrs().SetModifiedTime(time.Now())
	}
	return n, nil
}

// Truncate shrinks the file to newSize, clamping the channel's position
// down to newSize if it is greater than newSize. A newSize at or past the
// current size leaves the file unchanged.
func (c *Channel) Truncate(ctx context.Context, newSize uint64) error {
	if err := c.checkWritable(); err != nil {
		return verrors.Wrap("truncate", c.id.String(), err)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return verrors.Wrap("truncate", c.id.String(), err)
	}
	defer cleanup()

	lockErr := c.file.WriteLocked(derived, func() error {
		return c.file.Store().Truncate(newSize)
	})
	if lockErr != nil {
		return verrors.Wrap("truncate", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if c.position > newSize {
		c.position = newSize
	}
	c.file.Attrs().SetModifiedTime(time.Now())
	return nil
}

// TransferTo copies up to count bytes starting at the current position to
// dst and advances the position by the number of bytes transferred.
func (c *Channel) TransferTo(ctx context.Context, count uint64, dst io.Writer) (int64, error) {
	if err := c.checkReadable(); err != nil {
		return 0, verrors.Wrap("transferTo", c.id.String(), err)
	}
	if dst == nil {
		return 0, verrors.Wrap("transferTo", c.id.String(), verrors.ErrIllegalArgument)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("transferTo", c.id.String(), err)
	}
	defer cleanup()

	var n int64
	lockErr := c.file.ReadLocked(derived, func() error {
		var transferErr error
		n, transferErr = c.file.Store().TransferTo(c.position, count, dst)
		return transferErr
	})
	if lockErr != nil {
		return 0, verrors.Wrap("transferTo", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if n > 0 {
		c.position += uint64(n)
		c.file.Attrs().SetAccessTime(time.Now())
	}
	return n, nil
}

// TransferFrom copies up to count bytes from src into the file starting at
// the current position and advances the position by the number of bytes
// transferred.
func (c *Channel) TransferFrom(ctx context.Context, src io.Reader, count uint64) (int64, error) {
	if err := c.checkWritable(); err != nil {
		return 0, verrors.Wrap("transferFrom", c.id.String(), err)
	}
	if src == nil {
		return 0, verrors.Wrap("transferFrom", c.id.String(), verrors.ErrIllegalArgument)
	}
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("transferFrom", c.id.String(), err)
	}
	defer cleanup()

	var n int64
	lockErr := c.file.WriteLocked(derived, func() error {
		pos := c.position
		if c.mode.has(ModeAppend) {
			pos = c.file.Store().SizeWithoutLocking()
		}
		var transferErr error
		n, transferErr = c.file.Store().TransferFrom(src, pos, count)
		if transferErr == nil {
			c.position = pos + uint64(n)
		}
		return transferErr
	})
	if lockErr != nil {
		return 0, verrors.Wrap("transferFrom", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	if n > 0 {
		c.file.Attrs().SetModifiedTime(time.Now())
	}
	return n, nil
}

// Position returns the channel's current position.
func (c *Channel) Position() (uint64, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.IsOpen() {
		return 0, verrors.Wrap("position", c.id.String(), verrors.ErrClosedChannel)
	}
	return c.position, nil
}

// SetPosition sets the channel's current position. Unlike read/write, this
// never blocks on the file lock, so it is not interruptible and does not
// participate in the close-races-with-blocking-op protocol.
func (c *Channel) SetPosition(newPosition uint64) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	if !c.IsOpen() {
		return verrors.Wrap("position", c.id.String(), verrors.ErrClosedChannel)
	}
	c.position = newPosition
	return nil
}

// Size returns the file's current size.
func (c *Channel) Size(ctx context.Context) (uint64, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	derived, cleanup, err := c.beginBlocking(ctx)
	if err != nil {
		return 0, verrors.Wrap("size", c.id.String(), err)
	}
	defer cleanup()

	var size uint64
	lockErr := c.file.ReadLocked(derived, func() error {
		size = c.file.Store().Size()
		return nil
	})
	if lockErr != nil {
		return 0, verrors.Wrap("size", c.id.String(), c.classifyBlockError(ctx, lockErr))
	}
	return size, nil
}

// Force is a durability barrier in on-disk filesystems; this in-memory
// core has nothing to flush, so Force is a no-op that only validates the
// channel is still open.
func (c *Channel) Force() error {
	if !c.IsOpen() {
		return verrors.Wrap("force", c.id.String(), verrors.ErrClosedChannel)
	}
	return nil
}

// Lock acquires an advisory lock over [position, position+size) on this
// channel's file. size == 0 locks to the end of the file. Advisory locks
// are never enforced against concurrent reads or writes; see pkg/vfs/lock.
func (c *Channel) Lock(position, size uint64, shared bool) (*lockpkg.AdvisoryLock, error) {
	if shared {
		if err := c.checkReadable(); err != nil {
			return nil, verrors.Wrap("lock", c.id.String(), err)
		}
	} else if err := c.checkWritable(); err != nil {
		return nil, verrors.Wrap("lock", c.id.String(), err)
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.closed {
		return nil, verrors.Wrap("lock", c.id.String(), verrors.ErrClosedChannel)
	}
	l := lockpkg.New(c.id, position, size, shared)
	c.locks = append(c.locks, l)
	return l, nil
}

// TryLock is identical to Lock: this core does not enforce advisory locks,
// so acquisition never actually contends and always succeeds immediately.
func (c *Channel) TryLock(position, size uint64, shared bool) (*lockpkg.AdvisoryLock, error) {
	return c.Lock(position, size, shared)
}

// Map is not supported by this in-memory core: there is no backing file
// descriptor to memory-map.
func (c *Channel) Map() error {
	return verrors.Wrap("map", c.id.String(), verrors.ErrUnsupported)
}
