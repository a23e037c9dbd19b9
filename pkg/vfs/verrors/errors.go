// Package verrors defines the error taxonomy for the byte store, regular
// file, and channel core.
//
// It follows the two-tier convention used throughout this codebase: a block
// of sentinel errors for errors.Is matching, plus a wrapping struct type
// that attaches operational context while preserving Unwrap().
package verrors

import (
	"errors"
	"fmt"
)

// Sentinel errors. Protocol-facing callers (out of scope for this module)
// map these to their own status codes.
var (
	// ErrClosedChannel is returned by Channel operations after Close has
	// completed, position reads included. Close itself and IsOpen never
	// return it.
	ErrClosedChannel = errors.New("channel is closed")

	// ErrAsynchronousClose is returned to a blocked operation when another
	// goroutine closes its Channel while it waits on the file lock.
	ErrAsynchronousClose = errors.New("channel closed by another goroutine while blocked")

	// ErrClosedByInterrupt is returned to a blocked operation when the
	// caller's own context is done and the channel is now closed.
	ErrClosedByInterrupt = errors.New("channel closed after blocking operation was interrupted")

	// ErrNonReadableChannel is returned when a read-class operation is
	// attempted on a Channel opened without the read flag.
	ErrNonReadableChannel = errors.New("channel is not open for reading")

	// ErrNonWritableChannel is returned when a write-class operation is
	// attempted on a Channel opened without the write flag.
	ErrNonWritableChannel = errors.New("channel is not open for writing")

	// ErrIllegalArgument is returned for contract violations caught before
	// any mutation happens: a nil buffer, a nil (or, at the channel level,
	// empty) gather/scatter list, or a nil transfer stream. Offsets, sizes
	// and counts are unsigned, so negative values cannot be passed.
	ErrIllegalArgument = errors.New("illegal argument")

	// ErrUnsupported is returned by Channel.Map, which this in-memory core
	// does not implement.
	ErrUnsupported = errors.New("operation not supported")

	// ErrLockInvalid names an advisory lock that is no longer valid. No
	// operation in this module returns it: AdvisoryLock.Release has no
	// return value and is idempotent, and callers that want to detect a
	// double release check IsValid before calling Release.
	ErrLockInvalid = errors.New("advisory lock is no longer valid")
)

// ChannelError wraps a sentinel error with the identity of the channel and
// operation that produced it, mirroring PayloadError in this codebase's
// content-storage error handling.
type ChannelError struct {
	// Op is the operation that failed: "read", "write", "truncate",
	// "transferTo", "transferFrom", "position", "size", "force", "lock",
	// "map".
	Op string

	// ChannelID identifies the channel for log correlation.
	ChannelID string

	// Err is the wrapped sentinel error.
	Err error
}

// Error implements the error interface.
func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %s (channel=%s)", e.Op, e.Err, e.ChannelID)
}

// Unwrap enables errors.Is/errors.As to match through ChannelError.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// Wrap builds a ChannelError for the given operation and channel identity.
// Returns nil if err is nil, so callers can write:
//
//	return verrors.Wrap(op, id, innerErr)
func Wrap(op, channelID string, err error) error {
	if err == nil {
		return nil
	}
	return &ChannelError{Op: op, ChannelID: channelID, Err: err}
}
