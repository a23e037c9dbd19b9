package store

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/marmos91/memvfs/pkg/vfs/verrors"
)

// DefaultPageSize is the page size used when a caller does not pick one
// explicitly, matching spec.md §3's example of an 8 KiB page.
const DefaultPageSize = 8 * 1024

// ByteStore is a growable sequence of fixed-size pages holding one file's
// content, as described in spec.md §4.1.
//
// ByteStore performs no locking of its own; callers must hold the
// appropriate lock (see pkg/vfs/file.RegularFile) before calling any
// method. It is safe to share a *ByteStore across goroutines only under
// that external lock.
//
// The page layout and addressing arithmetic are adapted from this
// codebase's block-storage layer (pkg/payload/block's IndexForOffset /
// OffsetInBlock / Bounds), reparameterized per-instance since spec.md
// requires page size to be chosen once at construction rather than fixed
// as a package constant. The page map itself is adapted from
// pkg/store/block/memory.Store, with the store's own mutex removed since
// ByteStore's locking contract is owned by its caller, not by the store.
type ByteStore struct {
	pageSize uint64
	pool     *PagePool

	pages []byte // len(pages)/pageSize pages, contiguously stored
	size  atomic.Uint64

	refCount atomic.Int32
}

// New creates an empty ByteStore using pageSize bytes per page and the
// given page pool (nil disables pooling; pages are then allocated and
// discarded directly). The returned store has a reference count of 1.
func New(pageSize uint64, pool *PagePool) *ByteStore {
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	s := &ByteStore{pageSize: pageSize, pool: pool}
	s.refCount.Store(1)
	return s
}

// PageSize returns the fixed page size chosen for this store.
func (s *ByteStore) PageSize() uint64 {
	return s.pageSize
}

// Size returns the current logical length of the store.
func (s *ByteStore) Size() uint64 {
	return s.size.Load()
}

// SizeWithoutLocking is identical to Size. It exists as a distinct method,
// per spec.md §4.1, for callers that already hold RegularFile's write lock
// and want to make that dependency explicit at the call site rather than
// imply a separate internal lock is being taken.
func (s *ByteStore) SizeWithoutLocking() uint64 {
	return s.size.Load()
}

// validateBuffers rejects a gather/scatter list that is itself nil or that
// contains a nil buffer, per spec.md §7's IllegalArgument taxonomy entry. A
// non-nil empty buffer (zero-length read/write) is a legitimate no-op, not
// a contract violation.
func validateBuffers(bufs [][]byte) error {
	if bufs == nil {
		return verrors.ErrIllegalArgument
	}
	for _, b := range bufs {
		if b == nil {
			return verrors.ErrIllegalArgument
		}
	}
	return nil
}

// pageCount returns how many whole pages are currently allocated.
func (s *ByteStore) pageCount() uint64 {
	if s.pageSize == 0 {
		return 0
	}
	return uint64(len(s.pages)) / s.pageSize
}

// ensureCapacity grows the page backing so that byte offset requiredBytes-1
// is addressable. New pages are zero-filled (either freshly allocated or
// cleared on reuse from the pool).
func (s *ByteStore) ensureCapacity(requiredBytes uint64) {
	requiredPages := pageCountForSize(requiredBytes, s.pageSize)
	for s.pageCount() < requiredPages {
		var page []byte
		if s.pool != nil {
			page = s.pool.Get()
		} else {
			page = make([]byte, s.pageSize)
		}
		s.pages = append(s.pages, page...)
	}
}

// Retain increments the reference count, returning the new value. Used
// when an embedding hard-link implementation shares this store with
// another file identity (e.g. a pending copy-on-write split).
func (s *ByteStore) Retain() int32 {
	return s.refCount.Add(1)
}

// Release decrements the reference count, freeing all pages back to the
// pool when it reaches zero, and returns the new value.
func (s *ByteStore) Release() int32 {
	n := s.refCount.Add(-1)
	if n == 0 {
		s.releasePages(0)
		s.size.Store(0)
	}
	return n
}

// RefCount returns the current reference count.
func (s *ByteStore) RefCount() int32 {
	return s.refCount.Load()
}

// releasePages frees every page at or beyond keepPages back to the pool
// (or to the garbage collector if pooling is disabled) and shrinks pages
// to keepPages pages long.
func (s *ByteStore) releasePages(keepPages uint64) {
	if s.pool != nil {
		for idx := keepPages; idx < s.pageCount(); idx++ {
			start := idx * s.pageSize
			s.pool.Put(s.pages[start : start+s.pageSize : start+s.pageSize])
		}
	}
	keepBytes := keepPages * s.pageSize
	if keepBytes > uint64(len(s.pages)) {
		keepBytes = uint64(len(s.pages))
	}
	s.pages = s.pages[:keepBytes]
}

// Read reads bytes into dst starting at position. It returns the number of
// bytes read, or -1 if position is at or past the current size.
func (s *ByteStore) Read(position uint64, dst []byte) (int64, error) {
	n, err := s.ReadV(position, [][]byte{dst})
	return n, err
}

// ReadV scatter-reads into dsts in order, each filled up to its own
// length, stopping once the store's size is exhausted. It returns the
// total bytes read, or -1 if position is at or past size when called.
func (s *ByteStore) ReadV(position uint64, dsts [][]byte) (int64, error) {
	if err := validateBuffers(dsts); err != nil {
		return 0, err
	}
	size := s.size.Load()
	if position >= size {
		return -1, nil
	}

	var total int64
	pos := position
	for _, dst := range dsts {
		if pos >= size {
			break
		}
		avail := size - pos
		n := uint64(len(dst))
		if n > avail {
			n = avail
		}
		if n == 0 {
			continue
		}
		copy(dst[:n], s.pages[pos:pos+n])
		pos += n
		total += int64(n)
	}
	return total, nil
}

// Write writes src at position, zero-filling any gap if position is past
// the current size. It returns the number of bytes written.
func (s *ByteStore) Write(position uint64, src []byte) (int64, error) {
	return s.WriteV(position, [][]byte{src})
}

// WriteV gather-writes srcs in order, contiguously starting at position,
// zero-filling any gap if position is past the current size. It returns
// the total number of bytes written.
func (s *ByteStore) WriteV(position uint64, srcs [][]byte) (int64, error) {
	if err := validateBuffers(srcs); err != nil {
		return 0, err
	}
	var total uint64
	for _, src := range srcs {
		total += uint64(len(src))
	}
	if total == 0 {
		return 0, nil
	}

	writeEnd := position + total
	s.ensureCapacity(writeEnd)

	pos := position
	for _, src := range srcs {
		if len(src) == 0 {
			continue
		}
		copy(s.pages[pos:pos+uint64(len(src))], src)
		pos += uint64(len(src))
	}

	if writeEnd > s.size.Load() {
		s.size.Store(writeEnd)
	}
	return int64(total), nil
}

// TransferTo copies up to count bytes starting at position to dst. It
// returns 0 with no error if position is at or past the current size.
// A short transfer is possible only if dst.Write returns fewer bytes than
// requested without an error, which io.Writer's contract forbids; in
// practice a transfer stops exactly at count, at size, or at the first
// error from dst.
func (s *ByteStore) TransferTo(position, count uint64, dst io.Writer) (int64, error) {
	size := s.size.Load()
	if position >= size {
		return 0, nil
	}
	remaining := size - position
	if count < remaining {
		remaining = count
	}
	if remaining == 0 {
		return 0, nil
	}

	n, err := dst.Write(s.pages[position : position+remaining])
	if err != nil {
		return int64(n), fmt.Errorf("byte store transfer to sink: %w", err)
	}
	return int64(n), nil
}

// TransferFrom copies up to count bytes from src into the store starting
// at position, growing the store as needed. It stops early, without
// error, on io.EOF from src.
func (s *ByteStore) TransferFrom(src io.Reader, position, count uint64) (int64, error) {
	if count == 0 {
		return 0, nil
	}
	s.ensureCapacity(position + count)

	n, err := io.ReadFull(src, s.pages[position:position+count])
	total := int64(n)

	writeEnd := position + uint64(n)
	if writeEnd > s.size.Load() {
		s.size.Store(writeEnd)
	}

	switch {
	case err == nil, err == io.ErrUnexpectedEOF, err == io.EOF:
		return total, nil
	default:
		return total, fmt.Errorf("byte store transfer from source: %w", err)
	}
}

// Truncate shrinks the store to newSize. Per spec.md §4.1, truncate never
// grows the store: if newSize is at or past the current size, Truncate is
// a no-op.
//
// Bytes in [newSize, size) are physically zeroed in the retained boundary
// page before it is trimmed, so that a later write past newSize cannot
// observe stale bytes left over from before the truncate -- the invariant
// spec.md §3 calls out explicitly ("truncation down logically zeroes the
// tail even if pages linger").
func (s *ByteStore) Truncate(newSize uint64) error {
	oldSize := s.size.Load()
	if newSize >= oldSize {
		return nil
	}
	s.size.Store(newSize)

	boundaryPage := indexForOffset(newSize, s.pageSize)
	startOffset := offsetInPage(newSize, s.pageSize)

	keepPages := boundaryPage
	if startOffset > 0 {
		keepPages = boundaryPage + 1
		pageStart := boundaryPage * s.pageSize
		clear(s.pages[pageStart+startOffset : pageStart+s.pageSize])
	}

	if keepPages < s.pageCount() {
		s.releasePages(keepPages)
	}
	return nil
}

// Copy produces a new, independent ByteStore with the same bytes and page
// size, with its own reference count starting at 1. Used to implement
// copy-on-write semantics when two file identities must stop sharing
// content (spec.md §4.1 "copy()").
func (s *ByteStore) Copy() (*ByteStore, error) {
	dst := New(s.pageSize, s.pool)
	size := s.size.Load()
	if size == 0 {
		return dst, nil
	}
	dst.ensureCapacity(size)
	copy(dst.pages[:size], s.pages[:size])
	dst.size.Store(size)
	return dst, nil
}
