// Package store implements the paged, growable byte-storage engine that
// backs a single file's content (spec.md §4.1, "Byte Store").
//
// A ByteStore has no lock of its own: callers -- in practice
// pkg/vfs/file.RegularFile -- hold the appropriate read or write lock
// before calling in. This mirrors the reference codebase's block-store
// layering, where pkg/store/block/memory guards its map with its own
// mutex only because nothing above it serializes access; here the caller
// already does.
package store

// indexForOffset returns the page index containing byte offset within a
// store using the given page size.
//
// Adapted from the reference codebase's block.IndexForOffset, which does
// the identical division for a fixed 4MB block size; here the page size is
// a per-store construction parameter rather than a package constant, since
// spec.md §3 requires the page size to be "chosen at construction and
// never changed for a given store".
func indexForOffset(offset, pageSize uint64) uint64 {
	return offset / pageSize
}

// offsetInPage returns the offset of a byte within its containing page.
func offsetInPage(offset, pageSize uint64) uint64 {
	return offset % pageSize
}

// pageCountForSize returns the number of pages needed to hold size bytes.
func pageCountForSize(size, pageSize uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size + pageSize - 1) / pageSize
}

// pageBounds returns the store-level byte range [start, end) covered by
// page index idx.
func pageBounds(idx, pageSize uint64) (start, end uint64) {
	start = idx * pageSize
	end = start + pageSize
	return start, end
}
