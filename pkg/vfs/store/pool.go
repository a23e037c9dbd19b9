package store

import (
	"sync"
	"sync/atomic"

	"github.com/marmos91/memvfs/pkg/metrics"
)

// DefaultPoolBound is the default number of freed pages a PagePool retains
// before letting the garbage collector reclaim them, matching spec.md §9's
// "Page pool" design note ("bound it, e.g. 16 pages, so idle files do not
// hoard memory").
const DefaultPoolBound = 16

// PagePool is a bounded, thread-safe free-page cache.
//
// It is built on sync.Pool, the same primitive the reference codebase uses
// for its tiered buffer pool (pkg/bufpool.Pool) and for reusing 4MB upload
// buffers (pkg/payload/transfer's blockPool). sync.Pool alone has no size
// cap and no guarantee an item survives until reused, so PagePool adds an
// approximate occupancy counter to bound how many pages it keeps around --
// the counter is best-effort under races (a page may occasionally be
// dropped or retained one slot over the bound) which is acceptable for a
// pool whose only job is reducing allocation churn, not enforcing a hard
// memory ceiling.
type PagePool struct {
	pageSize uint64
	bound    int32
	pooled   atomic.Int32
	pool     sync.Pool
	metrics  metrics.VFSMetrics
}

// NewPagePool creates a pool of pages of the given size, retaining at most
// bound freed pages. A non-positive bound disables pooling: Get always
// allocates and Put always drops.
func NewPagePool(pageSize uint64, bound int) *PagePool {
	return &PagePool{
		pageSize: pageSize,
		bound:    int32(bound),
		metrics:  metrics.NewVFSMetrics(),
	}
}

// Get returns a zero-filled page of this pool's page size, reusing a freed
// page when one is available.
func (p *PagePool) Get() []byte {
	if v := p.pool.Get(); v != nil {
		p.pooled.Add(-1)
		buf := *(v.(*[]byte))
		clear(buf)
		return buf
	}
	if p.metrics != nil {
		p.metrics.PageAllocated()
	}
	return make([]byte, p.pageSize)
}

// Put returns a page to the pool for reuse, or drops it if the pool is
// already at its bound.
func (p *PagePool) Put(page []byte) {
	if p.bound <= 0 || uint64(len(page)) != p.pageSize {
		return
	}
	if p.pooled.Load() >= p.bound {
		return
	}
	p.pooled.Add(1)
	if p.metrics != nil {
		p.metrics.PageReleased()
	}
	p.pool.Put(&page)
}

// PageSize returns the fixed page size this pool serves.
func (p *PagePool) PageSize() uint64 {
	return p.pageSize
}
