// Package config holds the construction-time parameters for the storage
// core, in the style of this codebase's pkg/config: a plain struct with a
// documented default, no CLI or file-format binding since the front door
// that would parse flags or YAML is out of this module's scope.
package config

import "github.com/marmos91/memvfs/pkg/vfs/store"

// Config parameterizes a filesystem instance's storage core.
type Config struct {
	// PageSize is the fixed page size used by every ByteStore the
	// filesystem creates. Chosen once; never changed for a running
	// instance.
	PageSize uint64

	// PagePoolBound is the maximum number of freed pages PagePool
	// retains for reuse before letting the garbage collector take them.
	PagePoolBound int

	// AsyncWorkers is the number of goroutines the asynchronous shim
	// (pkg/vfs/async) runs to service submitted operations.
	AsyncWorkers int

	// AsyncQueueDepth bounds how many submitted operations may be queued
	// before Submit blocks waiting for a worker.
	AsyncQueueDepth int
}

// DefaultConfig returns the configuration this codebase ships with out of
// the box.
func DefaultConfig() Config {
	return Config{
		PageSize:        store.DefaultPageSize,
		PagePoolBound:   store.DefaultPoolBound,
		AsyncWorkers:    4,
		AsyncQueueDepth: 64,
	}
}

// NewPagePool builds a PagePool sized per this configuration.
func (c Config) NewPagePool() *store.PagePool {
	return store.NewPagePool(c.PageSize, c.PagePoolBound)
}
