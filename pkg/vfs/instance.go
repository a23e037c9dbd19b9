// Package vfs wires the storage core (pkg/vfs/store, pkg/vfs/file,
// pkg/vfs/channel) into a single filesystem instance: one page pool, one
// open-channel registry, one metrics sink, shared by every file the
// instance creates.
//
// Path resolution, a directory tree, user/group accounts, and a
// network-facing API are out of scope here, as they are for the storage
// core itself -- this package is the narrow seam an embedder with all of
// that machinery would call into.
package vfs

import (
	"context"
	"time"

	"github.com/marmos91/memvfs/internal/logger"
	"github.com/marmos91/memvfs/pkg/metrics"
	"github.com/marmos91/memvfs/pkg/vfs/async"
	"github.com/marmos91/memvfs/pkg/vfs/attrs"
	"github.com/marmos91/memvfs/pkg/vfs/channel"
	"github.com/marmos91/memvfs/pkg/vfs/config"
	"github.com/marmos91/memvfs/pkg/vfs/file"
	"github.com/marmos91/memvfs/pkg/vfs/registry"
	"github.com/marmos91/memvfs/pkg/vfs/store"
)

// Filesystem is a running instance of the storage core: shared
// configuration, page pool, open-channel bookkeeping, optional metrics,
// and an asynchronous shim.
type Filesystem struct {
	cfg      config.Config
	pool     *store.PagePool
	registry *registry.Registry
	metrics  metrics.VFSMetrics
	async    *async.Shim
}

// New creates a Filesystem instance from cfg. Call Close when done to stop
// the asynchronous shim and close any channels left open.
func New(cfg config.Config) *Filesystem {
	fs := &Filesystem{
		cfg:      cfg,
		pool:     cfg.NewPagePool(),
		registry: registry.New(),
		metrics:  metrics.NewVFSMetrics(),
		async:    async.New(cfg.AsyncWorkers, cfg.AsyncQueueDepth),
	}
	logger.Info("vfs: instance created", "pageSize", cfg.PageSize, "asyncWorkers", cfg.AsyncWorkers)
	return fs
}

// CreateFile creates a new, empty RegularFile with the given owner/group/mode.
func (fs *Filesystem) CreateFile(uid, gid, mode uint32) *file.RegularFile {
	f := file.New(fs.cfg.PageSize, fs.pool, attrs.NewRecord(uid, gid, mode))
	logger.Debug("vfs: file created", "file", f.ID())
	return f
}

// OpenChannel opens a Channel on f with the given mode, registers it with
// the instance, and records it in metrics.
func (fs *Filesystem) OpenChannel(f *file.RegularFile, mode channel.Mode) *channel.Channel {
	c := channel.Open(f, mode)
	fs.registry.Register(c)
	if fs.metrics != nil {
		fs.metrics.ChannelOpened()
	}
	logger.Debug("vfs: channel opened", "channel", c.ID(), "file", f.ID())
	return c
}

// CloseChannel closes c, unregisters it, and records the closure in
// metrics and logs.
func (fs *Filesystem) CloseChannel(c *channel.Channel) error {
	err := c.Close()
	fs.registry.Unregister(c)
	reason := "normal"
	switch {
	case err != nil:
		reason = "error"
	}
	if fs.metrics != nil {
		fs.metrics.ChannelClosed(reason)
	}
	logger.Debug("vfs: channel closed", "channel", c.ID(), "reason", reason)
	return err
}

// SubmitRead schedules an asynchronous read on c via the instance's
// shim, per spec.md §4.5.
func (fs *Filesystem) SubmitRead(ctx context.Context, c *channel.Channel, dst []byte) *async.Task {
	start := time.Now()
	return fs.async.Submit(func() (any, error) {
		n, err := c.Read(ctx, dst)
		if fs.metrics != nil && err == nil {
			fs.metrics.ReadCompleted(n, time.Since(start))
		}
		return n, err
	})
}

// SubmitWrite schedules an asynchronous write on c via the instance's
// shim, per spec.md §4.5.
func (fs *Filesystem) SubmitWrite(ctx context.Context, c *channel.Channel, src []byte) *async.Task {
	start := time.Now()
	return fs.async.Submit(func() (any, error) {
		n, err := c.Write(ctx, src)
		if fs.metrics != nil && err == nil {
			fs.metrics.WriteCompleted(n, time.Since(start))
		}
		return n, err
	})
}

// Close closes every channel still registered with the instance and stops
// its asynchronous shim. It is the in-memory analogue of an unmount.
func (fs *Filesystem) Close() []error {
	logger.Info("vfs: instance closing", "openChannels", fs.registry.Len())
	errs := fs.registry.CloseAll()
	fs.async.Close()
	return errs
}
