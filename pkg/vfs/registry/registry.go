// Package registry tracks every open Channel for a filesystem instance, so
// all of them can be force-closed together -- the in-memory analogue of
// unmounting.
//
// Grounded on this codebase's TransferManager (pkg/payload/transfer),
// which keeps a mutex-protected map of in-flight uploads/downloads purely
// so it can account for and cancel them as a group; here the group is
// "every still-open channel on this filesystem" instead of "every
// in-flight transfer".
package registry

import (
	"sync"

	"github.com/google/uuid"

	"github.com/marmos91/memvfs/pkg/vfs/channel"
)

// Registry is a concurrency-safe set of open channels.
type Registry struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*channel.Channel
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{channels: make(map[uuid.UUID]*channel.Channel)}
}

// Register adds c to the registry. Callers should register a channel
// immediately after opening it.
func (r *Registry) Register(c *channel.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[c.ID()] = c
}

// Unregister removes c from the registry. Callers should unregister a
// channel as part of closing it; CloseAll does this automatically for
// channels it closes.
func (r *Registry) Unregister(c *channel.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, c.ID())
}

// Len returns the number of currently registered channels.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

// CloseAll closes every registered channel and empties the registry. It
// collects every error returned by Close rather than stopping at the
// first one, so a single stuck channel cannot prevent the rest from being
// closed.
func (r *Registry) CloseAll() []error {
	r.mu.Lock()
	snapshot := make([]*channel.Channel, 0, len(r.channels))
	for _, c := range r.channels {
		snapshot = append(snapshot, c)
	}
	r.channels = make(map[uuid.UUID]*channel.Channel)
	r.mu.Unlock()

	var errs []error
	for _, c := range snapshot {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
