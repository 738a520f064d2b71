// Package spaces holds the last-known current space and the ordered list of
// known spaces, and broadcasts current-space changes to subscribers.
package spaces

import (
	"sync"

	"go.uber.org/zap"

	"github.com/spacepal/spacepal/internal/domain"
)

// Refresher triggers the external transport to re-announce spaces. The
// registry itself performs no polling.
type Refresher interface {
	Refresh() error
}

// Registry is the single shared source of "current space" truth. It is
// written exclusively by the transport adapter and read by the rule engine
// and the dock switch scheduler, each through its own subscription.
type Registry struct {
	mu          sync.Mutex
	current     *domain.SpaceDescriptor
	known       []domain.SpaceDescriptor
	subscribers map[int]func(domain.SpaceDescriptor)
	nextSubID   int

	refresher Refresher
	logger    *zap.Logger
}

// NewRegistry creates an empty registry. refresher may be nil when no
// transport is attached (tests).
func NewRegistry(refresher Refresher, logger *zap.Logger) *Registry {
	return &Registry{
		subscribers: make(map[int]func(domain.SpaceDescriptor)),
		refresher:   refresher,
		logger:      logger,
	}
}

// CurrentSpaceID returns the last-known current space id. ok is false when
// no space has been announced yet - absence of data is not a failure.
func (r *Registry) CurrentSpaceID() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return r.current.ID, true
}

// CurrentSpace returns the full current space descriptor, if known.
func (r *Registry) CurrentSpace() (domain.SpaceDescriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return domain.SpaceDescriptor{}, false
	}
	return *r.current, true
}

// KnownSpaces returns the ordered list of known spaces.
func (r *Registry) KnownSpaces() []domain.SpaceDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SpaceDescriptor, len(r.known))
	copy(out, r.known)
	return out
}

// Subscribe registers a callback receiving every distinct new current-space
// value. Returns an unsubscribe func.
func (r *Registry) Subscribe(fn func(domain.SpaceDescriptor)) func() {
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// SetCurrent records a new current space and notifies subscribers.
// Duplicate consecutive values are suppressed; the transport delivers
// at-least-once.
func (r *Registry) SetCurrent(space domain.SpaceDescriptor) {
	r.mu.Lock()
	if r.current != nil && r.current.ID == space.ID {
		r.mu.Unlock()
		return
	}
	r.current = &space
	fns := make([]func(domain.SpaceDescriptor), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	if r.logger != nil {
		r.logger.Debug("current space changed",
			zap.String("space_id", space.ID),
			zap.String("space_name", space.Name),
			zap.Int("space_number", space.Number))
	}

	// Callbacks run outside the lock so a subscriber may read the registry.
	for _, fn := range fns {
		fn(space)
	}
}

// ReplaceSpaces replaces the whole known-space collection. No partial merge.
func (r *Registry) ReplaceSpaces(spaces []domain.SpaceDescriptor) {
	r.mu.Lock()
	r.known = make([]domain.SpaceDescriptor, len(spaces))
	copy(r.known, spaces)
	r.mu.Unlock()
}

// Refresh asks the external transport to re-announce spaces.
func (r *Registry) Refresh() error {
	if r.refresher == nil {
		return nil
	}
	return r.refresher.Refresh()
}
