package relay

import (
	"log/slog"
	"slices"
	"sync"
)

// Groups maps group names to groups. One mutex covers lookup and
// get-or-create, so at most one Group exists per name. No I/O happens under
// the lock.
type Groups struct {
	mu       sync.Mutex
	groups   map[string]*Group
	capacity int
	logger   *slog.Logger
	closed   bool
}

// NewGroups creates an empty registry whose groups retain capacity pending
// messages per subscriber.
func NewGroups(capacity int, log *slog.Logger) *Groups {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Groups{
		groups:   make(map[string]*Group),
		capacity: capacity,
		logger:   log,
	}
}

// Get returns the group named name, if it exists.
func (r *Groups) Get(name string) (*Group, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, ok := r.groups[name]
	return g, ok
}

// GetOrCreate returns the group named name, creating it on first use.
func (r *Groups) GetOrCreate(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()

	if g, ok := r.groups[name]; ok {
		return g
	}

	g := newGroup(name, r.capacity, r.logger)
	if r.closed {
		// Created during shutdown: refuses joins like every other group.
		g.Close()
	}
	r.groups[name] = g
	return g
}

// Len returns the number of groups.
func (r *Groups) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.groups)
}

// Names returns the group names in sorted order.
func (r *Groups) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.groups))
	for name := range r.groups {
		names = append(names, name)
	}
	r.mu.Unlock()

	slices.Sort(names)
	return names
}

// Close closes every group and waits for their relay goroutines to exit.
func (r *Groups) Close() {
	r.mu.Lock()
	r.closed = true
	groups := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		groups = append(groups, g)
	}
	r.mu.Unlock()

	for _, g := range groups {
		g.Close()
	}
	for _, g := range groups {
		g.Wait()
	}
}
