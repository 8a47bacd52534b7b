package driver

import (
	"fmt"
	"sync"
)

// Entry is one registered driver.
type Entry struct {
	ID      string
	Pattern string
	Driver  Driver
}

// Registry is an ordered collection of drivers keyed by id. Iteration order
// is registration order.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register appends a driver. Ids must be unique and non-empty.
func (r *Registry) Register(id, pattern string, d Driver) error {
	if id == "" {
		return fmt.Errorf("%w: driver id is required", ErrConfiguration)
	}
	if d == nil {
		return fmt.Errorf("%w: driver %s is nil", ErrConfiguration, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[id]; ok {
		return fmt.Errorf("%w: duplicate driver id %s", ErrConfiguration, id)
	}
	r.index[id] = len(r.entries)
	r.entries = append(r.entries, Entry{ID: id, Pattern: pattern, Driver: d})
	return nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[id]
	return ok
}

// Get returns the driver registered under id.
func (r *Registry) Get(id string) (Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.entries[i].Driver, true
}

// Entries returns a copy of the registered entries in order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered drivers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
