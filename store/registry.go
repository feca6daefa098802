package store

import "sync"

// Registry hands out one Store per board id for the whole client session,
// so every surface observing a board shares the same state. Stores are
// reference counted: created on first Acquire, closed and dropped when
// the last holder releases.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*entry
}

type entry struct {
	store *Store
	refs  int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*entry)}
}

// Acquire returns the shared store for boardID, creating it on first use.
func (r *Registry) Acquire(boardID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stores[boardID]
	if !ok {
		e = &entry{store: New(boardID)}
		r.stores[boardID] = e
	}
	e.refs++
	return e.store
}

// Release drops one reference. When no holder remains the store is closed
// and removed; a subsequent Acquire creates a fresh one.
func (r *Registry) Release(boardID string) {
	r.mu.Lock()
	e, ok := r.stores[boardID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.stores, boardID)
	r.mu.Unlock()
	e.store.Close()
}

// Len reports how many boards currently have live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
