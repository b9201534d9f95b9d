// Package registry provides the concurrent routing maps used to resolve
// follow-up commands (cancel, stop) directly to the pool that granted a
// reservation or admitted a session, without re-searching the hierarchy.
package registry

import "sync"

// Registry is a concurrent map from an identifier to an owning reference.
// Entries are non-owning: the referenced pool stays the sole owner of the
// reservation or session and is responsible for eventually removing the
// entry. Add and remove are atomic check-and-set operations; distinct ids
// never serialize against each other beyond the map access itself.
type Registry[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New creates an empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{m: make(map[K]V)}
}

// TryAdd inserts the entry if the id is not yet present and reports
// whether it did. An existing entry is never overwritten; a collision is
// a logic error on the caller's side.
func (r *Registry[K, V]) TryAdd(id K, v V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; ok {
		return false
	}
	r.m[id] = v
	return true
}

// TryGet returns the entry for id, if present.
func (r *Registry[K, V]) TryGet(id K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.m[id]
	return v, ok
}

// TryRemove deletes the entry for id and returns it, if present.
func (r *Registry[K, V]) TryRemove(id K) (V, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.m[id]
	if ok {
		delete(r.m, id)
	}
	return v, ok
}

// Len returns the number of entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}
