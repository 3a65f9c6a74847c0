// Package registry keeps the last-fetched copy of each object by id so that
// later actions can look it up instead of re-serialising it.
package registry

import "sync"

type Registry[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

func New[V any]() *Registry[V] {
	return &Registry[V]{items: make(map[string]V)}
}

func (r *Registry[V]) Put(id string, v V) {
	r.mu.Lock()
	r.items[id] = v
	r.mu.Unlock()
}

func (r *Registry[V]) Get(id string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	return v, ok
}

// Update applies fn to the stored value (zero value if absent) and stores the
// result atomically. Returning false from fn leaves the entry untouched.
func (r *Registry[V]) Update(id string, fn func(cur V, ok bool) (V, bool)) V {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.items[id]
	next, keep := fn(cur, ok)
	if !keep {
		return cur
	}
	r.items[id] = next
	return next
}

func (r *Registry[V]) Delete(id string) {
	r.mu.Lock()
	delete(r.items, id)
	r.mu.Unlock()
}

// Find returns the first value matching pred, in no particular order.
func (r *Registry[V]) Find(pred func(V) bool) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.items {
		if pred(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

func (r *Registry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
