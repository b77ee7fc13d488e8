// Package resource implements the opaque, refcounted handle registry
// used by term.Resource values to reference host-owned objects (DOM
// nodes, file descriptors, timers) without the term encoding needing to
// know anything about them. The registry is the only thing that does;
// term just carries a handle number.
package resource

import "sync"

// Destructor is called exactly once, when the last reference to a
// handle is released.
type Destructor func(obj interface{})

// Handle identifies one registered object. Handles are never reused.
type Handle uint64

type entry struct {
	obj      interface{}
	destroy  Destructor
	refcount int64
}

// Registry tracks live resource handles. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu      sync.Mutex
	entries map[Handle]*entry
	next    Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*entry)}
}

// Register wraps obj in a new handle with an initial refcount of 1. If
// destroy is non-nil it runs exactly once, when the handle's refcount
// reaches zero.
func (r *Registry) Register(obj interface{}, destroy Destructor) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.entries[h] = &entry{obj: obj, destroy: destroy, refcount: 1}
	return h
}

// Retain increments a handle's refcount, e.g. when a term referencing it
// is copied into another process's heap.
func (r *Registry) Retain(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[h]; ok {
		e.refcount++
	}
}

// Release decrements a handle's refcount, running its destructor and
// removing it from the registry if that was the last reference.
func (r *Registry) Release(h Handle) {
	r.mu.Lock()
	e, ok := r.entries[h]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refcount--
	dead := e.refcount == 0
	if dead {
		delete(r.entries, h)
	}
	r.mu.Unlock()

	if dead && e.destroy != nil {
		e.destroy(e.obj)
	}
}

// Lookup returns the object behind h, if it is still live.
func (r *Registry) Lookup(h Handle) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[h]
	if !ok {
		return nil, false
	}
	return e.obj, true
}
