// Package registry implements the dependency registry: a process-wide index
// from item id to resolution state plus the listeners waiting on that id.
//
// State transitions are committed under a single lock. Listeners are
// notified after the lock is released, so a listener may call back into the
// registry (a loader typically registers its own item while handling a
// resolution) without deadlocking.
package registry

import (
	"fmt"
	"sync"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/log"
)

// Listener is informed about state changes of the ids it looked up through
// LookupDependency. Implementations must be comparable (typically pointers).
type Listener interface {
	DependencyResolved(it item.Item)
	DependencyUpdated(it item.Item)
	DependencyDeregistered(kind item.Kind, id eid.EID)
}

// Registry is the dependency registry. The zero value is not usable, use New.
type Registry struct {
	mu        sync.Mutex
	entries   map[eid.EID]entry
	listeners map[Listener]map[eid.EID]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries:   make(map[eid.EID]entry),
		listeners: make(map[Listener]map[eid.EID]struct{}),
	}
}

// Register resolves the ids of items and notifies their listeners.
// Registering an id that is already resolved returns a
// DuplicateRegistrationError and leaves the existing entry untouched; items
// after the offending one are not registered.
func (r *Registry) Register(items ...item.Item) error {
	for _, it := range items {
		if it == nil {
			continue
		}
		id := it.ID()

		r.mu.Lock()
		next, n, err := r.entries[id].resolve(it)
		if err != nil {
			r.mu.Unlock()
			log.ErrorErr(log.CatRegistry, "Duplicate registration", err, "id", id)
			return err
		}
		r.entries[id] = next
		r.mu.Unlock()

		log.Debug(log.CatRegistry, "Registered item", "id", id, "kind", it.Kind(), "listeners", len(n.listeners))
		r.dispatch(n)
	}
	return nil
}

// Deregister reverts the ids of items to unknown and notifies their
// listeners. Ids that are not resolved are ignored.
func (r *Registry) Deregister(items ...item.Item) {
	for _, it := range items {
		if it == nil {
			continue
		}
		id := it.ID()

		r.mu.Lock()
		e, ok := r.entries[id]
		if !ok {
			r.mu.Unlock()
			continue
		}
		next, n := e.deregister()
		r.entries[id] = next
		r.mu.Unlock()

		if n.kind != notifyNone {
			log.Debug(log.CatRegistry, "Deregistered item", "id", id, "listeners", len(n.listeners))
		}
		r.dispatch(n)
	}
}

// Update replaces resolved items and notifies their listeners. An id that is
// not resolved yields a NotFoundError; items after it are not updated.
func (r *Registry) Update(items ...item.Item) error {
	for _, it := range items {
		if it == nil {
			continue
		}
		id := it.ID()

		r.mu.Lock()
		next, n, err := r.entries[id].update(it)
		if err != nil {
			r.mu.Unlock()
			return err
		}
		r.entries[id] = next
		r.mu.Unlock()

		log.Debug(log.CatRegistry, "Updated item", "id", id, "listeners", len(n.listeners))
		r.dispatch(n)
	}
	return nil
}

// LookupDependency attaches l to every id and returns the subset that is
// currently resolved. Ids never seen before are recorded as unknown. It never
// blocks on the availability of an item. A nil listener only looks up.
func (r *Registry) LookupDependency(ids []eid.EID, l Listener) map[eid.EID]item.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolved := make(map[eid.EID]item.Item, len(ids))
	var attached map[eid.EID]struct{}
	if l != nil {
		attached = r.listeners[l]
		if attached == nil {
			attached = make(map[eid.EID]struct{}, len(ids))
			r.listeners[l] = attached
		}
	}

	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		e := r.entries[id]
		if l != nil {
			e = e.withListener(l)
			attached[id] = struct{}{}
			r.entries[id] = e
		}
		if e.state == stateResolved {
			resolved[id] = e.item
		} else if l != nil {
			log.Debug(log.CatRegistry, "Registering listener for unresolved dependency", "id", id)
		}
	}
	return resolved
}

// Lookup returns the items for ids, failing with a NotFoundError if any id
// is not resolved.
func (r *Registry) Lookup(ids ...eid.EID) (map[eid.EID]item.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resolved := make(map[eid.EID]item.Item, len(ids))
	for _, id := range ids {
		e := r.entries[id]
		if e.state != stateResolved {
			return nil, &NotFoundError{ID: id}
		}
		resolved[id] = e.item
	}
	return resolved, nil
}

// Get is a single id Lookup.
func (r *Registry) Get(id eid.EID) (item.Item, error) {
	items, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return items[id], nil
}

// DeregisterListener detaches l from every entry it was attached to.
func (r *Registry) DeregisterListener(l Listener) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for id := range r.listeners[l] {
		if e, ok := r.entries[id]; ok {
			r.entries[id] = e.withoutListener(l)
		}
	}
	delete(r.listeners, l)
}

// Unresolved returns the sorted ids that at least one listener waits for but
// that are not resolved.
func (r *Registry) Unresolved() []eid.EID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []eid.EID
	for id, e := range r.entries {
		if e.state == stateUnknown && len(e.listeners) > 0 {
			ids = append(ids, id)
		}
	}
	eid.Sort(ids)
	return ids
}

// Resolved returns the sorted ids of all resolved entries.
func (r *Registry) Resolved() []eid.EID {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []eid.EID
	for id, e := range r.entries {
		if e.state == stateResolved {
			ids = append(ids, id)
		}
	}
	eid.Sort(ids)
	return ids
}

// ListenerCount returns how many listeners are attached to id.
func (r *Registry) ListenerCount(id eid.EID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[id].listeners)
}

func (r *Registry) dispatch(n notification) {
	for _, l := range n.listeners {
		notify(l, n)
	}
}

// notify delivers n to one listener. A panicking listener must not stop the
// remaining listeners from being informed.
func notify(l Listener, n notification) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error(log.CatRegistry, "Listener callback failed", "panic", fmt.Sprint(rec))
		}
	}()
	switch n.kind {
	case notifyResolved:
		l.DependencyResolved(n.item)
	case notifyUpdated:
		l.DependencyUpdated(n.item)
	case notifyDeregistered:
		l.DependencyDeregistered(n.itemKind, n.id)
	}
}
