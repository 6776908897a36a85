// Package loader implements per-file item loaders and the factories that
// create them.
//
// A Loader declares the ids its item depends on, waits until the registry
// resolved all of them, builds the item and registers it so that other
// loaders waiting on it can build in turn. There is no internal retry
// timer: every file event and every dependency event is a retry.
//
// Events for one loader must be serialized by the caller.
package loader

import (
	"errors"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/registry"
)

// Registry is the part of the dependency registry a loader needs.
type Registry interface {
	Register(items ...item.Item) error
	Deregister(items ...item.Item)
	Update(items ...item.Item) error
	LookupDependency(ids []eid.EID, l registry.Listener) map[eid.EID]item.Item
	Lookup(ids ...eid.EID) (map[eid.EID]item.Item, error)
	DeregisterListener(l registry.Listener)
}

var _ Registry = (*registry.Registry)(nil)

// Loader builds one item of type T from one file.
type Loader[T item.Item] struct {
	path     string
	priority int
	hooks    Hooks[T]
	results  ResultListener[T]
	registry Registry

	resolved   map[eid.EID]item.Item
	unresolved map[eid.EID]struct{}

	built    T
	hasItem  bool
	prepared bool
	released bool
}

var (
	_ registry.Listener = (*Loader[item.Item])(nil)
	_ FileListener      = (*Loader[item.Item])(nil)
	_ Dependencies      = (*Loader[item.Item])(nil)
)

// New creates an unbound loader. Call SetRegistry before delivering events.
func New[T item.Item](path string, priority int, hooks Hooks[T], results ResultListener[T]) *Loader[T] {
	return &Loader[T]{
		path:       path,
		priority:   priority,
		hooks:      hooks,
		results:    results,
		registry:   nullRegistry{},
		resolved:   make(map[eid.EID]item.Item),
		unresolved: make(map[eid.EID]struct{}),
	}
}

// SetRegistry binds the loader to reg and prepares it against reg.
func (l *Loader[T]) SetRegistry(reg Registry) *Loader[T] {
	if reg == nil {
		reg = nullRegistry{}
	}
	l.registry = reg
	l.prepared = l.prepare()
	return l
}

// Path returns the backing file.
func (l *Loader[T]) Path() string { return l.path }

// Priority returns the build priority; lower builds first.
func (l *Loader[T]) Priority() int { return l.priority }

// Prepared reports whether the last preparation succeeded.
func (l *Loader[T]) Prepared() bool { return l.prepared }

// Item returns the currently built item.
func (l *Loader[T]) Item() (T, bool) { return l.built, l.hasItem }

// Unresolved returns the sorted ids the loader still waits for.
func (l *Loader[T]) Unresolved() []eid.EID {
	ids := make([]eid.EID, 0, len(l.unresolved))
	for id := range l.unresolved {
		ids = append(ids, id)
	}
	eid.Sort(ids)
	return ids
}

// SortKey implements Keyed.
func (l *Loader[T]) SortKey() SortKey {
	return SortKey{Priority: l.priority, Unresolved: len(l.unresolved), Path: l.path}
}

// DependsOn implements Dependencies.
func (l *Loader[T]) DependsOn(ids ...eid.EID) {
	declared := ids[:0:0]
	for _, id := range ids {
		if !id.IsZero() {
			declared = append(declared, id)
		}
	}
	if len(declared) == 0 {
		return
	}
	found := l.registry.LookupDependency(declared, l)
	for _, id := range declared {
		if it, ok := found[id]; ok {
			l.resolved[id] = it
			delete(l.unresolved, id)
		} else {
			l.unresolved[id] = struct{}{}
		}
	}
}

// Dependency implements Dependencies.
func (l *Loader[T]) Dependency(id eid.EID) (item.Item, error) {
	if it, ok := l.resolved[id]; ok {
		return it, nil
	}
	found, err := l.registry.Lookup(id)
	if err != nil {
		return nil, err
	}
	return found[id], nil
}

// CanBuild reports whether preparation succeeded and nothing is unresolved.
func (l *Loader[T]) CanBuild() bool {
	if len(l.unresolved) > 0 {
		log.Info(log.CatLoader, "Item is waiting for dependencies",
			"file", l.path, "count", len(l.unresolved), "ids", eid.Strings(l.Unresolved()))
	}
	return l.prepared && len(l.unresolved) == 0
}

// FileCreated prepares the loader if needed and tries to build. An item
// already built through a dependency event is kept.
func (l *Loader[T]) FileCreated() {
	if l.released || l.hasItem {
		return
	}
	if !l.prepared {
		l.prepared = l.prepare()
	}
	l.build()
}

// FileUpdated re-prepares from scratch and rebuilds, or destroys the item if
// it can no longer be built.
func (l *Loader[T]) FileUpdated() {
	l.refresh()
}

// FileDeleted releases the loader.
func (l *Loader[T]) FileDeleted() {
	l.Release()
}

// DependencyResolved implements registry.Listener.
func (l *Loader[T]) DependencyResolved(it item.Item) {
	if l.released || !l.tracks(it.ID()) {
		return
	}
	l.markResolved(it)
	if !l.hasItem {
		l.build()
	}
}

// DependencyUpdated implements registry.Listener. The inputs of the item
// changed, so it is rebuilt even if it already exists.
func (l *Loader[T]) DependencyUpdated(it item.Item) {
	if l.released || !l.tracks(it.ID()) {
		return
	}
	l.markResolved(it)
	l.refresh()
}

// DependencyDeregistered implements registry.Listener. A built item is never
// valid while one of its dependencies is gone, so it is destroyed.
func (l *Loader[T]) DependencyDeregistered(kind item.Kind, id eid.EID) {
	if l.released || !l.tracks(id) {
		return
	}
	log.Debug(log.CatLoader, "Dependency deregistered", "file", l.path, "kind", kind, "id", id)
	delete(l.resolved, id)
	l.unresolved[id] = struct{}{}
	l.destroyAndDeregisterItem()
}

// Release destroys the item, closes the hooks and detaches the loader from
// the registry. Calling it more than once is a no-op.
func (l *Loader[T]) Release() {
	if l.released {
		return
	}
	l.released = true
	l.destroyAndDeregisterItem()
	if c, ok := l.hooks.(Closer); ok {
		c.Close()
	}
	l.registry.DeregisterListener(l)
	log.Debug(log.CatLoader, "Released loader", "file", l.path)
}

func (l *Loader[T]) tracks(id eid.EID) bool {
	if _, ok := l.unresolved[id]; ok {
		return true
	}
	_, ok := l.resolved[id]
	return ok
}

func (l *Loader[T]) markResolved(it item.Item) {
	delete(l.unresolved, it.ID())
	l.resolved[it.ID()] = it
	if len(l.unresolved) == 0 {
		return
	}
	// others may have been resolved while this event was in flight
	found := l.registry.LookupDependency(l.Unresolved(), l)
	for id, dep := range found {
		delete(l.unresolved, id)
		l.resolved[id] = dep
	}
}

func (l *Loader[T]) prepare() bool {
	l.registry.DeregisterListener(l)
	clear(l.resolved)
	clear(l.unresolved)
	if err := l.hooks.Prepare(l); err != nil {
		log.ErrorErr(log.CatLoader, "Preparing item failed", err, "file", l.path)
		return false
	}
	return true
}

func (l *Loader[T]) build() {
	if l.released || !l.CanBuild() {
		return
	}
	built, err := l.hooks.Build(l)
	if err != nil {
		log.ErrorErr(log.CatLoader, "Building item failed", err, "file", l.path)
		return
	}
	l.publish(built)
}

func (l *Loader[T]) refresh() {
	if l.released {
		return
	}
	l.prepared = l.prepare()
	if !l.CanBuild() {
		l.destroyAndDeregisterItem()
		return
	}
	built, err := l.hooks.Build(l)
	if err != nil {
		log.ErrorErr(log.CatLoader, "Rebuilding item failed", err, "file", l.path)
		l.destroyAndDeregisterItem()
		return
	}
	l.publish(built)
}

// publish makes built visible: first builds are registered, rebuilds are
// updated with a fallback to registration.
func (l *Loader[T]) publish(built T) {
	if l.hasItem && l.built.ID() != built.ID() {
		l.destroyAndDeregisterItem()
	}

	if !l.hasItem {
		l.built, l.hasItem = built, true
		if err := l.registry.Register(built.Copy()); err != nil {
			log.ErrorErr(log.CatLoader, "Registering item failed", err, "file", l.path, "id", built.ID())
			var zero T
			l.built, l.hasItem = zero, false
			l.hooks.Release(built)
			releaseItem(built)
			return
		}
		l.results.ItemBuilt(built)
		log.Info(log.CatLoader, "Item built", "file", l.path, "id", built.ID(), "kind", built.Kind())
		return
	}

	l.built = built
	if err := l.registry.Update(built.Copy()); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			// registry and loader got out of sync, e.g. after a restart
			err = l.registry.Register(built.Copy())
		}
		if err != nil {
			// the id is not ours anymore, so there is nothing to deregister
			log.ErrorErr(log.CatLoader, "Updating item failed", err, "file", l.path, "id", built.ID())
			var zero T
			l.built, l.hasItem = zero, false
			l.results.ItemDestroyed(built.ID())
			l.hooks.Release(built)
			releaseItem(built)
			return
		}
	}
	l.results.ItemUpdated(built)
	log.Info(log.CatLoader, "Item updated", "file", l.path, "id", built.ID())
}

func (l *Loader[T]) destroyAndDeregisterItem() {
	if !l.hasItem {
		return
	}
	built := l.built
	var zero T
	l.built, l.hasItem = zero, false

	log.Debug(log.CatLoader, "Releasing item", "file", l.path, "id", built.ID())
	l.registry.Deregister(built.Copy())
	l.results.ItemDestroyed(built.ID())
	l.hooks.Release(built)
	releaseItem(built)
}

func releaseItem(it item.Item) {
	if r, ok := it.(item.Releasable); ok {
		r.Release()
	}
}

// nullRegistry is used until a loader is bound.
type nullRegistry struct{}

func (nullRegistry) Register(...item.Item) error { return nil }
func (nullRegistry) Deregister(...item.Item)     {}
func (nullRegistry) Update(...item.Item) error   { return nil }
func (nullRegistry) LookupDependency([]eid.EID, registry.Listener) map[eid.EID]item.Item {
	return map[eid.EID]item.Item{}
}
func (nullRegistry) Lookup(ids ...eid.EID) (map[eid.EID]item.Item, error) {
	if len(ids) == 0 {
		return map[eid.EID]item.Item{}, nil
	}
	return nil, &registry.NotFoundError{ID: ids[0]}
}
func (nullRegistry) DeregisterListener(registry.Listener) {}
