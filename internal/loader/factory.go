package loader

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/pubsub"
)

// FileListener receives the lifecycle events of one backing file.
type FileListener interface {
	Keyed
	FileCreated()
	FileUpdated()
	FileDeleted()
	Release()
}

// Factory decides which files it handles and creates their listeners.
// Implementations must be comparable (typically pointers).
type Factory interface {
	CouldHandle(path string) bool
	// Load returns nil without error for paths the factory does not handle.
	Load(path string) (FileListener, error)
}

// Change is published on every item lifecycle transition of a factory.
// Item is nil for destroyed items.
type Change struct {
	Kind item.Kind
	ID   eid.EID
	Item item.Item
}

// FactoryBase keeps the live snapshot of every item built by the loaders of
// one factory. It is the ResultListener of those loaders.
type FactoryBase[T item.Item] struct {
	kind   item.Kind
	broker *pubsub.Broker[Change]

	mu    sync.RWMutex
	items map[eid.EID]T
}

var _ ResultListener[item.Item] = (*FactoryBase[item.Item])(nil)

// NewFactoryBase creates an empty snapshot. broker may be nil.
func NewFactoryBase[T item.Item](kind item.Kind, broker *pubsub.Broker[Change]) *FactoryBase[T] {
	return &FactoryBase[T]{
		kind:   kind,
		broker: broker,
		items:  make(map[eid.EID]T),
	}
}

// Kind returns the kind of items this factory builds.
func (f *FactoryBase[T]) Kind() item.Kind { return f.kind }

func (f *FactoryBase[T]) ItemBuilt(it T) {
	f.put(it)
	f.publish(pubsub.CreatedEvent, Change{Kind: f.kind, ID: it.ID(), Item: it})
}

func (f *FactoryBase[T]) ItemUpdated(it T) {
	f.put(it)
	f.publish(pubsub.UpdatedEvent, Change{Kind: f.kind, ID: it.ID(), Item: it})
}

func (f *FactoryBase[T]) ItemDestroyed(id eid.EID) {
	f.mu.Lock()
	delete(f.items, id)
	f.mu.Unlock()
	f.publish(pubsub.DeletedEvent, Change{Kind: f.kind, ID: id})
}

// Items returns a copy of the current snapshot.
func (f *FactoryBase[T]) Items() map[eid.EID]T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[eid.EID]T, len(f.items))
	for id, it := range f.items {
		out[id] = it
	}
	return out
}

// Get returns the built item with id.
func (f *FactoryBase[T]) Get(id eid.EID) (T, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	it, ok := f.items[id]
	return it, ok
}

// Len returns the number of built items.
func (f *FactoryBase[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

func (f *FactoryBase[T]) put(it T) {
	f.mu.Lock()
	f.items[it.ID()] = it
	f.mu.Unlock()
}

func (f *FactoryBase[T]) publish(t pubsub.EventType, c Change) {
	if f.broker != nil {
		f.broker.Publish(t, c)
	}
}

// FileFactoryConfig configures a FileFactory.
type FileFactoryConfig[T item.Item] struct {
	Kind     item.Kind
	Priority int
	// Match reports whether a file is handled. Defaults to MatchName(Kind+"-", ".yaml", ".yml").
	Match func(path string) bool
	// NewHooks creates the hooks of the loader for path.
	NewHooks func(path string) (Hooks[T], error)
	Registry Registry
	Broker   *pubsub.Broker[Change]
}

// FileFactory is a Factory that creates one Loader per matching file.
type FileFactory[T item.Item] struct {
	*FactoryBase[T]
	priority int
	match    func(path string) bool
	newHooks func(path string) (Hooks[T], error)
	registry Registry
}

var _ Factory = (*FileFactory[item.Item])(nil)

// NewFileFactory creates a FileFactory.
func NewFileFactory[T item.Item](cfg FileFactoryConfig[T]) *FileFactory[T] {
	match := cfg.Match
	if match == nil {
		match = MatchName(string(cfg.Kind)+"-", ".yaml", ".yml")
	}
	return &FileFactory[T]{
		FactoryBase: NewFactoryBase[T](cfg.Kind, cfg.Broker),
		priority:    cfg.Priority,
		match:       match,
		newHooks:    cfg.NewHooks,
		registry:    cfg.Registry,
	}
}

// Priority returns the priority of the loaders this factory creates.
func (f *FileFactory[T]) Priority() int { return f.priority }

// CouldHandle implements Factory.
func (f *FileFactory[T]) CouldHandle(path string) bool {
	return f.match(path)
}

// Load implements Factory.
func (f *FileFactory[T]) Load(path string) (FileListener, error) {
	if !f.CouldHandle(path) {
		return nil, nil
	}
	hooks, err := f.newHooks(path)
	if err != nil {
		return nil, err
	}
	return New[T](path, f.priority, hooks, f).SetRegistry(f.registry), nil
}

// MatchName returns a matcher for base names starting with prefix and ending
// with one of suffixes.
func MatchName(prefix string, suffixes ...string) func(path string) bool {
	return func(path string) bool {
		name := filepath.Base(path)
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		for _, s := range suffixes {
			if strings.HasSuffix(name, s) {
				return true
			}
		}
		return false
	}
}
