package loader

import (
	"fmt"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
)

// Dependencies is the view a loader hands to its hooks.
type Dependencies interface {
	// DependsOn declares dependencies. Must be called from Prepare.
	DependsOn(ids ...eid.EID)
	// Dependency returns a resolved dependency, falling back to a strict
	// registry lookup.
	Dependency(id eid.EID) (item.Item, error)
	// Path is the backing file.
	Path() string
}

// Hooks carry the type specific part of a loader.
type Hooks[T item.Item] interface {
	// Prepare parses the backing file and declares all dependencies. An
	// error marks the loader as not prepared; it is retried on the next
	// file event.
	Prepare(deps Dependencies) error
	// Build materializes the item once every dependency is resolved.
	Build(deps Dependencies) (T, error)
	// Release undoes the side effects of a build when its item is destroyed.
	Release(built T)
}

// Closer is optionally implemented by hooks that hold resources for the
// whole lifetime of a loader.
type Closer interface {
	Close()
}

// HookFuncs adapts plain functions to Hooks. Nil functions are no-ops.
type HookFuncs[T item.Item] struct {
	PrepareFunc func(deps Dependencies) error
	BuildFunc   func(deps Dependencies) (T, error)
	ReleaseFunc func(built T)
}

func (h HookFuncs[T]) Prepare(deps Dependencies) error {
	if h.PrepareFunc == nil {
		return nil
	}
	return h.PrepareFunc(deps)
}

func (h HookFuncs[T]) Build(deps Dependencies) (T, error) {
	if h.BuildFunc == nil {
		var zero T
		return zero, fmt.Errorf("no build function for %s", deps.Path())
	}
	return h.BuildFunc(deps)
}

func (h HookFuncs[T]) Release(built T) {
	if h.ReleaseFunc != nil {
		h.ReleaseFunc(built)
	}
}

// DependencyAs returns the dependency id as type D.
func DependencyAs[D item.Item](deps Dependencies, id eid.EID) (D, error) {
	var zero D
	it, err := deps.Dependency(id)
	if err != nil {
		return zero, err
	}
	d, ok := it.(D)
	if !ok {
		return zero, fmt.Errorf("dependency '%s' is a %s, not the expected type", id, it.Kind())
	}
	return d, nil
}

// ResultListener receives the lifecycle of the items built by a loader.
type ResultListener[T item.Item] interface {
	ItemBuilt(it T)
	ItemUpdated(it T)
	ItemDestroyed(id eid.EID)
}
