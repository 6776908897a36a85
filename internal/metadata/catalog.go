package metadata

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/observer"
	"github.com/zjrosen/suiteloader/internal/pubsub"
	"github.com/zjrosen/suiteloader/internal/registry"
	"github.com/zjrosen/suiteloader/internal/store"
)

// Catalog loads all metadata kinds from one projects directory and keeps
// them current while the observer watches it.
type Catalog struct {
	registry  *registry.Registry
	observer  *observer.Observer
	items     *store.Items
	broker    *pubsub.Broker[loader.Change]
	factories *Factories

	mu  sync.Mutex
	dir string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithStore persists built items in items.
func WithStore(items *store.Items) Option {
	return func(c *Catalog) { c.items = items }
}

// NewCatalog creates a catalog whose loaders resolve through reg and whose
// files are discovered by obs.
func NewCatalog(reg *registry.Registry, obs *observer.Observer, opts ...Option) *Catalog {
	c := &Catalog{
		registry: reg,
		observer: obs,
		broker:   pubsub.NewBroker[loader.Change](),
	}
	for _, opt := range opts {
		opt(c)
	}
	var st Store
	if c.items != nil {
		st = c.items
	}
	c.factories = NewFactories(reg, st, c.broker)
	return c
}

// Init registers the factories against dir. Stored items of files below dir
// that no longer exist are pruned first.
func (c *Catalog) Init(ctx context.Context, dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dir != "" {
		return fmt.Errorf("catalog already initialized for %s", c.dir)
	}

	if c.items != nil {
		keep := func(source string) bool {
			if !below(abs, source) {
				return true
			}
			_, err := os.Stat(source)
			return err == nil
		}
		if _, err := c.items.Prune(ctx, keep); err != nil {
			return fmt.Errorf("pruning stored items: %w", err)
		}
	}

	if err := c.observer.Register(ctx, abs, c.factories.All()...); err != nil {
		return err
	}
	c.dir = abs

	counts := c.factories.Counts()
	fields := []any{"dir", abs, "unresolved", len(c.registry.Unresolved())}
	for _, k := range Kinds {
		fields = append(fields, string(k), counts[k])
	}
	log.Info(log.CatCatalog, "Catalog initialized", fields...)
	return nil
}

// Release deregisters the factories, destroying every built item. The
// catalog can be initialized again afterwards.
func (c *Catalog) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dir == "" {
		return
	}
	c.observer.Deregister(c.factories.All()...)
	log.Info(log.CatCatalog, "Catalog released", "dir", c.dir)
	c.dir = ""
}

// Close releases the catalog and closes its event stream.
func (c *Catalog) Close() {
	c.Release()
	c.broker.Close()
}

// Dir returns the initialized projects directory, or "".
func (c *Catalog) Dir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dir
}

// Factories returns the per-kind factories.
func (c *Catalog) Factories() *Factories {
	return c.factories
}

// Subscribe streams item lifecycle changes of all kinds.
func (c *Catalog) Subscribe(ctx context.Context) <-chan pubsub.Event[loader.Change] {
	return c.broker.Subscribe(ctx)
}

// Get returns the live item with id.
func (c *Catalog) Get(id eid.EID) (item.Item, error) {
	return c.registry.Get(id)
}

// Unresolved returns the ids loaders wait for that are not resolved. This
// includes ids of items that exist but wait for dependencies themselves.
func (c *Catalog) Unresolved() []eid.EID {
	return c.registry.Unresolved()
}

// Counts returns the number of built items per kind.
func (c *Catalog) Counts() map[item.Kind]int {
	return c.factories.Counts()
}

// Snapshot is a point in time view of all built items, sorted by id.
type Snapshot struct {
	Tags                       []*Tag                       `json:"tags"`
	TranslationTemplateBundles []*TranslationTemplateBundle `json:"translationTemplateBundles"`
	TestObjects                []*TestObject                `json:"testObjects"`
	ExecutableTestSuites       []*ExecutableTestSuite       `json:"executableTestSuites"`
	TestRunTemplates           []*TestRunTemplate           `json:"testRunTemplates"`
	Unresolved                 []eid.EID                    `json:"unresolved"`
}

// Snapshot returns the current items.
func (c *Catalog) Snapshot() Snapshot {
	f := c.factories
	return Snapshot{
		Tags:                       sortedValues(f.Tags.Items()),
		TranslationTemplateBundles: sortedValues(f.TranslationTemplateBundles.Items()),
		TestObjects:                sortedValues(f.TestObjects.Items()),
		ExecutableTestSuites:       sortedValues(f.ExecutableTestSuites.Items()),
		TestRunTemplates:           sortedValues(f.TestRunTemplates.Items()),
		Unresolved:                 c.registry.Unresolved(),
	}
}

func sortedValues[T item.Item](m map[eid.EID]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	slices.SortFunc(out, func(a, b T) int { return a.ID().Compare(b.ID()) })
	return out
}

func below(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
