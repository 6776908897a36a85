// Package observer discovers item files below watched root directories,
// matches them to loader factories and drives the loader lifecycle.
//
// All reconciliation runs under one observer lock, so events for a loader
// are always serialized.
package observer

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/tracing"
	"github.com/zjrosen/suiteloader/internal/watcher"
)

// Option configures an Observer.
type Option func(*Observer)

// WithWatch enables file system watching with the given debounce window.
func WithWatch(debounce time.Duration) Option {
	return func(o *Observer) {
		o.watch = true
		o.debounce = debounce
	}
}

// WithTracer records indexing passes as spans of t.
func WithTracer(t trace.Tracer) Option {
	return func(o *Observer) {
		if t != nil {
			o.tracer = t
		}
	}
}

// Observer owns the watched roots and the factories registered against them.
type Observer struct {
	mu       sync.Mutex
	paths    map[string]*pathObserver
	watch    bool
	debounce time.Duration
	tracer   trace.Tracer
	wg       sync.WaitGroup
	closed   bool
}

// New creates an observer. Without WithWatch, roots are only indexed on
// Register and Rescan.
func New(opts ...Option) *Observer {
	o := &Observer{
		paths:  make(map[string]*pathObserver),
		tracer: noop.NewTracerProvider().Tracer("noop"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type indexKey struct {
	factory loader.Factory
	path    string
}

type indexedFile struct {
	listener loader.FileListener
	modTime  time.Time
}

type pathObserver struct {
	root      string
	factories []loader.Factory
	indexed   map[indexKey]*indexedFile
	tracer    trace.Tracer
	watcher   *watcher.Watcher
	done      chan struct{}
}

// Register adds factories to root and indexes root for them. A root that is
// already observed is indexed for the new factories only.
func (o *Observer) Register(ctx context.Context, root string, factories ...loader.Factory) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("observing %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("observing %s: not a directory", abs)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return fmt.Errorf("observer is closed")
	}

	ctx, span := o.tracer.Start(ctx, tracing.SpanRegister)
	span.SetAttributes(attribute.String(tracing.AttrRoot, abs), attribute.Int(tracing.AttrFactories, len(factories)))
	defer span.End()

	p, ok := o.paths[abs]
	if !ok {
		p = &pathObserver{
			root:    abs,
			indexed: make(map[indexKey]*indexedFile),
			tracer:  o.tracer,
		}
	}
	var added []loader.Factory
	for _, f := range factories {
		if f != nil && !slices.Contains(p.factories, f) && !slices.Contains(added, f) {
			added = append(added, f)
		}
	}
	if len(added) == 0 {
		return nil
	}

	if !ok && o.watch {
		if err := o.startWatching(p); err != nil {
			return err
		}
	}
	o.paths[abs] = p
	p.factories = append(p.factories, added...)
	log.Info(log.CatObserver, "Registered factories", "root", abs, "count", len(added))

	p.reindex(ctx, []string{abs}, added)
	return nil
}

// Deregister releases every loader created by factories and stops watching
// roots that have no factories left.
func (o *Observer) Deregister(factories ...loader.Factory) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for root, p := range o.paths {
		p.releaseFor(factories)
		p.factories = slices.DeleteFunc(p.factories, func(f loader.Factory) bool {
			return slices.Contains(factories, f)
		})
		if len(p.factories) == 0 {
			p.stop()
			delete(o.paths, root)
			log.Info(log.CatObserver, "Stopped observing", "root", root)
		}
	}
}

// Rescan re-indexes a whole observed root for all of its factories.
func (o *Observer) Rescan(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.paths[abs]
	if !ok {
		return fmt.Errorf("%s is not observed", abs)
	}
	p.reindex(ctx, []string{abs}, p.factories)
	return nil
}

// Roots returns the sorted observed roots.
func (o *Observer) Roots() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Sorted(maps.Keys(o.paths))
}

// Indexed returns the sorted paths indexed below root.
func (o *Observer) Indexed(root string) []string {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.paths[abs]
	if !ok {
		return nil
	}
	set := make(map[string]struct{}, len(p.indexed))
	for k := range p.indexed {
		set[k.path] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Close stops all watchers and releases every loader.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	for root, p := range o.paths {
		p.releaseFor(p.factories)
		p.stop()
		delete(o.paths, root)
	}
	o.mu.Unlock()

	o.wg.Wait()
}

func (o *Observer) startWatching(p *pathObserver) error {
	cfg := watcher.DefaultConfig(p.root)
	if o.debounce > 0 {
		cfg.DebounceDur = o.debounce
	}
	w, err := watcher.New(cfg)
	if err != nil {
		return err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return fmt.Errorf("watching %s: %w", p.root, err)
	}
	p.watcher = w
	p.done = make(chan struct{})

	o.wg.Add(1)
	go o.watchLoop(p, changes)
	log.Debug(log.CatObserver, "Watching root", "root", p.root, "debounce", cfg.DebounceDur)
	return nil
}

func (o *Observer) watchLoop(p *pathObserver, changes <-chan watcher.Batch) {
	defer o.wg.Done()
	for {
		select {
		case <-p.done:
			return
		case batch := <-changes:
			o.mu.Lock()
			select {
			case <-p.done:
				o.mu.Unlock()
				return
			default:
			}
			dirs := topmost(p.root, batch.Dirs())
			log.Debug(log.CatObserver, "Processing changes", "root", p.root, "paths", len(batch.Events), "dirs", len(dirs))
			p.reindex(context.Background(), dirs, p.factories)
			o.mu.Unlock()
		}
	}
}

func (p *pathObserver) stop() {
	if p.watcher == nil {
		return
	}
	close(p.done)
	if err := p.watcher.Stop(); err != nil {
		log.ErrorErr(log.CatObserver, "Stopping watcher failed", err, "root", p.root)
	}
	p.watcher = nil
}

// releaseFor releases the loaders of factories, dependents first.
func (p *pathObserver) releaseFor(factories []loader.Factory) {
	var (
		keys      []indexKey
		listeners []loader.FileListener
	)
	for k, f := range p.indexed {
		if slices.Contains(factories, k.factory) {
			keys = append(keys, k)
			listeners = append(listeners, f.listener)
		}
	}
	for _, k := range keys {
		delete(p.indexed, k)
	}
	loader.Sort(listeners)
	for i := len(listeners) - 1; i >= 0; i-- {
		fire(listeners[i], "release", loader.FileListener.Release)
	}
}

// reindex indexes dirs for factories and reconciles the result.
func (p *pathObserver) reindex(ctx context.Context, dirs []string, factories []loader.Factory) {
	if len(dirs) == 0 || len(factories) == 0 {
		return
	}
	ctx, span := p.tracer.Start(ctx, tracing.SpanReindex)
	span.SetAttributes(attribute.String(tracing.AttrRoot, p.root), attribute.StringSlice(tracing.AttrDirs, dirs))
	defer span.End()

	found := p.index(dirs, factories)
	span.SetAttributes(attribute.Int(tracing.AttrCandidates, len(found)))
	p.afterIndex(ctx, dirs, factories, found)
}

// afterIndex reconciles the index with a fresh candidate list covering dirs:
// vanished files are deleted, changed files updated and new files created in
// loader order.
func (p *pathObserver) afterIndex(ctx context.Context, dirs []string, factories []loader.Factory, found []candidate) {
	_, span := p.tracer.Start(ctx, tracing.SpanReconcile)
	defer span.End()

	current := make(map[indexKey]candidate, len(found))
	for _, c := range found {
		current[indexKey{factory: c.factory, path: c.path}] = c
	}

	var deleted []loader.FileListener
	for k, f := range p.indexed {
		if _, ok := current[k]; ok {
			continue
		}
		if !slices.Contains(factories, k.factory) || !coveredBy(dirs, k.path) {
			continue
		}
		delete(p.indexed, k)
		deleted = append(deleted, f.listener)
	}
	loader.Sort(deleted)
	for i := len(deleted) - 1; i >= 0; i-- {
		fire(deleted[i], "delete", loader.FileListener.FileDeleted)
	}

	var (
		updated []loader.FileListener
		created []loader.FileListener
	)
	for _, k := range sortedKeys(current) {
		c := current[k]
		if f, ok := p.indexed[k]; ok {
			if !f.modTime.Equal(c.modTime) {
				f.modTime = c.modTime
				updated = append(updated, f.listener)
			}
			continue
		}
		l, err := c.factory.Load(c.path)
		if err != nil {
			log.ErrorErr(log.CatObserver, "Creating loader failed", err, "file", c.path)
			continue
		}
		if l == nil {
			continue
		}
		p.indexed[k] = &indexedFile{listener: l, modTime: c.modTime}
		created = append(created, l)
	}

	loader.Sort(updated)
	for _, l := range updated {
		fire(l, "update", loader.FileListener.FileUpdated)
	}
	loader.Sort(created)
	for _, l := range created {
		fire(l, "create", loader.FileListener.FileCreated)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrCreated, len(created)),
		attribute.Int(tracing.AttrUpdated, len(updated)),
		attribute.Int(tracing.AttrDeleted, len(deleted)),
	)
	if len(created)+len(updated)+len(deleted) > 0 {
		log.Info(log.CatObserver, "Reconciled files", "root", p.root,
			"created", len(created), "updated", len(updated), "deleted", len(deleted))
	}
}

func coveredBy(dirs []string, path string) bool {
	return slices.ContainsFunc(dirs, func(d string) bool { return within(d, path) })
}

func sortedKeys(m map[indexKey]candidate) []indexKey {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b indexKey) int {
		if a.path < b.path {
			return -1
		}
		if a.path > b.path {
			return 1
		}
		return 0
	})
	return keys
}

// fire delivers one event and contains panics of loader code.
func fire(l loader.FileListener, event string, fn func(loader.FileListener)) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(log.CatObserver, "Loader panicked", "event", event, "file", l.SortKey().Path, "panic", r)
		}
	}()
	fn(l)
}
