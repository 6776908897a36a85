package metadata_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/metadata"
	"github.com/zjrosen/suiteloader/internal/observer"
	"github.com/zjrosen/suiteloader/internal/pubsub"
	"github.com/zjrosen/suiteloader/internal/registry"
	"github.com/zjrosen/suiteloader/internal/store"
	"github.com/zjrosen/suiteloader/internal/testutil"
)

type fixture struct {
	project  *testutil.Project
	registry *registry.Registry
	observer *observer.Observer
	items    *store.Items
	catalog  *metadata.Catalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.NewDB(filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		project:  testutil.NewProject(t),
		registry: registry.New(),
		observer: observer.New(),
		items:    db.Items(time.Minute),
	}
	f.catalog = metadata.NewCatalog(f.registry, f.observer, metadata.WithStore(f.items))
	t.Cleanup(func() {
		f.catalog.Close()
		f.observer.Close()
	})
	return f
}

func (f *fixture) init(t *testing.T) {
	t.Helper()
	require.NoError(t, f.catalog.Init(context.Background(), f.project.Root))
}

func (f *fixture) rescan(t *testing.T) {
	t.Helper()
	require.NoError(t, f.observer.Rescan(context.Background(), f.project.Root))
}

// writeFullProject writes one item of each kind with all references set.
func writeFullProject(p *testutil.Project) {
	p.WriteIn("tags", "Tag", "smoke", map[string]any{"id": "smoke", "label": "Smoke"})
	p.WriteIn("tags", "Tag", "wfs", map[string]any{"id": "wfs", "label": "WFS"})
	p.WriteIn("bundles", "TranslationTemplateBundle", "base", map[string]any{
		"id": "ttb-base", "language": "en", "templates": map[string]any{"fail": "{0} failed"},
	})
	p.WriteIn("bundles", "TranslationTemplateBundle", "de", map[string]any{
		"id": "ttb-de", "parent": "ttb-base", "language": "de",
	})
	p.WriteIn("objects", "TestObject", "service", map[string]any{
		"id": "service", "tags": []string{"wfs"}, "properties": map[string]any{"url": "http://example.org"},
	})
	p.WriteIn("suites", "ExecutableTestSuite", "base", map[string]any{
		"id": "suite-base", "tags": []string{"smoke"}, "version": "1.0.0",
	})
	p.WriteIn("suites", "ExecutableTestSuite", "wfs", map[string]any{
		"id": "suite-wfs", "tags": []string{"wfs", "smoke"}, "translationTemplateBundle": "ttb-de",
		"dependencies": []string{"suite-base"},
	})
	p.WriteIn("templates", "TestRunTemplate", "nightly", map[string]any{
		"id": "nightly", "executableTestSuites": []string{"suite-wfs"}, "testObjects": []string{"service"},
	})
}

func TestCatalog_LoadsAllKinds(t *testing.T) {
	f := newFixture(t)
	writeFullProject(f.project)
	f.init(t)

	snap := f.catalog.Snapshot()
	require.Len(t, snap.Tags, 2)
	require.Equal(t, "smoke", snap.Tags[0].ID().String())
	require.Len(t, snap.TranslationTemplateBundles, 2)
	require.Len(t, snap.TestObjects, 1)
	require.Equal(t, "http://example.org", snap.TestObjects[0].Properties["url"])
	require.Len(t, snap.ExecutableTestSuites, 2)
	require.Len(t, snap.TestRunTemplates, 1)
	require.Empty(t, snap.Unresolved)

	it, err := f.catalog.Get(eid.MustNew("suite-wfs"))
	require.NoError(t, err)
	suite := it.(*metadata.ExecutableTestSuite)
	require.Equal(t, eid.MustNew("ttb-de"), suite.TranslationTemplateBundle)
	require.Equal(t, eid.Parse("suite-base"), suite.Dependencies)

	rec, err := f.items.FindByID(context.Background(), eid.MustNew("nightly"))
	require.NoError(t, err)
	require.Equal(t, metadata.KindTestRunTemplate, rec.Kind)
	require.Equal(t, eid.Parse("suite-wfs"), rec.Refs["executableTestSuites"])
	require.Equal(t, filepath.Join(f.project.Root, "templates", "TestRunTemplate-nightly.yaml"), rec.Source)
}

func TestCatalog_MissingReferenceWaitsUntilProvided(t *testing.T) {
	f := newFixture(t)
	f.project.Write("ExecutableTestSuite", "s", map[string]any{"id": "s", "tags": []string{"later"}})
	f.init(t)

	require.Empty(t, f.catalog.Snapshot().ExecutableTestSuites)
	require.Equal(t, eid.Parse("later"), f.catalog.Unresolved())
	_, err := f.items.FindByID(context.Background(), eid.MustNew("s"))
	require.ErrorIs(t, err, store.ErrNotFound)

	f.project.Write("Tag", "later", map[string]any{"id": "later"})
	f.rescan(t)

	require.Len(t, f.catalog.Snapshot().ExecutableTestSuites, 1)
	require.Empty(t, f.catalog.Unresolved())
}

func TestCatalog_WrongReferenceKindIsNotBuilt(t *testing.T) {
	f := newFixture(t)
	f.project.Write("TestObject", "o", map[string]any{"id": "o"})
	f.project.Write("ExecutableTestSuite", "s", map[string]any{"id": "s", "tags": []string{"o"}})
	f.init(t)

	snap := f.catalog.Snapshot()
	require.Len(t, snap.TestObjects, 1)
	require.Empty(t, snap.ExecutableTestSuites)
}

func TestCatalog_DeletingATagCascades(t *testing.T) {
	f := newFixture(t)
	writeFullProject(f.project)
	f.init(t)

	f.project.Remove(filepath.Join(f.project.Root, "tags", "Tag-smoke.yaml"))
	f.rescan(t)

	snap := f.catalog.Snapshot()
	require.Len(t, snap.Tags, 1)
	require.Empty(t, snap.ExecutableTestSuites)
	require.Empty(t, snap.TestRunTemplates)
	require.Len(t, snap.TestObjects, 1, "unrelated items stay")
	require.Equal(t, eid.Parse("smoke", "suite-base", "suite-wfs"), snap.Unresolved)

	_, err := f.items.FindByID(context.Background(), eid.MustNew("nightly"))
	require.ErrorIs(t, err, store.ErrNotFound, "destroyed items are removed from the store")
}

func TestCatalog_UpdatedFileRebuildsDependents(t *testing.T) {
	f := newFixture(t)
	writeFullProject(f.project)
	f.init(t)

	path := f.project.WriteIn("tags", "Tag", "smoke", map[string]any{"id": "smoke", "label": "Smoke v2"})
	f.project.Touch(path)
	f.rescan(t)

	it, err := f.catalog.Get(eid.MustNew("smoke"))
	require.NoError(t, err)
	require.Equal(t, "Smoke v2", it.(*metadata.Tag).Label)
	require.Len(t, f.catalog.Snapshot().TestRunTemplates, 1)

	rec, err := f.items.FindByID(context.Background(), eid.MustNew("smoke"))
	require.NoError(t, err)
	require.Equal(t, "Smoke v2", rec.Label)
}

func TestCatalog_DuplicateIDsBuildOnce(t *testing.T) {
	f := newFixture(t)
	first := f.project.WriteIn("a", "Tag", "dup", map[string]any{"id": "dup", "label": "first"})
	f.project.WriteIn("b", "Tag", "dup", map[string]any{"id": "dup", "label": "second"})
	f.init(t)

	require.Len(t, f.catalog.Snapshot().Tags, 1)
	rec, err := f.items.FindByID(context.Background(), eid.MustNew("dup"))
	require.NoError(t, err)
	require.Equal(t, first, rec.Source)
	require.Equal(t, "first", rec.Label)
}

func TestCatalog_MalformedFileDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	f.project.WriteRaw("Tag-broken.yaml", "id: [unterminated\n")
	f.project.WriteRaw("Tag-foreign.yaml", "id: foreign\ntestObjects: [x]\n")
	f.project.Write("Tag", "ok", map[string]any{"id": "ok"})
	f.init(t)

	snap := f.catalog.Snapshot()
	require.Len(t, snap.Tags, 1)
	require.Equal(t, "ok", snap.Tags[0].ID().String())
}

func TestCatalog_PublishesChanges(t *testing.T) {
	f := newFixture(t)
	f.project.Write("Tag", "a", map[string]any{"id": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := f.catalog.Subscribe(ctx)
	f.init(t)

	select {
	case ev := <-changes:
		require.Equal(t, pubsub.CreatedEvent, ev.Type)
		require.Equal(t, loader.Change{Kind: metadata.KindTag, ID: eid.MustNew("a"), Item: ev.Payload.Item}, ev.Payload)
		require.NotNil(t, ev.Payload.Item)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for change")
	}
}

func TestCatalog_InitReleaseLifecycle(t *testing.T) {
	f := newFixture(t)
	f.project.Write("Tag", "a", map[string]any{"id": "a"})
	f.init(t)
	require.Equal(t, f.project.Root, f.catalog.Dir())
	require.Error(t, f.catalog.Init(context.Background(), f.project.Root), "double init")

	f.catalog.Release()
	require.Empty(t, f.catalog.Dir())
	require.Zero(t, f.catalog.Counts()[metadata.KindTag])
	_, err := f.items.FindByID(context.Background(), eid.MustNew("a"))
	require.ErrorIs(t, err, store.ErrNotFound)

	f.init(t)
	require.Equal(t, 1, f.catalog.Counts()[metadata.KindTag])
}

func TestCatalog_InitPrunesStaleRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.items.Save(ctx, &store.Record{
		ID: eid.MustNew("gone"), Kind: metadata.KindTag, Source: filepath.Join(f.project.Root, "Tag-gone.yaml"),
	}))
	require.NoError(t, f.items.Save(ctx, &store.Record{
		ID: eid.MustNew("elsewhere"), Kind: metadata.KindTag, Source: "/other/root/Tag-elsewhere.yaml",
	}))

	f.init(t)

	_, err := f.items.FindByID(ctx, eid.MustNew("gone"))
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.items.FindByID(ctx, eid.MustNew("elsewhere"))
	require.NoError(t, err, "rows of other roots are kept")
}

func TestCatalog_WithoutStore(t *testing.T) {
	p := testutil.NewProject(t)
	p.Write("Tag", "a", map[string]any{"id": "a"})
	p.Write("Tag", "b", map[string]any{"id": "a"})

	obs := observer.New()
	defer obs.Close()
	c := metadata.NewCatalog(registry.New(), obs)
	defer c.Close()
	require.NoError(t, c.Init(context.Background(), p.Root))

	require.Len(t, c.Snapshot().Tags, 1, "duplicate discarded by the registry")
	require.Len(t, c.Factories().All(), 5)
}
