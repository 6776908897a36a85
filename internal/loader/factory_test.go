package loader

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/pubsub"
	"github.com/zjrosen/suiteloader/internal/registry"
	"github.com/zjrosen/suiteloader/internal/testutil"
)

func TestMatchName(t *testing.T) {
	match := MatchName("Tag-", ".yaml", ".yml")
	require.True(t, match("/projects/x/Tag-core.yaml"))
	require.True(t, match("Tag-core.yml"))
	require.False(t, match("/projects/Tag-core.xml"))
	require.False(t, match("/projects/Tag-/TestObject-x.yaml"))
}

func newDtoFactory(reg Registry, broker *pubsub.Broker[Change], priority int) *FileFactory[*testutil.Dto] {
	return NewFileFactory(FileFactoryConfig[*testutil.Dto]{
		Kind:     testutil.KindDto,
		Priority: priority,
		Registry: reg,
		Broker:   broker,
		NewHooks: func(path string) (Hooks[*testutil.Dto], error) {
			if path == "/p/Dto-broken.yaml" {
				return nil, errors.New("cannot open")
			}
			return &fakeHooks{id: path}, nil
		},
	})
}

func TestFileFactory_LoadCreatesBoundLoader(t *testing.T) {
	reg := registry.New()
	f := newDtoFactory(reg, nil, 300)

	require.True(t, f.CouldHandle("/p/Dto-one.yaml"))
	fl, err := f.Load("/p/Dto-one.yaml")
	require.NoError(t, err)
	require.NotNil(t, fl)
	require.Equal(t, SortKey{Priority: 300, Path: "/p/Dto-one.yaml"}, fl.SortKey())

	fl.FileCreated()
	require.Equal(t, 1, f.Len())
	_, err = reg.Get(eid.MustNew("/p/Dto-one.yaml"))
	require.NoError(t, err)
}

func TestFileFactory_LoadIgnoresUnhandled(t *testing.T) {
	f := newDtoFactory(registry.New(), nil, 300)
	fl, err := f.Load("/p/Other-one.yaml")
	require.NoError(t, err)
	require.Nil(t, fl)
}

func TestFileFactory_LoadPropagatesHookErrors(t *testing.T) {
	f := newDtoFactory(registry.New(), nil, 300)
	fl, err := f.Load("/p/Dto-broken.yaml")
	require.Error(t, err)
	require.Nil(t, fl)
}

func TestFactoryBase_SnapshotIsACopy(t *testing.T) {
	base := newBase()
	base.ItemBuilt(testutil.NewDto("A"))

	snapshot := base.Items()
	delete(snapshot, eid.MustNew("A"))

	require.Equal(t, 1, base.Len())
}

func TestFactoryBase_PublishesChanges(t *testing.T) {
	broker := pubsub.NewBroker[Change]()
	defer broker.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := broker.Subscribe(ctx)

	base := NewFactoryBase[*testutil.Dto](testutil.KindDto, broker)
	base.ItemBuilt(testutil.NewDto("A"))
	base.ItemUpdated(testutil.NewDto("A"))
	base.ItemDestroyed(eid.MustNew("A"))

	var types []pubsub.EventType
	for i := 0; i < 3; i++ {
		select {
		case ev := <-ch:
			require.Equal(t, eid.MustNew("A"), ev.Payload.ID)
			require.Equal(t, testutil.KindDto, ev.Payload.Kind)
			types = append(types, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for change")
		}
	}
	require.Equal(t, []pubsub.EventType{pubsub.CreatedEvent, pubsub.UpdatedEvent, pubsub.DeletedEvent}, types)
}
