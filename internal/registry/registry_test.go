package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/testutil"
)

func ids(values ...string) []eid.EID {
	return eid.Parse(values...)
}

func TestRegister_ThenLookupDependency(t *testing.T) {
	r := New()
	dto1 := testutil.NewDto("1")
	require.NoError(t, r.Register(dto1))

	l := &testutil.RecordingListener{}
	found := r.LookupDependency(ids("1"), l)

	require.Len(t, found, 1)
	require.Equal(t, "1", found[dto1.ID()].(*testutil.Dto).Name)
	resolved, updated, deregistered := l.Counts()
	require.Zero(t, resolved+updated+deregistered, "lookup must not notify")
}

func TestLookupDependency_ReturnsOnlyResolvedSubset(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(testutil.NewDto("1")))

	l := &testutil.RecordingListener{}
	found := r.LookupDependency(ids("1", "2"), l)

	require.Len(t, found, 1)
	require.Contains(t, found, eid.MustNew("1"))
	require.Equal(t, []eid.EID{eid.MustNew("2")}, r.Unresolved())
}

func TestRegister_NotifiesWaitingListener(t *testing.T) {
	r := New()
	l := &testutil.RecordingListener{}
	r.LookupDependency(ids("1", "2"), l)

	dto2 := testutil.NewDto("2")
	require.NoError(t, r.Register(dto2))

	require.Len(t, l.Resolved, 1)
	require.Equal(t, dto2.ID(), l.Resolved[0].ID())

	found := r.LookupDependency(ids("1", "2"), l)
	require.Len(t, found, 1)
	require.Equal(t, 1, r.ListenerCount(eid.MustNew("2")), "listener is attached once")
}

func TestRegister_DuplicateFailsLoudly(t *testing.T) {
	r := New()
	first := testutil.NewDto("1")
	require.NoError(t, r.Register(first))

	dup := testutil.NewDto("1")
	dup.Name = "other"
	err := r.Register(dup)

	require.ErrorIs(t, err, ErrDuplicate)
	var dupErr *DuplicateRegistrationError
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, eid.MustNew("1"), dupErr.ID)
	require.Contains(t, err.Error(), "'1'")

	got, err := r.Get(eid.MustNew("1"))
	require.NoError(t, err)
	require.Equal(t, "1", got.(*testutil.Dto).Name, "existing entry left untouched")
}

func TestDeregister_NotifiesAndPreservesListeners(t *testing.T) {
	r := New()
	dto := testutil.NewDto("1")
	require.NoError(t, r.Register(dto))

	l1 := &testutil.RecordingListener{}
	l2 := &testutil.RecordingListener{}
	r.LookupDependency(ids("1"), l1)
	r.LookupDependency(ids("1"), l2)

	r.Deregister(dto)

	for _, l := range []*testutil.RecordingListener{l1, l2} {
		require.Equal(t, []testutil.Deregistration{{Kind: testutil.KindDto, ID: dto.ID()}}, l.Deregistered)
	}
	_, err := r.Lookup(dto.ID())
	require.ErrorIs(t, err, ErrNotFound)

	// listeners survive the revert to unknown
	require.NoError(t, r.Register(dto))
	require.Len(t, l1.Resolved, 1)
	require.Len(t, l2.Resolved, 1)
}

func TestDeregister_UnknownIsNoop(t *testing.T) {
	r := New()
	l := &testutil.RecordingListener{}
	r.LookupDependency(ids("1"), l)

	r.Deregister(testutil.NewDto("1"))
	r.Deregister(testutil.NewDto("never-seen"))

	require.Empty(t, l.Deregistered)
}

func TestUpdate_ResolvedNotifiesAndReplaces(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(testutil.NewDto("1")))
	l := &testutil.RecordingListener{}
	r.LookupDependency(ids("1"), l)

	next := testutil.NewDto("1")
	next.Version = 2
	require.NoError(t, r.Update(next))

	require.Len(t, l.Updated, 1)
	got, err := r.Get(next.ID())
	require.NoError(t, err)
	require.Equal(t, 2, got.(*testutil.Dto).Version)
}

func TestUpdate_UnknownReturnsNotFound(t *testing.T) {
	r := New()
	l := &testutil.RecordingListener{}
	r.LookupDependency(ids("1"), l)

	err := r.Update(testutil.NewDto("1"))
	require.ErrorIs(t, err, ErrNotFound)

	resolved, updated, _ := l.Counts()
	require.Zero(t, resolved)
	require.Zero(t, updated)
	require.Equal(t, []eid.EID{eid.MustNew("1")}, r.Unresolved(), "update does not resolve")
}

func TestLookup_Strict(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(testutil.NewDto("1")))

	found, err := r.Lookup(eid.MustNew("1"))
	require.NoError(t, err)
	require.Len(t, found, 1)

	_, err = r.Lookup(eid.MustNew("1"), eid.MustNew("2"))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, eid.MustNew("2"), nf.ID)
	require.Empty(t, r.Unresolved(), "strict lookup registers nothing")
}

func TestDeregisterListener_DetachesEverywhere(t *testing.T) {
	r := New()
	l := &testutil.RecordingListener{}
	r.LookupDependency(ids("1", "2"), l)

	r.DeregisterListener(l)
	require.NoError(t, r.Register(testutil.NewDto("1"), testutil.NewDto("2")))

	require.Empty(t, l.Resolved)
	require.Zero(t, r.ListenerCount(eid.MustNew("1")))
}

type panickingListener struct{ testutil.RecordingListener }

func (p *panickingListener) DependencyResolved(item.Item) { panic("broken dependent") }

func TestRegister_ListenerPanicIsSuppressed(t *testing.T) {
	r := New()
	bad := &panickingListener{}
	good := &testutil.RecordingListener{}
	r.LookupDependency(ids("1"), bad)
	r.LookupDependency(ids("1"), good)

	require.NotPanics(t, func() {
		require.NoError(t, r.Register(testutil.NewDto("1")))
	})
	require.Len(t, good.Resolved, 1)
}

func TestRegister_ListenerMayReenterRegistry(t *testing.T) {
	r := New()
	l := &testutil.RecordingListener{}
	l.OnResolved = func(it item.Item) {
		// cascading registration from inside a callback
		if it.ID() == eid.MustNew("A") {
			require.NoError(t, r.Register(testutil.NewDto("B")))
		}
	}
	r.LookupDependency(ids("A", "B"), l)

	require.NoError(t, r.Register(testutil.NewDto("A")))

	require.Len(t, l.Resolved, 2)
	require.Equal(t, []eid.EID{eid.MustNew("A"), eid.MustNew("B")}, r.Resolved())
}

func TestEntryTransitions(t *testing.T) {
	dto := testutil.NewDto("1")
	var e entry
	require.Equal(t, "unknown", e.state.String())

	next, n, err := e.resolve(dto)
	require.NoError(t, err)
	require.Equal(t, stateResolved, next.state)
	require.Equal(t, notifyResolved, n.kind)
	require.Equal(t, stateUnknown, e.state, "receiver is not mutated")

	_, _, err = next.resolve(dto)
	require.ErrorIs(t, err, ErrDuplicate)

	back, n := next.deregister()
	require.Equal(t, stateUnknown, back.state)
	require.Equal(t, notifyDeregistered, n.kind)
	require.Equal(t, dto.ID(), n.id)

	_, n = back.deregister()
	require.Equal(t, notifyNone, n.kind)
}
