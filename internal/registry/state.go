package registry

import (
	"slices"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
)

// state is the resolution state of a dependency entry.
type state uint8

const (
	stateUnknown state = iota
	stateResolved
)

func (s state) String() string {
	if s == stateResolved {
		return "resolved"
	}
	return "unknown"
}

// entry is the registry record of one id. The zero value is an unknown entry
// without listeners. Transition methods never mutate the receiver; they
// return the next entry and the notification to deliver once it is stored.
type entry struct {
	state     state
	item      item.Item // set iff state == stateResolved
	listeners []Listener
}

type notifyKind uint8

const (
	notifyNone notifyKind = iota
	notifyResolved
	notifyUpdated
	notifyDeregistered
)

// notification is delivered outside the registry lock.
type notification struct {
	kind      notifyKind
	listeners []Listener
	item      item.Item
	itemKind  item.Kind
	id        eid.EID
}

func (e entry) resolve(it item.Item) (entry, notification, error) {
	switch e.state {
	case stateUnknown:
		next := entry{state: stateResolved, item: it, listeners: e.listeners}
		return next, notification{kind: notifyResolved, listeners: slices.Clone(e.listeners), item: it}, nil
	default:
		return e, notification{}, &DuplicateRegistrationError{ID: it.ID()}
	}
}

func (e entry) update(it item.Item) (entry, notification, error) {
	switch e.state {
	case stateResolved:
		next := entry{state: stateResolved, item: it, listeners: e.listeners}
		return next, notification{kind: notifyUpdated, listeners: slices.Clone(e.listeners), item: it}, nil
	default:
		return e, notification{}, &NotFoundError{ID: it.ID()}
	}
}

// deregister reverts a resolved entry to unknown, keeping its listeners.
func (e entry) deregister() (entry, notification) {
	switch e.state {
	case stateResolved:
		n := notification{
			kind:      notifyDeregistered,
			listeners: slices.Clone(e.listeners),
			itemKind:  e.item.Kind(),
			id:        e.item.ID(),
		}
		return entry{state: stateUnknown, listeners: e.listeners}, n
	default:
		return e, notification{}
	}
}

func (e entry) withListener(l Listener) entry {
	if l == nil || slices.Contains(e.listeners, l) {
		return e
	}
	e.listeners = append(slices.Clone(e.listeners), l)
	return e
}

func (e entry) withoutListener(l Listener) entry {
	i := slices.Index(e.listeners, l)
	if i < 0 {
		return e
	}
	e.listeners = slices.Delete(slices.Clone(e.listeners), i, i+1)
	return e
}
