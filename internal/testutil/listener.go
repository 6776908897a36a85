package testutil

import (
	"sync"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
)

// Deregistration records one DependencyDeregistered call.
type Deregistration struct {
	Kind item.Kind
	ID   eid.EID
}

// RecordingListener records every dependency notification it receives.
type RecordingListener struct {
	mu           sync.Mutex
	Resolved     []item.Item
	Updated      []item.Item
	Deregistered []Deregistration

	// OnResolved, when set, runs after a resolution has been recorded.
	OnResolved func(it item.Item)
}

func (l *RecordingListener) DependencyResolved(it item.Item) {
	l.mu.Lock()
	l.Resolved = append(l.Resolved, it)
	hook := l.OnResolved
	l.mu.Unlock()
	if hook != nil {
		hook(it)
	}
}

func (l *RecordingListener) DependencyUpdated(it item.Item) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Updated = append(l.Updated, it)
}

func (l *RecordingListener) DependencyDeregistered(kind item.Kind, id eid.EID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Deregistered = append(l.Deregistered, Deregistration{Kind: kind, ID: id})
}

// Counts returns the number of resolved, updated and deregistered calls.
func (l *RecordingListener) Counts() (resolved, updated, deregistered int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Resolved), len(l.Updated), len(l.Deregistered)
}

// Reset clears all recorded calls.
func (l *RecordingListener) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Resolved, l.Updated, l.Deregistered = nil, nil, nil
}
