// Package item defines the contract every item tracked by the dependency
// registry fulfils.
package item

import "github.com/zjrosen/suiteloader/internal/eid"

// Kind names the type of an item, e.g. "Tag".
type Kind string

// Item is an immutable value identified by an EID.
type Item interface {
	ID() eid.EID
	Kind() Kind
	// Copy returns an independent snapshot. The registry only ever holds
	// copies so later mutation of a loader's working value cannot leak.
	Copy() Item
}

// Releasable is implemented by items that hold resources which must be freed
// when the item is destroyed.
type Releasable interface {
	Release()
}
