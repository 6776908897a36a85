package loader

import (
	"cmp"
	"slices"
	"strings"
)

// SortKey orders loaders within one reconciliation pass: lower priority
// first, then fewer unresolved dependencies, then by path.
type SortKey struct {
	Priority   int
	Unresolved int
	Path       string
}

// Compare returns -1, 0 or +1.
func (k SortKey) Compare(o SortKey) int {
	if c := cmp.Compare(k.Priority, o.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(k.Unresolved, o.Unresolved); c != 0 {
		return c
	}
	return strings.Compare(k.Path, o.Path)
}

// Keyed is anything that exposes a SortKey.
type Keyed interface {
	SortKey() SortKey
}

// Sort orders ls by their sort keys. Keys are read once before sorting so
// that loaders changing state cannot make the comparison inconsistent.
func Sort[L Keyed](ls []L) {
	type keyed struct {
		key SortKey
		l   L
	}
	snapshot := make([]keyed, len(ls))
	for i, l := range ls {
		snapshot[i] = keyed{key: l.SortKey(), l: l}
	}
	slices.SortStableFunc(snapshot, func(a, b keyed) int { return a.key.Compare(b.key) })
	for i := range snapshot {
		ls[i] = snapshot[i].l
	}
}
