// Package testutil provides fixtures shared by package tests: a minimal
// item implementation, a recording dependency listener and a builder for
// metadata project directories.
package testutil

import (
	"sync"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
)

// KindDto is the kind of Dto items.
const KindDto item.Kind = "Dto"

// Dto is a mutable test item. Copy produces an independent value.
type Dto struct {
	id      eid.EID
	Name    string
	Version int
}

// NewDto creates a Dto whose id and name are id.
func NewDto(id string) *Dto {
	return &Dto{id: eid.MustNew(id), Name: id}
}

func (d *Dto) ID() eid.EID     { return d.id }
func (d *Dto) Kind() item.Kind { return KindDto }

func (d *Dto) Copy() item.Item {
	c := *d
	return &c
}

// ReleasableDto counts Release calls.
type ReleasableDto struct {
	Dto
	mu       sync.Mutex
	released int
}

// NewReleasableDto creates a ReleasableDto.
func NewReleasableDto(id string) *ReleasableDto {
	return &ReleasableDto{Dto: Dto{id: eid.MustNew(id), Name: id}}
}

func (d *ReleasableDto) Copy() item.Item {
	return &ReleasableDto{Dto: d.Dto}
}

func (d *ReleasableDto) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released++
}

// Released returns how often Release was called.
func (d *ReleasableDto) Released() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released
}
