package store

import (
	"encoding/json"
	"time"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
)

// Record is the persisted form of a built item.
type Record struct {
	ID          eid.EID
	Kind        item.Kind
	Source      string
	Label       string
	Description string
	// Refs holds the ids an item references, keyed by reference name.
	Refs      map[string][]eid.EID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	c := *r
	if r.Refs != nil {
		c.Refs = make(map[string][]eid.EID, len(r.Refs))
		for k, v := range r.Refs {
			c.Refs[k] = append([]eid.EID(nil), v...)
		}
	}
	return &c
}

// itemModel is the database row of the items table. Times are Unix
// milliseconds, refs are JSON encoded.
type itemModel struct {
	ID          string
	Kind        string
	Source      string
	Label       string
	Description string
	Refs        *string // nullable
	CreatedAt   int64
	UpdatedAt   int64
}

func toItemModel(r *Record) (*itemModel, error) {
	m := &itemModel{
		ID:          r.ID.String(),
		Kind:        string(r.Kind),
		Source:      r.Source,
		Label:       r.Label,
		Description: r.Description,
		CreatedAt:   r.CreatedAt.UnixMilli(),
		UpdatedAt:   r.UpdatedAt.UnixMilli(),
	}
	if len(r.Refs) > 0 {
		refs := make(map[string][]string, len(r.Refs))
		for k, ids := range r.Refs {
			refs[k] = eid.Strings(ids)
		}
		b, err := json.Marshal(refs)
		if err != nil {
			return nil, err
		}
		s := string(b)
		m.Refs = &s
	}
	return m, nil
}

func (m *itemModel) toRecord() (*Record, error) {
	id, err := eid.New(m.ID)
	if err != nil {
		return nil, err
	}
	r := &Record{
		ID:          id,
		Kind:        item.Kind(m.Kind),
		Source:      m.Source,
		Label:       m.Label,
		Description: m.Description,
		CreatedAt:   time.UnixMilli(m.CreatedAt),
		UpdatedAt:   time.UnixMilli(m.UpdatedAt),
	}
	if m.Refs != nil {
		var refs map[string][]string
		if err := json.Unmarshal([]byte(*m.Refs), &refs); err != nil {
			return nil, err
		}
		r.Refs = make(map[string][]eid.EID, len(refs))
		for k, v := range refs {
			r.Refs[k] = eid.Parse(v...)
		}
	}
	return r, nil
}
