package presentation

import (
	"time"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/metadata"
	"github.com/zjrosen/suiteloader/internal/store"
)

// ItemDTO represents a built metadata item for presentation
type ItemDTO struct {
	Kind        string              `json:"kind"`
	ID          string              `json:"id"`
	UUID        string              `json:"uuid"`
	Label       string              `json:"label"`
	Description string              `json:"description,omitempty"`
	Source      string              `json:"source"`
	Refs        map[string][]string `json:"refs,omitempty"` // referenced ids by reference name
}

// CatalogDTO is the listing of a catalog snapshot
type CatalogDTO struct {
	Items      []ItemDTO `json:"items"`
	Unresolved []string  `json:"unresolved"`
}

// RecordDTO represents a stored item record
type RecordDTO struct {
	Kind        string              `json:"kind"`
	ID          string              `json:"id"`
	UUID        string              `json:"uuid"`
	Label       string              `json:"label"`
	Description string              `json:"description,omitempty"`
	Source      string              `json:"source"`
	Refs        map[string][]string `json:"refs,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func fromMeta(kind string, m metadata.Meta) ItemDTO {
	return ItemDTO{
		Kind:        kind,
		ID:          m.ID.String(),
		UUID:        m.ID.UUID().String(),
		Label:       m.Label,
		Description: m.Description,
		Source:      m.Source,
	}
}

func addRef(refs map[string][]string, name string, ids ...eid.EID) map[string][]string {
	var out []string
	for _, id := range ids {
		if !id.IsZero() {
			out = append(out, id.String())
		}
	}
	if len(out) == 0 {
		return refs
	}
	if refs == nil {
		refs = make(map[string][]string)
	}
	refs[name] = out
	return refs
}

// FromSnapshot converts a catalog snapshot to a DTO. Items are listed in
// build order by kind, then by id.
func FromSnapshot(s metadata.Snapshot) CatalogDTO {
	var items []ItemDTO
	for _, t := range s.Tags {
		items = append(items, fromMeta(string(t.Kind()), t.Meta))
	}
	for _, b := range s.TranslationTemplateBundles {
		d := fromMeta(string(b.Kind()), b.Meta)
		d.Refs = addRef(d.Refs, "parent", b.Parent)
		items = append(items, d)
	}
	for _, o := range s.TestObjects {
		d := fromMeta(string(o.Kind()), o.Meta)
		d.Refs = addRef(d.Refs, "tags", o.Tags...)
		items = append(items, d)
	}
	for _, ets := range s.ExecutableTestSuites {
		d := fromMeta(string(ets.Kind()), ets.Meta)
		d.Refs = addRef(d.Refs, "tags", ets.Tags...)
		d.Refs = addRef(d.Refs, "translationTemplateBundle", ets.TranslationTemplateBundle)
		d.Refs = addRef(d.Refs, "dependencies", ets.Dependencies...)
		items = append(items, d)
	}
	for _, r := range s.TestRunTemplates {
		d := fromMeta(string(r.Kind()), r.Meta)
		d.Refs = addRef(d.Refs, "executableTestSuites", r.ExecutableTestSuites...)
		d.Refs = addRef(d.Refs, "testObjects", r.TestObjects...)
		items = append(items, d)
	}
	if items == nil {
		items = []ItemDTO{}
	}
	return CatalogDTO{Items: items, Unresolved: eid.Strings(s.Unresolved)}
}

// FromRecord converts a stored record to a DTO
func FromRecord(r *store.Record) RecordDTO {
	var refs map[string][]string
	for name, ids := range r.Refs {
		refs = addRef(refs, name, ids...)
	}
	return RecordDTO{
		Kind:        string(r.Kind),
		ID:          r.ID.String(),
		UUID:        r.ID.UUID().String(),
		Label:       r.Label,
		Description: r.Description,
		Source:      r.Source,
		Refs:        refs,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// FromRecords lists stored records as a catalog. Stored listings have no
// unresolved ids.
func FromRecords(recs []*store.Record) CatalogDTO {
	items := make([]ItemDTO, 0, len(recs))
	for _, r := range recs {
		d := FromRecord(r)
		items = append(items, ItemDTO{
			Kind:        d.Kind,
			ID:          d.ID,
			UUID:        d.UUID,
			Label:       d.Label,
			Description: d.Description,
			Source:      d.Source,
			Refs:        d.Refs,
		})
	}
	return CatalogDTO{Items: items, Unresolved: []string{}}
}
