package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/log"
	"github.com/zjrosen/suiteloader/internal/store"
)

// Store persists built items. *store.Items implements it.
type Store interface {
	Save(ctx context.Context, rec *store.Record) error
	Delete(ctx context.Context, id eid.EID, source string) error
}

var _ Store = (*store.Items)(nil)

// fileHooks builds one item of kind from one YAML file.
type fileHooks[T item.Item] struct {
	path  string
	kind  item.Kind
	store Store
	newT  func(meta Meta, doc *document) T

	doc  *document
	refs []ref
}

var _ loader.Hooks[*Tag] = (*fileHooks[*Tag])(nil)

func (h *fileHooks[T]) Prepare(deps loader.Dependencies) error {
	h.doc, h.refs = nil, nil

	doc, err := readDocument(h.path)
	if err != nil {
		return err
	}
	if err := doc.validate(h.kind); err != nil {
		return err
	}
	if _, err := doc.meta(h.path); err != nil {
		return err
	}

	h.doc = doc
	h.refs = doc.refs(h.kind)
	for _, r := range h.refs {
		deps.DependsOn(r.ids...)
	}
	return nil
}

func (h *fileHooks[T]) Build(deps loader.Dependencies) (T, error) {
	var zero T
	if h.doc == nil {
		return zero, errors.New("file not parsed")
	}
	for _, r := range h.refs {
		for _, id := range r.ids {
			if err := r.check(deps, id); err != nil {
				return zero, fmt.Errorf("%s '%s' must be a %s: %w", r.name, id, r.kind, err)
			}
		}
	}

	meta, err := h.doc.meta(h.path)
	if err != nil {
		return zero, err
	}
	built := h.newT(meta, h.doc)

	if h.store != nil {
		if err := h.store.Save(context.Background(), h.record(meta)); err != nil {
			return zero, err
		}
	}
	return built, nil
}

func (h *fileHooks[T]) Release(built T) {
	if h.store == nil {
		return
	}
	if err := h.store.Delete(context.Background(), built.ID(), h.path); err != nil {
		log.ErrorErr(log.CatCatalog, "Deleting stored item failed", err, "id", built.ID(), "file", h.path)
	}
}

func (h *fileHooks[T]) record(meta Meta) *store.Record {
	rec := &store.Record{
		ID:          meta.ID,
		Kind:        h.kind,
		Source:      h.path,
		Label:       meta.Label,
		Description: meta.Description,
	}
	for _, r := range h.refs {
		if len(r.ids) == 0 {
			continue
		}
		if rec.Refs == nil {
			rec.Refs = make(map[string][]eid.EID)
		}
		rec.Refs[r.name] = r.ids
	}
	return rec
}

func newTag(meta Meta, _ *document) *Tag {
	return &Tag{Meta: meta}
}

func newTranslationTemplateBundle(meta Meta, doc *document) *TranslationTemplateBundle {
	b := &TranslationTemplateBundle{Meta: meta, Language: doc.Language, Templates: doc.Templates}
	if ids := eid.Parse(doc.Parent); len(ids) > 0 {
		b.Parent = ids[0]
	}
	return b
}

func newTestObject(meta Meta, doc *document) *TestObject {
	return &TestObject{Meta: meta, Tags: eid.Parse(doc.Tags...), Properties: doc.Properties}
}

func newExecutableTestSuite(meta Meta, doc *document) *ExecutableTestSuite {
	s := &ExecutableTestSuite{
		Meta:         meta,
		Version:      doc.Version,
		Tags:         eid.Parse(doc.Tags...),
		Dependencies: eid.Parse(doc.Dependencies...),
	}
	if ids := eid.Parse(doc.TranslationTemplateBundle); len(ids) > 0 {
		s.TranslationTemplateBundle = ids[0]
	}
	return s
}

func newTestRunTemplate(meta Meta, doc *document) *TestRunTemplate {
	return &TestRunTemplate{
		Meta:                 meta,
		ExecutableTestSuites: eid.Parse(doc.ExecutableTestSuites...),
		TestObjects:          eid.Parse(doc.TestObjects...),
	}
}
