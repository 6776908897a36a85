// Package metadata defines the test metadata item kinds, the loaders that
// build them from YAML files and the Catalog that keeps them current for a
// projects directory.
package metadata

import (
	"maps"
	"slices"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
)

const (
	KindTag                       item.Kind = "Tag"
	KindTranslationTemplateBundle item.Kind = "TranslationTemplateBundle"
	KindTestObject                item.Kind = "TestObject"
	KindExecutableTestSuite       item.Kind = "ExecutableTestSuite"
	KindTestRunTemplate           item.Kind = "TestRunTemplate"
)

// Build priorities. Lower kinds are referenced by higher ones.
const (
	PriorityTag                       = 100
	PriorityTranslationTemplateBundle = 200
	PriorityTestObject                = 300
	PriorityExecutableTestSuite       = 400
	PriorityTestRunTemplate           = 500
)

// Kinds lists all kinds in build order.
var Kinds = []item.Kind{
	KindTag,
	KindTranslationTemplateBundle,
	KindTestObject,
	KindExecutableTestSuite,
	KindTestRunTemplate,
}

// Meta is shared by all kinds.
type Meta struct {
	ID          eid.EID `json:"id"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	// Source is the file the item was built from.
	Source string `json:"source"`
}

// Tag groups test suites and test objects.
type Tag struct {
	Meta
}

func (t *Tag) ID() eid.EID     { return t.Meta.ID }
func (t *Tag) Kind() item.Kind { return KindTag }
func (t *Tag) Copy() item.Item {
	c := *t
	return &c
}

// TranslationTemplateBundle holds report message templates. A bundle may
// extend a parent bundle.
type TranslationTemplateBundle struct {
	Meta
	Parent    eid.EID           `json:"parent,omitzero"`
	Language  string            `json:"language,omitempty"`
	Templates map[string]string `json:"templates,omitempty"`
}

func (b *TranslationTemplateBundle) ID() eid.EID     { return b.Meta.ID }
func (b *TranslationTemplateBundle) Kind() item.Kind { return KindTranslationTemplateBundle }
func (b *TranslationTemplateBundle) Copy() item.Item {
	c := *b
	c.Templates = maps.Clone(b.Templates)
	return &c
}

// TestObject describes a resource under test.
type TestObject struct {
	Meta
	Tags       []eid.EID         `json:"tags,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

func (o *TestObject) ID() eid.EID     { return o.Meta.ID }
func (o *TestObject) Kind() item.Kind { return KindTestObject }
func (o *TestObject) Copy() item.Item {
	c := *o
	c.Tags = slices.Clone(o.Tags)
	c.Properties = maps.Clone(o.Properties)
	return &c
}

// ExecutableTestSuite is a runnable test suite.
type ExecutableTestSuite struct {
	Meta
	Version                   string    `json:"version,omitempty"`
	Tags                      []eid.EID `json:"tags,omitempty"`
	TranslationTemplateBundle eid.EID   `json:"translationTemplateBundle,omitzero"`
	Dependencies              []eid.EID `json:"dependencies,omitempty"`
}

func (s *ExecutableTestSuite) ID() eid.EID     { return s.Meta.ID }
func (s *ExecutableTestSuite) Kind() item.Kind { return KindExecutableTestSuite }
func (s *ExecutableTestSuite) Copy() item.Item {
	c := *s
	c.Tags = slices.Clone(s.Tags)
	c.Dependencies = slices.Clone(s.Dependencies)
	return &c
}

// TestRunTemplate is a preconfigured combination of suites and test objects.
type TestRunTemplate struct {
	Meta
	ExecutableTestSuites []eid.EID `json:"executableTestSuites"`
	TestObjects          []eid.EID `json:"testObjects"`
}

func (r *TestRunTemplate) ID() eid.EID     { return r.Meta.ID }
func (r *TestRunTemplate) Kind() item.Kind { return KindTestRunTemplate }
func (r *TestRunTemplate) Copy() item.Item {
	c := *r
	c.ExecutableTestSuites = slices.Clone(r.ExecutableTestSuites)
	c.TestObjects = slices.Clone(r.TestObjects)
	return &c
}
