package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/loader"
)

// document is the YAML form of every kind. Fields that do not apply to a
// kind are rejected by validate.
type document struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`

	Parent    string            `yaml:"parent"`
	Language  string            `yaml:"language"`
	Templates map[string]string `yaml:"templates"`

	Tags       []string          `yaml:"tags"`
	Properties map[string]string `yaml:"properties"`

	Version                   string   `yaml:"version"`
	TranslationTemplateBundle string   `yaml:"translationTemplateBundle"`
	Dependencies              []string `yaml:"dependencies"`

	ExecutableTestSuites []string `yaml:"executableTestSuites"`
	TestObjects          []string `yaml:"testObjects"`
}

// ref is one named reference list of a document and the kind it must point to.
type ref struct {
	name string
	kind item.Kind
	ids  []eid.EID
	// check resolves one id as the referenced item type.
	check func(deps loader.Dependencies, id eid.EID) error
}

func refTo[D item.Item](name string, kind item.Kind, ids []eid.EID) ref {
	return ref{
		name: name,
		kind: kind,
		ids:  ids,
		check: func(deps loader.Dependencies, id eid.EID) error {
			_, err := loader.DependencyAs[D](deps, id)
			return err
		},
	}
}

func readDocument(path string) (*document, error) {
	b, err := os.ReadFile(path) // #nosec G304 -- path comes from the indexed projects directory
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return parseDocument(b)
}

func parseDocument(b []byte) (*document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return &doc, nil
}

func (d *document) meta(source string) (Meta, error) {
	id, err := eid.New(d.ID)
	if err != nil {
		return Meta{}, fmt.Errorf("missing id")
	}
	label := d.Label
	if label == "" {
		label = id.String()
	}
	return Meta{ID: id, Label: label, Description: d.Description, Source: source}, nil
}

// validate rejects fields that do not belong to kind.
func (d *document) validate(kind item.Kind) error {
	var foreign []string
	check := func(set bool, field string) {
		if set {
			foreign = append(foreign, field)
		}
	}
	if kind != KindTranslationTemplateBundle {
		check(d.Parent != "", "parent")
		check(d.Language != "", "language")
		check(len(d.Templates) > 0, "templates")
	}
	if kind != KindTestObject && kind != KindExecutableTestSuite {
		check(len(d.Tags) > 0, "tags")
	}
	if kind != KindTestObject {
		check(len(d.Properties) > 0, "properties")
	}
	if kind != KindExecutableTestSuite {
		check(d.Version != "", "version")
		check(d.TranslationTemplateBundle != "", "translationTemplateBundle")
		check(len(d.Dependencies) > 0, "dependencies")
	}
	if kind != KindTestRunTemplate {
		check(len(d.ExecutableTestSuites) > 0, "executableTestSuites")
		check(len(d.TestObjects) > 0, "testObjects")
	}
	if len(foreign) > 0 {
		return fmt.Errorf("fields %v are not allowed for %s", foreign, kind)
	}
	return nil
}

// refs returns the references of a document of kind.
func (d *document) refs(kind item.Kind) []ref {
	switch kind {
	case KindTranslationTemplateBundle:
		return []ref{refTo[*TranslationTemplateBundle]("parent", KindTranslationTemplateBundle, eid.Parse(d.Parent))}
	case KindTestObject:
		return []ref{refTo[*Tag]("tags", KindTag, eid.Parse(d.Tags...))}
	case KindExecutableTestSuite:
		return []ref{
			refTo[*Tag]("tags", KindTag, eid.Parse(d.Tags...)),
			refTo[*TranslationTemplateBundle]("translationTemplateBundle", KindTranslationTemplateBundle, eid.Parse(d.TranslationTemplateBundle)),
			refTo[*ExecutableTestSuite]("dependencies", KindExecutableTestSuite, eid.Parse(d.Dependencies...)),
		}
	case KindTestRunTemplate:
		return []ref{
			refTo[*ExecutableTestSuite]("executableTestSuites", KindExecutableTestSuite, eid.Parse(d.ExecutableTestSuites...)),
			refTo[*TestObject]("testObjects", KindTestObject, eid.Parse(d.TestObjects...)),
		}
	default:
		return nil
	}
}
