package metadata

import (
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/loader"
	"github.com/zjrosen/suiteloader/internal/pubsub"
)

// Factories holds one loader factory per kind.
type Factories struct {
	Tags                       *loader.FileFactory[*Tag]
	TranslationTemplateBundles *loader.FileFactory[*TranslationTemplateBundle]
	TestObjects                *loader.FileFactory[*TestObject]
	ExecutableTestSuites       *loader.FileFactory[*ExecutableTestSuite]
	TestRunTemplates           *loader.FileFactory[*TestRunTemplate]
}

// NewFactories creates the factories of all kinds. st and broker may be nil.
func NewFactories(reg loader.Registry, st Store, broker *pubsub.Broker[loader.Change]) *Factories {
	return &Factories{
		Tags:                       newFactory(KindTag, PriorityTag, newTag, reg, st, broker),
		TranslationTemplateBundles: newFactory(KindTranslationTemplateBundle, PriorityTranslationTemplateBundle, newTranslationTemplateBundle, reg, st, broker),
		TestObjects:                newFactory(KindTestObject, PriorityTestObject, newTestObject, reg, st, broker),
		ExecutableTestSuites:       newFactory(KindExecutableTestSuite, PriorityExecutableTestSuite, newExecutableTestSuite, reg, st, broker),
		TestRunTemplates:           newFactory(KindTestRunTemplate, PriorityTestRunTemplate, newTestRunTemplate, reg, st, broker),
	}
}

func newFactory[T item.Item](
	kind item.Kind,
	priority int,
	newT func(Meta, *document) T,
	reg loader.Registry,
	st Store,
	broker *pubsub.Broker[loader.Change],
) *loader.FileFactory[T] {
	return loader.NewFileFactory(loader.FileFactoryConfig[T]{
		Kind:     kind,
		Priority: priority,
		Registry: reg,
		Broker:   broker,
		NewHooks: func(path string) (loader.Hooks[T], error) {
			return &fileHooks[T]{path: path, kind: kind, store: st, newT: newT}, nil
		},
	})
}

// All returns the factories in build order.
func (f *Factories) All() []loader.Factory {
	return []loader.Factory{
		f.Tags,
		f.TranslationTemplateBundles,
		f.TestObjects,
		f.ExecutableTestSuites,
		f.TestRunTemplates,
	}
}

// Counts returns the number of built items per kind.
func (f *Factories) Counts() map[item.Kind]int {
	return map[item.Kind]int{
		KindTag:                       f.Tags.Len(),
		KindTranslationTemplateBundle: f.TranslationTemplateBundles.Len(),
		KindTestObject:                f.TestObjects.Len(),
		KindExecutableTestSuite:       f.ExecutableTestSuites.Len(),
		KindTestRunTemplate:           f.TestRunTemplates.Len(),
	}
}
