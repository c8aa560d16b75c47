package manager

import (
	"fmt"
	"sort"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/plugin"
)

// DetectorFactory builds one detector instance bound to an invoker. The
// manager constructs detectors per run so each gets its own metered
// invoker.
type DetectorFactory func(invoker llm.Invoker) plugin.Detector

// Registry maps detector names to factories. The zero value is unusable;
// use NewRegistry or DefaultRegistry.
type Registry struct {
	factories map[string]DetectorFactory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]DetectorFactory{}}
}

// DefaultRegistry returns a registry with every built-in detector.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("math", func(inv llm.Invoker) plugin.Detector { return plugin.NewMathDetector(inv) })
	r.Register("spelling", func(inv llm.Invoker) plugin.Detector { return plugin.NewSpellingDetector(inv) })
	r.Register("factcheck", func(inv llm.Invoker) plugin.Detector { return plugin.NewFactCheckDetector(inv) })
	r.Register("forecast", func(inv llm.Invoker) plugin.Detector { return plugin.NewForecastDetector(inv) })
	return r
}

// Register adds a factory under name, replacing any existing entry.
func (r *Registry) Register(name string, factory DetectorFactory) {
	r.factories[name] = factory
}

// Names lists registered detector names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the factory for name.
func (r *Registry) Lookup(name string) (DetectorFactory, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (registered: %v)", name, r.Names())
	}
	return factory, nil
}
