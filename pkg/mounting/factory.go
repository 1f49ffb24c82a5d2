package mounting

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/events"
)

type constructor func(ctx instanceContext) ComponentInstance

// Built-in component names.
const (
	ComponentRootView   = "RootView"
	ComponentView       = "View"
	ComponentScrollView = "ScrollView"
	ComponentText       = "Text"
	ComponentParagraph  = "Paragraph"
	ComponentTextInput  = "TextInput"
)

var builtinConstructors = map[string]constructor{
	ComponentRootView:   newRootView,
	ComponentView:       newView,
	ComponentScrollView: newScrollView,
	ComponentText:       newText,
	ComponentParagraph:  newText,
	ComponentTextInput:  newTextInput,
}

// ComponentInstanceFactory creates the instance variant for a component
// name. The variant is chosen once, at creation.
type ComponentInstanceFactory struct {
	mu           sync.Mutex
	constructors map[string]constructor
	warned       map[string]bool
}

// NewComponentInstanceFactory creates a factory knowing the built-in components.
func NewComponentInstanceFactory() *ComponentInstanceFactory {
	f := &ComponentInstanceFactory{
		constructors: make(map[string]constructor, len(builtinConstructors)),
		warned:       make(map[string]bool),
	}
	for name, ctor := range builtinConstructors {
		f.constructors[name] = ctor
	}
	return f
}

// Alias makes name create the same variant as target.
func (f *ComponentInstanceFactory) Alias(name, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctor, ok := f.constructors[target]
	if !ok {
		return fmt.Errorf("mounting: unknown component %q", target)
	}
	f.constructors[name] = ctor
	return nil
}

// Names returns the known component names, sorted.
func (f *ComponentInstanceFactory) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.constructors))
	for name := range f.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether name has a dedicated variant.
func (f *ComponentInstanceFactory) Supports(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.constructors[name]
	return ok
}

// Create builds an instance for componentName. Unknown names produce an
// UnimplementedInstance; each unknown name is reported once.
func (f *ComponentInstanceFactory) Create(tag int64, componentName string, emitter *events.EventEmitter, registry *ComponentInstanceRegistry) ComponentInstance {
	f.mu.Lock()
	ctor, ok := f.constructors[componentName]
	warn := !ok && !f.warned[componentName]
	if warn {
		f.warned[componentName] = true
	}
	f.mu.Unlock()

	if !ok {
		if warn {
			errors.Logger().Warn("no native implementation for component",
				zap.String("component", componentName), zap.Int64("tag", tag))
		}
		ctor = newUnimplemented
	}
	return ctor(instanceContext{
		tag:           tag,
		componentName: componentName,
		emitter:       emitter,
		registry:      registry,
	})
}
