package bridge

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

// ModuleFactory creates the capability called name, or returns nil when it
// does not provide one. scheduler may be nil.
type ModuleFactory func(name string, invoker *Invoker, scheduler Scheduler) Module

// Package groups capabilities contributed by one native library.
type Package interface {
	Name() string
	ModuleFactory() ModuleFactory
}

// PackageFunc adapts a factory function to Package.
type PackageFunc struct {
	PackageName string
	Factory     ModuleFactory
}

// Name implements Package.
func (p PackageFunc) Name() string { return p.PackageName }

// ModuleFactory implements Package.
func (p PackageFunc) ModuleFactory() ModuleFactory { return p.Factory }

// ComposeFactories asks each package in order and returns the first module
// produced.
func ComposeFactories(packages ...Package) ModuleFactory {
	factories := make([]ModuleFactory, 0, len(packages))
	for _, p := range packages {
		if f := p.ModuleFactory(); f != nil {
			factories = append(factories, f)
		}
	}
	return func(name string, invoker *Invoker, scheduler Scheduler) Module {
		for _, f := range factories {
			if m := f(name, invoker, scheduler); m != nil {
				return m
			}
		}
		return nil
	}
}

// Binder installs native functions as script globals.
type Binder interface {
	BindGlobal(name string, fn func(ctx context.Context, args []any) (any, error)) error
}

// GetCapabilityBinding is the script global that resolves capabilities.
const GetCapabilityBinding = "getCapability"

// ModuleProvider resolves capabilities by name and caches them for the
// lifetime of the runtime instance.
type ModuleProvider struct {
	invoker *Invoker
	factory ModuleFactory

	mu        sync.Mutex
	scheduler Scheduler
	cache     map[string]Module
}

// NewModuleProvider creates a provider backed by factory.
func NewModuleProvider(invoker *Invoker, factory ModuleFactory) *ModuleProvider {
	return &ModuleProvider{
		invoker: invoker,
		factory: factory,
		cache:   make(map[string]Module),
	}
}

// SetScheduler binds the scheduler passed to subsequently created modules.
func (p *ModuleProvider) SetScheduler(s Scheduler) {
	p.mu.Lock()
	p.scheduler = s
	p.mu.Unlock()
}

// Scheduler returns the bound scheduler, or nil.
func (p *ModuleProvider) Scheduler() Scheduler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scheduler
}

// Get returns the capability called name, creating it on first use.
func (p *ModuleProvider) Get(name string) (Module, error) {
	p.mu.Lock()
	if m, ok := p.cache[name]; ok {
		p.mu.Unlock()
		return m, nil
	}
	scheduler := p.scheduler
	p.mu.Unlock()

	var m Module
	if p.factory != nil {
		m = p.factory(name, p.invoker, scheduler)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Another caller may have won the race; keep the first instance.
	if existing, ok := p.cache[name]; ok {
		return existing, nil
	}
	p.cache[name] = m
	errors.Logger().Debug("capability created", zap.String("module", name))
	return m, nil
}

// Cached returns the names of capabilities created so far.
func (p *ModuleProvider) Cached() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.cache))
	for name := range p.cache {
		names = append(names, name)
	}
	return names
}

// Clear drops every cached capability.
func (p *ModuleProvider) Clear() {
	p.mu.Lock()
	p.cache = make(map[string]Module)
	p.mu.Unlock()
}

// InstallBindings installs the getCapability global on the script thread.
// Resolving an unknown capability yields nil rather than an error.
func (p *ModuleProvider) InstallBindings(ctx context.Context, binder Binder) error {
	_, err := executor.Call(ctx, p.invoker.Runner(), executor.ThreadScript, func(context.Context) (struct{}, error) {
		return struct{}{}, binder.BindGlobal(GetCapabilityBinding, p.resolveBinding)
	})
	return err
}

func (p *ModuleProvider) resolveBinding(_ context.Context, args []any) (any, error) {
	if len(args) != 1 {
		return nil, &errors.MarshalError{Context: GetCapabilityBinding, Detail: "expected exactly one argument"}
	}
	name, ok := args[0].(string)
	if !ok {
		return nil, &errors.MarshalError{Context: GetCapabilityBinding, Detail: "expected a capability name", Got: args[0]}
	}
	m, err := p.Get(name)
	if err != nil {
		errors.Logger().Debug("capability not found", zap.String("module", name))
		return nil, nil
	}
	return m, nil
}
