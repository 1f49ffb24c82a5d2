package runtime

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
	"github.com/go-drift/nativehost/pkg/mounting"
)

// RootComponent is the component mounted at every surface root.
const RootComponent = "RootView"

// LayoutConstraints bound the size of a surface.
type LayoutConstraints struct {
	MinWidth  float64
	MinHeight float64
	MaxWidth  float64
	MaxHeight float64
}

func (c LayoutConstraints) metrics() mounting.LayoutMetrics {
	return mounting.LayoutMetrics{
		Width:  max(c.MinWidth, c.MaxWidth),
		Height: max(c.MinHeight, c.MaxHeight),
	}
}

// Surface is one root view rendered by the instance. Its tag is the tag of
// the root node.
type Surface struct {
	tag          int64
	moduleName   string
	initialProps *dynamic.Object

	mu          sync.Mutex
	constraints LayoutConstraints
	running     bool
}

// Tag returns the root tag.
func (s *Surface) Tag() int64 { return s.tag }

// ModuleName returns the registered app name the surface runs.
func (s *Surface) ModuleName() string { return s.moduleName }

// Constraints returns the current layout constraints.
func (s *Surface) Constraints() LayoutConstraints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.constraints
}

// Running reports whether the surface was started and not stopped.
func (s *Surface) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (i *Instance) surface(tag int64) (*Surface, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	s, ok := i.surfaces[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSurface, tag)
	}
	return s, nil
}

// Surfaces returns the tags of all surfaces.
func (i *Instance) Surfaces() []int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	tags := make([]int64, 0, len(i.surfaces))
	for tag := range i.surfaces {
		tags = append(tags, tag)
	}
	return tags
}

// CreateSurface mounts an empty root for moduleName at tag.
func (i *Instance) CreateSurface(ctx context.Context, tag int64, moduleName string, initialProps *dynamic.Object) (*Surface, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	if initialProps == nil {
		initialProps = dynamic.NewObject()
	}
	s := &Surface{tag: tag, moduleName: moduleName, initialProps: initialProps}

	i.mu.Lock()
	if _, ok := i.surfaces[tag]; ok {
		i.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrSurfaceExists, tag)
	}
	i.surfaces[tag] = s
	i.mu.Unlock()

	_, err := i.onMain(ctx, mounting.Batch{
		mounting.Create(tag, RootComponent, mounting.PropsOf("surface", moduleName)),
	})
	if err != nil {
		i.mu.Lock()
		delete(i.surfaces, tag)
		i.mu.Unlock()
		return nil, err
	}
	return s, nil
}

// StartSurface lays the root out within constraints and asks the script's
// AppRegistry to run the surface's app.
func (i *Instance) StartSurface(ctx context.Context, tag int64, constraints LayoutConstraints) error {
	s, err := i.surface(tag)
	if err != nil {
		return err
	}
	i.provider.SetScheduler(i.applier)

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.constraints = constraints
	s.mu.Unlock()

	if _, err := i.onMain(ctx, mounting.Batch{mounting.UpdateLayout(tag, constraints.metrics())}); err != nil {
		return err
	}
	if i.engine.HasCallable(AppRegistryModule) {
		params := dynamic.ObjectOf("rootTag", tag, "initialProps", s.initialProps)
		i.CallFunction(AppRegistryModule, "runApplication", s.moduleName, params)
	}
	errors.Logger().Debug("surface started", zap.Int64("tag", tag), zap.String("app", s.moduleName))
	return nil
}

// UpdateSurfaceConstraints relays the root out within constraints.
func (i *Instance) UpdateSurfaceConstraints(ctx context.Context, tag int64, constraints LayoutConstraints) error {
	s, err := i.surface(tag)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.constraints = constraints
	s.mu.Unlock()
	_, err = i.onMain(ctx, mounting.Batch{mounting.UpdateLayout(tag, constraints.metrics())})
	return err
}

// StopSurface unmounts the app from a running surface, leaving the empty
// root in place.
func (i *Instance) StopSurface(ctx context.Context, tag int64) error {
	s, err := i.surface(tag)
	if err != nil {
		return err
	}
	if !s.Running() {
		return nil
	}
	return i.exec.RunSyncTask(ctx, executor.ThreadMain, func(ctx context.Context) {
		i.stopSurface(ctx, s)
	})
}

// DestroySurface stops the surface if needed and removes its root.
func (i *Instance) DestroySurface(ctx context.Context, tag int64) error {
	s, err := i.surface(tag)
	if err != nil {
		return err
	}
	i.mu.Lock()
	delete(i.surfaces, tag)
	i.mu.Unlock()
	return i.exec.RunSyncTask(ctx, executor.ThreadMain, func(ctx context.Context) {
		if s.Running() {
			i.stopSurface(ctx, s)
		}
		i.unmountSurface(ctx, s)
	})
}

// stopSurface runs on the main thread.
func (i *Instance) stopSurface(ctx context.Context, s *Surface) {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if i.engine.HasCallable(AppRegistryModule) {
		i.engine.CallFunction(AppRegistryModule, "unmountApplicationComponentAtRootTag", s.tag)
	}
	root, ok := i.applier.Registry().Get(s.tag)
	if !ok {
		return
	}
	var batch mounting.Batch
	for _, child := range root.Children() {
		batch = append(batch, mounting.Remove(s.tag, child.Tag()))
		batch = appendSubtreeDeletes(batch, child)
	}
	i.apply(ctx, batch)
}

func (i *Instance) unmountSurface(ctx context.Context, s *Surface) {
	i.apply(ctx, mounting.Batch{mounting.Delete(s.tag)})
}

func (i *Instance) apply(ctx context.Context, batch mounting.Batch) {
	if len(batch) == 0 {
		return
	}
	if _, err := i.applier.Apply(ctx, batch); err != nil {
		errors.Report(&errors.BridgeError{
			Op:   "runtime.surface",
			Kind: errors.KindMutation,
			Err:  err,
		})
	}
}

func (i *Instance) onMain(ctx context.Context, batch mounting.Batch) (*mounting.ApplyReport, error) {
	return executor.Call(ctx, i.exec, executor.ThreadMain, func(ctx context.Context) (*mounting.ApplyReport, error) {
		return i.applier.Apply(ctx, batch)
	})
}

// appendSubtreeDeletes detaches and deletes every node below and including
// inst, children first.
func appendSubtreeDeletes(batch mounting.Batch, inst mounting.ComponentInstance) mounting.Batch {
	for _, child := range inst.Children() {
		batch = append(batch, mounting.Remove(inst.Tag(), child.Tag()))
		batch = appendSubtreeDeletes(batch, child)
	}
	return append(batch, mounting.Delete(inst.Tag()))
}
