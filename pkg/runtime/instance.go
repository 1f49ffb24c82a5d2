// Package runtime assembles a runtime instance: the task executor, the
// script engine, the capability provider, the mounting engine and the
// platform channels, plus the surfaces rendered into it.
package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/events"
	"github.com/go-drift/nativehost/pkg/executor"
	"github.com/go-drift/nativehost/pkg/mounting"
	"github.com/go-drift/nativehost/pkg/platform"
	"github.com/go-drift/nativehost/pkg/script"
	"github.com/go-drift/nativehost/pkg/ticker"
)

// Callable modules the instance calls into when a script registered them.
const (
	EventEmitterModule = "RCTEventEmitter"
	AppRegistryModule  = "AppRegistry"
	AppStateModule     = "AppState"
)

// ApplyMutationsBinding is the script global that submits a mutation batch:
// applyMutations(surfaceTag, [{create: {...}}, {insert: {...}}, ...]).
const ApplyMutationsBinding = "applyMutations"

var (
	// ErrDestroyed is returned by operations on a destroyed instance.
	ErrDestroyed = stderrors.New("runtime: instance destroyed")

	// ErrUnknownSurface is returned for a surface tag that was never created.
	ErrUnknownSurface = stderrors.New("runtime: unknown surface")

	// ErrSurfaceExists is returned when creating a surface twice.
	ErrSurfaceExists = stderrors.New("runtime: surface already exists")
)

// Env is what an instance hands to package constructors.
type Env struct {
	InstanceID string
	Executor   *executor.TaskExecutor
	Ticker     *ticker.Source
	Platform   *platform.Registry
	Lifecycle  *platform.LifecycleService

	// Scheduler returns the scheduler currently bound to the capability
	// provider, or nil before the first surface starts.
	Scheduler func() bridge.Scheduler
}

// Options configures a new instance.
type Options struct {
	// TickInterval is the UI tick interval; zero uses ticker.DefaultInterval.
	TickInterval time.Duration

	// EnableDebugger exposes __DEV__ = true to scripts.
	EnableDebugger bool

	// Packages builds the capability packages, tried in order.
	Packages func(env Env) []bridge.Package

	// NativeBridge connects the platform channels. Optional.
	NativeBridge platform.NativeBridge
}

// Instance is one runtime instance.
type Instance struct {
	id string

	exec      *executor.TaskExecutor
	invoker   *bridge.Invoker
	provider  *bridge.ModuleProvider
	engine    *script.Engine
	events    *events.Registry
	applier   *mounting.MutationApplier
	platform  *platform.Registry
	lifecycle *platform.LifecycleService
	ticks     *ticker.Source
	packages  []bridge.Package

	mu        sync.Mutex
	surfaces  map[int64]*Surface
	destroyed bool
}

// NewInstance creates and starts an instance.
func NewInstance(id string, opts Options) (*Instance, error) {
	exec := executor.New()
	inst := &Instance{
		id:       id,
		exec:     exec,
		invoker:  bridge.NewInvoker(exec),
		engine:   script.NewEngine(exec),
		events:   events.NewRegistry(exec),
		platform: platform.NewRegistry(),
		ticks:    ticker.NewSource(opts.TickInterval, exec.Dispatcher(executor.ThreadMain)),
		surfaces: make(map[int64]*Surface),
	}
	inst.applier = mounting.NewMutationApplier(
		mounting.NewComponentInstanceRegistry(),
		mounting.NewComponentInstanceFactory(),
		inst.events,
	)
	inst.platform.RegisterDispatch(exec.Dispatcher(executor.ThreadMain))
	if opts.NativeBridge != nil {
		inst.platform.SetNativeBridge(opts.NativeBridge)
	}
	inst.lifecycle = platform.NewLifecycle(inst.platform)
	inst.lifecycle.AddHandler(inst.forwardAppState)
	inst.platform.MethodChannel(InputChannel).SetHandler(inst.handleInput)

	if opts.Packages != nil {
		inst.packages = opts.Packages(Env{
			InstanceID: id,
			Executor:   exec,
			Ticker:     inst.ticks,
			Platform:   inst.platform,
			Lifecycle:  inst.lifecycle,
			Scheduler:  inst.scheduler,
		})
	}
	inst.provider = bridge.NewModuleProvider(inst.invoker, bridge.ComposeFactories(inst.packages...))
	inst.events.SetSink(inst.deliverEvent)
	inst.engine.SetGlobal("__DEV__", opts.EnableDebugger)

	err := inst.engine.BindGlobal(ApplyMutationsBinding, inst.applyFromScript)
	if err == nil {
		err = inst.provider.InstallBindings(context.Background(), inst.engine)
	}
	if err != nil {
		inst.shutdown()
		return nil, fmt.Errorf("runtime: install bindings: %w", err)
	}
	inst.ticks.Start()

	errors.Logger().Info("runtime instance created",
		zap.String("instance", id), zap.Int("packages", len(inst.packages)))
	return inst, nil
}

// ID returns the instance id.
func (i *Instance) ID() string { return i.id }

// Executor returns the instance's task executor.
func (i *Instance) Executor() *executor.TaskExecutor { return i.exec }

// Engine returns the script engine.
func (i *Instance) Engine() *script.Engine { return i.engine }

// Provider returns the capability provider.
func (i *Instance) Provider() *bridge.ModuleProvider { return i.provider }

// Applier returns the mutation applier.
func (i *Instance) Applier() *mounting.MutationApplier { return i.applier }

// Events returns the event emitter registry.
func (i *Instance) Events() *events.Registry { return i.events }

// Platform returns the platform channel registry.
func (i *Instance) Platform() *platform.Registry { return i.platform }

// Lifecycle returns the app lifecycle service.
func (i *Instance) Lifecycle() *platform.LifecycleService { return i.lifecycle }

// Ticker returns the UI tick source.
func (i *Instance) Ticker() *ticker.Source { return i.ticks }

// Packages returns the capability packages in lookup order.
func (i *Instance) Packages() []bridge.Package { return i.packages }

func (i *Instance) scheduler() bridge.Scheduler {
	if i.provider == nil {
		return nil
	}
	return i.provider.Scheduler()
}

func (i *Instance) alive() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.destroyed {
		return ErrDestroyed
	}
	return nil
}

// Eval runs source on the script thread.
func (i *Instance) Eval(ctx context.Context, source string) (dynamic.Value, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	return i.engine.Eval(ctx, source)
}

// GetModule returns the capability proxy for name.
func (i *Instance) GetModule(name string) (bridge.Module, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	return i.provider.Get(name)
}

// ApplyMutations applies batch to the tree of surfaceTag on the main
// thread and waits for it to finish.
func (i *Instance) ApplyMutations(ctx context.Context, surfaceTag int64, batch mounting.Batch) (*mounting.ApplyReport, error) {
	if err := i.alive(); err != nil {
		return nil, err
	}
	if _, err := i.surface(surfaceTag); err != nil {
		return nil, err
	}
	return i.onMain(ctx, batch)
}

// EmitComponentEvent sends an event from the node tagged tag to script.
// Events for torn-down nodes are dropped.
func (i *Instance) EmitComponentEvent(tag int64, name string, payload dynamic.Value) bool {
	return i.events.Emit(tag, name, payload)
}

// SynchronouslyUpdateViewOnUIThread merges rawProps into tag's props and
// applies them immediately on the main thread.
func (i *Instance) SynchronouslyUpdateViewOnUIThread(ctx context.Context, tag int64, rawProps *dynamic.Object) error {
	if err := i.alive(); err != nil {
		return err
	}
	_, err := executor.Call(ctx, i.exec, executor.ThreadMain, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, i.applier.SynchronouslyUpdateView(ctx, tag, rawProps)
	})
	return err
}

// CallFunction calls a script-registered module method on the script
// thread without waiting.
func (i *Instance) CallFunction(module, method string, args ...dynamic.Value) {
	if i.alive() != nil {
		return
	}
	i.engine.CallFunction(module, method, args...)
}

// applyFromScript decodes a batch written as a list of single-key maps, in
// the same shape as mounting.DecodeBatchYAML, and applies it.
func (i *Instance) applyFromScript(ctx context.Context, args []any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expected (surfaceTag, batch), got %d arguments", len(args))
	}
	tag, ok := dynamic.ToInt64(args[0])
	if !ok {
		return nil, &errors.MarshalError{Context: ApplyMutationsBinding, Detail: "surface tag must be a number", Got: args[0]}
	}
	data, err := dynamic.DefaultCodec.Encode(args[1])
	if err != nil {
		return nil, err
	}
	batch, err := mounting.DecodeBatchYAML(data)
	if err != nil {
		return nil, err
	}
	report, err := i.ApplyMutations(ctx, tag, batch)
	if err != nil {
		return nil, err
	}
	return dynamic.ObjectOf("applied", report.Applied, "failed", len(report.Failures)), nil
}

func (i *Instance) deliverEvent(ctx context.Context, tag int64, name string, payload dynamic.Value) {
	if !i.engine.HasCallable(EventEmitterModule) {
		errors.Logger().Debug("event dropped: no receiver",
			zap.Int64("tag", tag), zap.String("event", name))
		return
	}
	if _, err := i.engine.Invoke(ctx, EventEmitterModule, "receiveEvent", tag, name, payload); err != nil {
		errors.Report(&errors.BridgeError{
			Op:     "runtime.deliverEvent",
			Kind:   errors.KindExecution,
			Module: EventEmitterModule,
			Method: "receiveEvent",
			Tag:    tag,
			Err:    err,
		})
	}
}

func (i *Instance) forwardAppState(state platform.LifecycleState) {
	if !i.engine.HasCallable(AppStateModule) {
		return
	}
	i.CallFunction(AppStateModule, "didChangeState", string(state))
}

// Destroy tears the instance down: the UI tick is unsubscribed, running
// surfaces are stopped on the main thread, outstanding callbacks are
// invalidated and the executor is stopped. Destroy is idempotent.
func (i *Instance) Destroy(ctx context.Context) error {
	i.mu.Lock()
	if i.destroyed {
		i.mu.Unlock()
		return nil
	}
	i.destroyed = true
	surfaces := make([]*Surface, 0, len(i.surfaces))
	for _, s := range i.surfaces {
		surfaces = append(surfaces, s)
	}
	i.surfaces = make(map[int64]*Surface)
	i.mu.Unlock()

	i.ticks.Stop()

	err := i.exec.RunSyncTask(ctx, executor.ThreadMain, func(ctx context.Context) {
		for _, s := range surfaces {
			if s.Running() {
				i.stopSurface(ctx, s)
			}
			i.unmountSurface(ctx, s)
		}
	})
	i.shutdown()

	errors.Logger().Info("runtime instance destroyed",
		zap.String("instance", i.id), zap.Int("surfaces", len(surfaces)))
	return err
}

func (i *Instance) shutdown() {
	i.invoker.Invalidate()
	i.lifecycle.Close()
	i.provider.Clear()
	i.exec.Stop()
	i.events.Clear()
	for _, p := range i.packages {
		c, ok := p.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			errors.Logger().Warn("package close failed",
				zap.String("package", p.Name()), zap.Error(err))
		}
	}
}
