package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/mounting"
)

type schedulerLog struct {
	mu   sync.Mutex
	seen map[string]bridge.Scheduler
}

func (p *schedulerLog) record(name string, s bridge.Scheduler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[name] = s
}

func (p *schedulerLog) get(name string) bridge.Scheduler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seen[name]
}

func newTestInstance(t *testing.T) (*Instance, *schedulerLog) {
	t.Helper()
	seen := &schedulerLog{seen: make(map[string]bridge.Scheduler)}
	inst, err := NewInstance("test", Options{
		TickInterval: time.Millisecond,
		Packages: func(env Env) []bridge.Package {
			return []bridge.Package{bridge.PackageFunc{
				PackageName: "test",
				Factory: func(name string, invoker *bridge.Invoker, scheduler bridge.Scheduler) bridge.Module {
					seen.record(name, scheduler)
					return bridge.NewModule(name, invoker, bridge.Method{
						Name:       "echo",
						Convention: bridge.ConventionSync,
						Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
							return args.Value(0), nil
						},
					})
				},
			}}
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Destroy(context.Background()) })
	return inst, seen
}

// recorder installs a script global that forwards its arguments to a channel.
func recorder(t *testing.T, inst *Instance, name string) <-chan []any {
	t.Helper()
	ch := make(chan []any, 16)
	require.NoError(t, inst.Engine().BindGlobal(name, func(_ context.Context, args []any) (any, error) {
		ch <- args
		return nil, nil
	}))
	return ch
}

func receive(t *testing.T, ch <-chan []any) []any {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for script call")
		return nil
	}
}

func TestGetModule(t *testing.T) {
	inst, _ := newTestInstance(t)

	m, err := inst.GetModule("Echo")
	require.NoError(t, err)
	again, err := inst.GetModule("Echo")
	require.NoError(t, err)
	assert.Same(t, m, again)

	out, err := m.Call(context.Background(), "echo", "ping")
	require.NoError(t, err)
	assert.Equal(t, "ping", out)
}

func TestSurfaceLifecycle(t *testing.T) {
	inst, _ := newTestInstance(t)
	ctx := context.Background()
	runs := recorder(t, inst, "recordRun")
	_, err := inst.Eval(ctx, `
registerCallableModule("AppRegistry", {
	"runApplication": func(app, params) { recordRun("run", app, params["rootTag"]) },
	"unmountApplicationComponentAtRootTag": func(tag) { recordRun("unmount", tag) },
})
`)
	require.NoError(t, err)

	surface, err := inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)
	assert.False(t, surface.Running())
	_, err = inst.CreateSurface(ctx, 1, "Demo", nil)
	assert.ErrorIs(t, err, ErrSurfaceExists)

	require.NoError(t, inst.StartSurface(ctx, 1, LayoutConstraints{MaxWidth: 320, MaxHeight: 480}))
	assert.True(t, surface.Running())
	assert.Equal(t, []any{"run", "Demo", int64(1)}, receive(t, runs))

	root, ok := inst.Applier().Registry().Get(1)
	require.True(t, ok)
	assert.Equal(t, 320.0, root.LayoutMetrics().Width)

	require.NoError(t, inst.UpdateSurfaceConstraints(ctx, 1, LayoutConstraints{MaxWidth: 480, MaxHeight: 320}))
	assert.Equal(t, 480.0, root.LayoutMetrics().Width)

	report, err := inst.ApplyMutations(ctx, 1, mounting.Batch{
		mounting.Create(2, "View", mounting.PropsOf()),
		mounting.Create(3, "Text", mounting.PropsOf("text", "hi")),
		mounting.Insert(1, 2, 0),
		mounting.Insert(2, 3, 0),
	})
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Len(t, root.Children(), 1)

	_, err = inst.ApplyMutations(ctx, 99, mounting.Batch{})
	assert.ErrorIs(t, err, ErrUnknownSurface)

	require.NoError(t, inst.StopSurface(ctx, 1))
	assert.False(t, surface.Running())
	assert.Equal(t, []any{"unmount", int64(1)}, receive(t, runs))
	assert.Empty(t, root.Children())
	_, live := inst.Applier().Registry().Get(3)
	assert.False(t, live)
	_, live = inst.Applier().Registry().Get(1)
	assert.True(t, live, "stop keeps the root")

	require.NoError(t, inst.DestroySurface(ctx, 1))
	_, live = inst.Applier().Registry().Get(1)
	assert.False(t, live)
	assert.Empty(t, inst.Surfaces())
}

func TestSchedulerBoundOnStart(t *testing.T) {
	inst, seen := newTestInstance(t)
	ctx := context.Background()

	_, err := inst.GetModule("Early")
	require.NoError(t, err)
	assert.Nil(t, seen.get("Early"))

	_, err = inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, inst.StartSurface(ctx, 1, LayoutConstraints{}))

	_, err = inst.GetModule("Late")
	require.NoError(t, err)
	assert.Equal(t, bridge.Scheduler(inst.Applier()), seen.get("Late"))
}

func TestEventsReachScript(t *testing.T) {
	inst, _ := newTestInstance(t)
	ctx := context.Background()
	events := recorder(t, inst, "recordEvent")
	_, err := inst.Eval(ctx, `
registerCallableModule("RCTEventEmitter", {
	"receiveEvent": func(tag, name, payload) { recordEvent(tag, name, payload["x"]) },
})
`)
	require.NoError(t, err)

	_, err = inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)
	_, err = inst.ApplyMutations(ctx, 1, mounting.Batch{
		mounting.Create(2, "View", mounting.PropsOf()),
		mounting.Insert(1, 2, 0),
	})
	require.NoError(t, err)

	assert.True(t, inst.EmitComponentEvent(2, "onPress", dynamic.ObjectOf("x", 1)))
	assert.True(t, inst.EmitComponentEvent(2, "onPress", dynamic.ObjectOf("x", 2)))
	assert.Equal(t, []any{int64(2), "onPress", int64(1)}, receive(t, events))
	assert.Equal(t, []any{int64(2), "onPress", int64(2)}, receive(t, events))

	assert.False(t, inst.EmitComponentEvent(42, "onPress", nil))
}

func TestSynchronouslyUpdateView(t *testing.T) {
	inst, _ := newTestInstance(t)
	ctx := context.Background()
	_, err := inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)
	_, err = inst.ApplyMutations(ctx, 1, mounting.Batch{
		mounting.Create(2, "View", mounting.PropsOf("opacity", 1.0, "nativeID", "box")),
		mounting.Insert(1, 2, 0),
	})
	require.NoError(t, err)

	require.NoError(t, inst.SynchronouslyUpdateViewOnUIThread(ctx, 2, dynamic.ObjectOf("opacity", 0.5)))
	view, ok := inst.Applier().Registry().Get(2)
	require.True(t, ok)
	assert.Equal(t, 0.5, view.Props().Float("opacity", 0))
	assert.Equal(t, "box", view.Props().String("nativeID", ""))

	assert.ErrorIs(t, inst.SynchronouslyUpdateViewOnUIThread(ctx, 7, dynamic.NewObject()), mounting.ErrUnknownTag)
}

type noopFunction struct{}

func (noopFunction) Call(context.Context, ...dynamic.Value) (dynamic.Value, error) { return nil, nil }

func TestDestroy(t *testing.T) {
	inst, _ := newTestInstance(t)
	ctx := context.Background()

	surface, err := inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)
	require.NoError(t, inst.StartSurface(ctx, 1, LayoutConstraints{}))
	handle := inst.invoker.Callbacks().Wrap(noopFunction{})
	require.True(t, inst.Ticker().Running())

	require.NoError(t, inst.Destroy(ctx))
	assert.False(t, inst.Ticker().Running())
	assert.False(t, surface.Running())
	assert.False(t, handle.Alive())
	assert.True(t, inst.Executor().Stopped())
	_, live := inst.Applier().Registry().Get(1)
	assert.False(t, live)

	_, err = inst.GetModule("Echo")
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.NoError(t, inst.Destroy(ctx))
}

// holderPackage provides Holder.hold(callback), a void method that hands the
// callback to the test and then blocks the main thread until released.
func holderPackage(handles chan<- *bridge.CallbackHandle, release <-chan struct{}, finished chan<- struct{}) bridge.Package {
	return bridge.PackageFunc{
		PackageName: "holder",
		Factory: func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
			if name != "Holder" {
				return nil
			}
			return bridge.NewModule(name, invoker, bridge.Method{
				Name:       "hold",
				Convention: bridge.ConventionVoid,
				Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
					cb, err := args.Callback(0)
					if err != nil {
						return nil, err
					}
					handles <- cb
					<-release
					close(finished)
					return nil, nil
				},
			})
		},
	}
}

func TestDestroyWithVoidCallInFlight(t *testing.T) {
	ctx := context.Background()
	rec := errors.InstallRecorder(t.Cleanup)
	handles := make(chan *bridge.CallbackHandle, 1)
	release := make(chan struct{})
	finished := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	inst, err := NewInstance("hold", Options{
		Packages: func(Env) []bridge.Package {
			return []bridge.Package{holderPackage(handles, release, finished)}
		},
	})
	require.NoError(t, err)
	late := recorder(t, inst, "recordLate")

	_, err = inst.Eval(ctx, `getCapability("Holder")["hold"](func(x) { recordLate(x) })`)
	require.NoError(t, err)
	var handle *bridge.CallbackHandle
	select {
	case handle = <-handles:
	case <-time.After(2 * time.Second):
		t.Fatal("void call never reached the main thread")
	}

	destroyed := make(chan error, 1)
	go func() { destroyed <- inst.Destroy(ctx) }()
	assert.Never(t, func() bool { return len(destroyed) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"teardown waits for the running main-thread call")

	unblock()
	select {
	case err := <-destroyed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("destroy did not finish after the call returned")
	}
	<-finished
	assert.True(t, inst.Executor().Stopped())
	assert.False(t, handle.Alive())

	handle.Invoke("late")
	handle.InvokeOnce("later")
	assert.Never(t, func() bool { return len(late) > 0 }, 50*time.Millisecond, 5*time.Millisecond,
		"callbacks must not reach the script after teardown")
	assert.Empty(t, rec.ErrorsOfKind(errors.KindExecution))
	assert.Empty(t, rec.Panics())
}

func TestInstanceRegistry(t *testing.T) {
	reg := NewInstanceRegistry("host")
	ctx := context.Background()
	t.Cleanup(func() { _ = reg.DestroyAll(ctx) })

	a, err := reg.CreateInstance("", Options{})
	require.NoError(t, err)
	assert.Equal(t, "host-1", a.ID())
	b, err := reg.CreateInstance("main", Options{})
	require.NoError(t, err)

	_, err = reg.CreateInstance("main", Options{})
	assert.ErrorIs(t, err, ErrInstanceExists)

	got, ok := reg.GetInstance("main")
	require.True(t, ok)
	assert.Same(t, b, got)

	var ids []string
	reg.ForEach(func(inst *Instance) bool {
		ids = append(ids, inst.ID())
		return true
	})
	assert.Equal(t, []string{"host-1", "main"}, ids)

	require.NoError(t, reg.DeleteInstance(ctx, "host-1"))
	assert.True(t, a.Executor().Stopped())
	assert.ErrorIs(t, reg.DeleteInstance(ctx, "host-1"), ErrUnknownInstance)
	assert.Equal(t, 1, reg.Len())
}

func TestApplyMutationsFromScript(t *testing.T) {
	inst, _ := newTestInstance(t)
	ctx := context.Background()
	_, err := inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)

	v, err := inst.Eval(ctx, `
applyMutations(1, [
	{"create": {"tag": 2, "component": "Text", "props": {"text": "hello"}}},
	{"insert": {"parent": 1, "child": 2, "index": 0}},
	{"insert": {"parent": 1, "child": 9, "index": 1}},
])
`)
	require.NoError(t, err)
	report := dynamic.AsObject(v)
	require.NotNil(t, report)
	applied, _ := report.Get("applied")
	failed, _ := report.Get("failed")
	assert.Equal(t, int64(2), applied)
	assert.Equal(t, int64(1), failed)

	text, ok := inst.Applier().Registry().Get(2)
	require.True(t, ok)
	assert.Equal(t, "hello", text.Props().String("text", ""))
	assert.Equal(t, int64(1), text.ParentTag())
}

func TestInputChannelReachesMountedComponents(t *testing.T) {
	inst, _ := newTestInstance(t)
	ctx := context.Background()
	events := recorder(t, inst, "recordEvent")
	_, err := inst.Eval(ctx, `
registerCallableModule("RCTEventEmitter", {
	"receiveEvent": func(tag, name, payload) { recordEvent(tag, name) },
})
`)
	require.NoError(t, err)

	_, err = inst.CreateSurface(ctx, 1, "Demo", nil)
	require.NoError(t, err)
	_, err = inst.ApplyMutations(ctx, 1, mounting.Batch{
		mounting.Create(2, mounting.ComponentTextInput, mounting.PropsOf()),
		mounting.Insert(1, 2, 0),
	})
	require.NoError(t, err)

	_, err = inst.Platform().HandleMethodCall(InputChannel, mounting.InputFocus, []byte(`{"tag": 2}`))
	require.NoError(t, err)
	out, err := inst.Platform().HandleMethodCall(InputChannel, mounting.InputChangeText, []byte(`{"tag": 2, "text": "hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "true", string(out))

	assert.Equal(t, []any{int64(2), "onFocus"}, receive(t, events))
	assert.Equal(t, []any{int64(2), "onChange"}, receive(t, events))

	field, ok := inst.Applier().Registry().Get(2)
	require.True(t, ok)
	assert.Equal(t, "hi", field.(*mounting.TextInputInstance).Text())

	_, err = inst.Platform().HandleMethodCall(InputChannel, mounting.InputFocus, []byte(`{"tag": 42}`))
	assert.ErrorIs(t, err, mounting.ErrUnknownTag)
	_, err = inst.Platform().HandleMethodCall(InputChannel, mounting.InputDragTo, []byte(`{"tag": 2, "y": 10}`))
	assert.ErrorIs(t, err, mounting.ErrInputTarget)

	require.NoError(t, inst.Destroy(ctx))
	_, err = inst.Platform().HandleMethodCall(InputChannel, mounting.InputBlur, []byte(`{"tag": 2}`))
	assert.ErrorIs(t, err, ErrDestroyed)
}
