package bridge

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

type scriptFunc func(ctx context.Context, args ...dynamic.Value) (dynamic.Value, error)

func (f scriptFunc) Call(ctx context.Context, args ...dynamic.Value) (dynamic.Value, error) {
	return f(ctx, args...)
}

func newInvoker(t *testing.T) (*executor.TaskExecutor, *Invoker) {
	t.Helper()
	exec := executor.New()
	t.Cleanup(exec.Stop)
	return exec, NewInvoker(exec)
}

func await(t *testing.T, p *Promise) (dynamic.Value, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := p.Await(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "promise never settled")
	return v, err
}

// flush waits until everything queued on the main thread and then on the
// script thread has run.
func flush(t *testing.T, exec *executor.TaskExecutor) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, exec.RunSyncTask(ctx, executor.ThreadMain, func(context.Context) {}))
	require.NoError(t, exec.RunSyncTask(ctx, executor.ThreadScript, func(context.Context) {}))
}

func TestCallSyncRunsOnMainThread(t *testing.T) {
	_, inv := newInvoker(t)

	var onMain bool
	m := NewModule("Echo", inv, Method{
		Name:       "echo",
		Convention: ConventionSync,
		Func: func(ctx context.Context, args Args) (dynamic.Value, error) {
			onMain = executor.IsOnThread(ctx, executor.ThreadMain)
			return args.Value(0), nil
		},
	})

	out, err := m.Call(context.Background(), "echo", map[string]any{"n": 1})
	require.NoError(t, err)
	assert.True(t, onMain)
	obj := dynamic.AsObject(out)
	require.NotNil(t, obj)
	n, _ := obj.Get("n")
	assert.Equal(t, int64(1), n)
}

func TestCallSyncPropagatesErrors(t *testing.T) {
	_, inv := newInvoker(t)
	boom := stderrors.New("boom")
	m := NewModule("Failing", inv, Method{
		Name:       "fail",
		Convention: ConventionSync,
		Func: func(context.Context, Args) (dynamic.Value, error) {
			return nil, boom
		},
	})

	_, err := m.Call(context.Background(), "fail")
	require.ErrorIs(t, err, boom)
	var bridgeErr *errors.BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, errors.KindExecution, bridgeErr.Kind)
	assert.Equal(t, "Failing", bridgeErr.Module)
}

func TestCallSyncWithoutPeerIsFatal(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	var aborted *errors.BridgeError
	errors.SetAbortHook(func(err *errors.BridgeError) { aborted = err })
	t.Cleanup(func() { errors.SetAbortHook(nil) })

	_, inv := newInvoker(t)
	m := NewNativeModule("Unlinked", inv, nil, []MethodSpec{{Name: "get", Convention: ConventionSync}})

	assert.Panics(t, func() {
		_, _ = m.Call(context.Background(), "get")
	})
	require.NotNil(t, aborted)
	assert.Equal(t, errors.KindLinkage, aborted.Kind)
	assert.ErrorIs(t, aborted, ErrNoPeer)
	assert.Len(t, rec.ErrorsOfKind(errors.KindLinkage), 1)
}

func TestCallUnknownMethod(t *testing.T) {
	_, inv := newInvoker(t)
	m := NewModule("Empty", inv)
	_, err := m.Call(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownMethod)
}

func TestCallVoidSuppressesFailures(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	exec, inv := newInvoker(t)

	var calls int
	m := NewModule("Logger", inv,
		Method{Name: "log", Convention: ConventionVoid, Func: func(context.Context, Args) (dynamic.Value, error) {
			calls++
			return nil, nil
		}},
		Method{Name: "fail", Convention: ConventionVoid, Func: func(context.Context, Args) (dynamic.Value, error) {
			return nil, stderrors.New("disk full")
		}},
		Method{Name: "panic", Convention: ConventionVoid, Func: func(context.Context, Args) (dynamic.Value, error) {
			panic("native crash")
		}},
	)

	for _, method := range []string{"log", "fail", "panic", "log"} {
		out, err := m.Call(context.Background(), method, "x")
		require.NoError(t, err)
		assert.Nil(t, out)
	}
	flush(t, exec)

	assert.Equal(t, 2, calls, "later calls still run after a failure")
	execErrs := rec.ErrorsOfKind(errors.KindExecution)
	require.Len(t, execErrs, 2)
	assert.Equal(t, "fail", execErrs[0].Method)
	assert.Equal(t, "panic", execErrs[1].Method)
}

func asyncModule(inv *Invoker, settle func(p *NativePromise)) *NativeModule {
	return NewModule("Async", inv, Method{
		Name:       "run",
		Convention: ConventionPromise,
		Async: func(context.Context, Args) *NativePromise {
			p := NewNativePromise()
			settle(p)
			return p
		},
	})
}

func TestCallPromiseResolution(t *testing.T) {
	tests := []struct {
		name   string
		values []dynamic.Value
		want   dynamic.Value
	}{
		{"no value", nil, dynamic.Undefined},
		{"one value", []dynamic.Value{"ok"}, "ok"},
		{"null", []dynamic.Value{nil}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, inv := newInvoker(t)
			m := asyncModule(inv, func(p *NativePromise) { p.Resolve(tt.values...) })

			out, err := m.Call(context.Background(), "run")
			require.NoError(t, err)
			promise, ok := out.(*Promise)
			require.True(t, ok)

			v, err := await(t, promise)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, PromiseFulfilled, promise.State())
		})
	}
}

func TestCallPromiseRejection(t *testing.T) {
	tests := []struct {
		name   string
		values []dynamic.Value
		want   string
	}{
		{"no value", nil, ""},
		{"string", []dynamic.Value{"denied"}, "denied"},
		{"error object", []dynamic.Value{dynamic.ObjectOf("message", "not found", "code", 404)}, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, inv := newInvoker(t)
			m := asyncModule(inv, func(p *NativePromise) { p.Reject(tt.values...) })

			_, err := await(t, m.CallPromise(context.Background(), "run"))
			var rejection *Rejection
			require.ErrorAs(t, err, &rejection)
			assert.Equal(t, tt.want, rejection.Message)
		})
	}
}

func TestCallPromiseContractViolations(t *testing.T) {
	tests := []struct {
		name   string
		settle func(p *NativePromise)
	}{
		{"resolve with two values", func(p *NativePromise) { p.Resolve("a", "b") }},
		{"reject with a number", func(p *NativePromise) { p.Reject(int64(7)) }},
		{"reject with two values", func(p *NativePromise) { p.Reject("a", "b") }},
		{"error object without message", func(p *NativePromise) { p.Reject(dynamic.ObjectOf("code", 1)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := errors.InstallRecorder(t.Cleanup)
			_, inv := newInvoker(t)
			m := asyncModule(inv, tt.settle)

			promise := m.CallPromise(context.Background(), "run")
			_, err := await(t, promise)
			require.Error(t, err)
			assert.Equal(t, PromiseRejected, promise.State())

			marshal := rec.ErrorsOfKind(errors.KindMarshal)
			require.Len(t, marshal, 1)
			var marshalErr *errors.MarshalError
			require.ErrorAs(t, marshal[0], &marshalErr)
			assert.Equal(t, marshalErr.Error(), promise.Reason())
		})
	}
}

func TestCallPromiseSettlesOnScriptThread(t *testing.T) {
	exec, inv := newInvoker(t)
	pending := NewNativePromise()
	m := NewModule("Later", inv, Method{
		Name:       "wait",
		Convention: ConventionPromise,
		Async:      func(context.Context, Args) *NativePromise { return pending },
	})

	promise := m.CallPromise(context.Background(), "wait")
	flush(t, exec)
	assert.Equal(t, PromisePending, promise.State())

	onScript := make(chan bool, 1)
	promise.Then(func(ctx context.Context, v dynamic.Value) {
		onScript <- executor.IsOnThread(ctx, executor.ThreadScript)
	}, nil)

	exec.RunTask(executor.ThreadMain, func(context.Context) { pending.Resolve(int64(42)) })

	v, err := await(t, promise)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)
	select {
	case ok := <-onScript:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("reaction did not run")
	}

	// Settling twice has no effect.
	exec.RunTask(executor.ThreadMain, func(context.Context) { pending.Reject("late") })
	flush(t, exec)
	assert.Equal(t, PromiseFulfilled, promise.State())
}

func TestCallPromiseWithoutPeerRejects(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	_, inv := newInvoker(t)
	m := NewNativeModule("Unlinked", inv, nil, []MethodSpec{{Name: "get", Convention: ConventionPromise}})

	_, err := await(t, m.CallPromise(context.Background(), "get"))
	require.Error(t, err)
	assert.Len(t, rec.ErrorsOfKind(errors.KindAsyncExecution), 1)
}

func TestCallbackArgumentsRunOnScriptThread(t *testing.T) {
	exec, inv := newInvoker(t)

	var stored *CallbackHandle
	m := NewModule("Events", inv, Method{
		Name:       "subscribe",
		Convention: ConventionSync,
		Func: func(_ context.Context, args Args) (dynamic.Value, error) {
			h, err := args.Callback(0)
			if err != nil {
				return nil, err
			}
			stored = h
			return nil, nil
		},
	})

	var mu sync.Mutex
	var got []dynamic.Value
	var threads []bool
	fn := scriptFunc(func(ctx context.Context, args ...dynamic.Value) (dynamic.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, args...)
		threads = append(threads, executor.IsOnThread(ctx, executor.ThreadScript))
		return nil, nil
	})

	_, err := m.Call(context.Background(), "subscribe", fn)
	require.NoError(t, err)
	require.NotNil(t, stored)

	stored.Invoke("first")
	stored.Invoke("second")
	flush(t, exec)

	mu.Lock()
	assert.Equal(t, []dynamic.Value{"first", "second"}, got)
	assert.Equal(t, []bool{true, true}, threads)
	mu.Unlock()

	inv.Invalidate()
	assert.False(t, stored.Alive())
	stored.Invoke("after teardown")
	flush(t, exec)

	mu.Lock()
	assert.Len(t, got, 2, "expired handles are a no-op")
	mu.Unlock()
}

func TestCallbackHandleReleaseAndReuse(t *testing.T) {
	exec, inv := newInvoker(t)
	arena := inv.Callbacks()

	var calls int
	fn := scriptFunc(func(context.Context, ...dynamic.Value) (dynamic.Value, error) {
		calls++
		return nil, nil
	})

	first := arena.Wrap(fn)
	first.InvokeOnce()
	flush(t, exec)
	assert.Equal(t, 1, calls)
	assert.False(t, first.Alive())

	// The slot is reused, but the old handle stays expired.
	second := arena.Wrap(fn)
	assert.True(t, second.Alive())
	first.Invoke()
	flush(t, exec)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, arena.Len())

	second.Release()
	assert.Zero(t, arena.Len())

	inv.Invalidate()
	assert.False(t, arena.Wrap(fn).Alive(), "no new handles after invalidation")
}

func TestCallbackErrorsAreReported(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	exec, inv := newInvoker(t)

	h := inv.Callbacks().Wrap(scriptFunc(func(context.Context, ...dynamic.Value) (dynamic.Value, error) {
		return nil, stderrors.New("script threw")
	}))
	h.Invoke()
	flush(t, exec)
	assert.Len(t, rec.ErrorsOfKind(errors.KindExecution), 1)
}

func TestMarshalArgsRejectsUnsupportedValues(t *testing.T) {
	_, inv := newInvoker(t)
	m := NewModule("Echo", inv, Method{
		Name:       "echo",
		Convention: ConventionSync,
		Func:       func(context.Context, Args) (dynamic.Value, error) { return nil, nil },
	})

	_, err := m.Call(context.Background(), "echo", make(chan int))
	var bridgeErr *errors.BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, errors.KindMarshal, bridgeErr.Kind)
}

func TestArgsAccessors(t *testing.T) {
	_, inv := newInvoker(t)
	h := inv.Callbacks().Wrap(scriptFunc(func(context.Context, ...dynamic.Value) (dynamic.Value, error) { return nil, nil }))
	args := Args{"key", int64(3), dynamic.List("a", "b"), h}

	s, err := args.String(0)
	require.NoError(t, err)
	assert.Equal(t, "key", s)

	f, err := args.Float(1)
	require.NoError(t, err)
	assert.Equal(t, 3.0, f)

	strs, err := args.Strings(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, strs)

	cb, err := args.Callback(3)
	require.NoError(t, err)
	assert.Same(t, h, cb)

	_, err = args.String(1)
	assert.Error(t, err)
	_, err = args.Callback(0)
	assert.Error(t, err)
	_, err = args.Object(9)
	assert.Error(t, err)
	assert.Len(t, args.Values(), 3)

	n, err := Args{2.0}.Int(0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	_, err = Args{2.5}.Int(0)
	assert.Error(t, err)
}

type fakeScheduler struct{ Scheduler }

func TestModuleProviderCachesAndPassesScheduler(t *testing.T) {
	_, inv := newInvoker(t)

	var created []string
	var schedulers []Scheduler
	factory := func(name string, invoker *Invoker, scheduler Scheduler) Module {
		if name != "Device" {
			return nil
		}
		created = append(created, name)
		schedulers = append(schedulers, scheduler)
		return NewModule(name, invoker)
	}
	provider := NewModuleProvider(inv, factory)

	_, err := provider.Get("Missing")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	sched := fakeScheduler{}
	provider.SetScheduler(sched)

	first, err := provider.Get("Device")
	require.NoError(t, err)
	second, err := provider.Get("Device")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, []string{"Device"}, created)
	assert.Equal(t, []Scheduler{sched}, schedulers)

	provider.Clear()
	_, err = provider.Get("Device")
	require.NoError(t, err)
	assert.Len(t, created, 2)
}

func TestComposeFactoriesUsesPackageOrder(t *testing.T) {
	_, inv := newInvoker(t)
	pkg := func(pkgName string, names ...string) Package {
		return PackageFunc{PackageName: pkgName, Factory: func(name string, invoker *Invoker, _ Scheduler) Module {
			for _, n := range names {
				if n == name {
					return NewModule(pkgName+"."+name, invoker)
				}
			}
			return nil
		}}
	}
	factory := ComposeFactories(pkg("core", "Device", "Timing"), pkg("extra", "Timing", "Storage"))

	assert.Equal(t, "core.Timing", factory("Timing", inv, nil).Name())
	assert.Equal(t, "extra.Storage", factory("Storage", inv, nil).Name())
	assert.Nil(t, factory("Nope", inv, nil))
}

type recordingBinder struct {
	globals map[string]func(ctx context.Context, args []any) (any, error)
}

func (b *recordingBinder) BindGlobal(name string, fn func(ctx context.Context, args []any) (any, error)) error {
	if b.globals == nil {
		b.globals = make(map[string]func(ctx context.Context, args []any) (any, error))
	}
	b.globals[name] = fn
	return nil
}

func TestInstallBindings(t *testing.T) {
	_, inv := newInvoker(t)
	provider := NewModuleProvider(inv, func(name string, invoker *Invoker, _ Scheduler) Module {
		if name == "Device" {
			return NewModule(name, invoker)
		}
		return nil
	})

	binder := &recordingBinder{}
	require.NoError(t, provider.InstallBindings(context.Background(), binder))
	get, ok := binder.globals[GetCapabilityBinding]
	require.True(t, ok)

	ctx := executor.WithThread(context.Background(), executor.ThreadScript)
	m, err := get(ctx, []any{"Device"})
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Device", m.(Module).Name())

	m, err = get(ctx, []any{"Unknown"})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = get(ctx, []any{42})
	assert.Error(t, err)
}

func TestParseConvention(t *testing.T) {
	for _, c := range []Convention{ConventionSync, ConventionVoid, ConventionPromise} {
		parsed, err := ParseConvention(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
	_, err := ParseConvention("later")
	assert.Error(t, err)
}
