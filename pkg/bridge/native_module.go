package bridge

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

// Peer is the native implementation behind a capability. Invoke serves sync
// and void methods; InvokeAsync serves promise methods. Both run on the main
// thread.
type Peer interface {
	Invoke(ctx context.Context, method string, args Args) (dynamic.Value, error)
	InvokeAsync(ctx context.Context, method string, args Args) (*NativePromise, error)
}

// Method is one natively implemented capability method. Sync and void
// methods set Func; promise methods set Async.
type Method struct {
	Name       string
	Convention Convention
	Func       func(ctx context.Context, args Args) (dynamic.Value, error)
	Async      func(ctx context.Context, args Args) *NativePromise
}

// Methods is a Peer backed by Go functions.
type Methods []Method

func (m Methods) find(name string) (Method, bool) {
	for _, method := range m {
		if method.Name == name {
			return method, true
		}
	}
	return Method{}, false
}

// Invoke implements Peer.
func (m Methods) Invoke(ctx context.Context, name string, args Args) (dynamic.Value, error) {
	method, ok := m.find(name)
	if !ok || method.Func == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return method.Func(ctx, args)
}

// InvokeAsync implements Peer.
func (m Methods) InvokeAsync(ctx context.Context, name string, args Args) (*NativePromise, error) {
	method, ok := m.find(name)
	if !ok || method.Async == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, name)
	}
	return method.Async(ctx, args), nil
}

// Specs returns the method declarations.
func (m Methods) Specs() []MethodSpec {
	specs := make([]MethodSpec, len(m))
	for i, method := range m {
		specs[i] = MethodSpec{Name: method.Name, Convention: method.Convention}
	}
	return specs
}

// NativeModule is the Module implementation bridging script calls to a Peer.
type NativeModule struct {
	name    string
	invoker *Invoker
	peer    Peer
	specs   []MethodSpec
	byName  map[string]Convention
}

// NewNativeModule declares a capability with specs, served by peer. A nil
// peer declares the capability without linking it.
func NewNativeModule(name string, invoker *Invoker, peer Peer, specs []MethodSpec) *NativeModule {
	byName := make(map[string]Convention, len(specs))
	for _, s := range specs {
		byName[s.Name] = s.Convention
	}
	return &NativeModule{
		name:    name,
		invoker: invoker,
		peer:    peer,
		specs:   append([]MethodSpec(nil), specs...),
		byName:  byName,
	}
}

// NewModule is shorthand for a NativeModule served by Go methods.
func NewModule(name string, invoker *Invoker, methods ...Method) *NativeModule {
	m := Methods(methods)
	return NewNativeModule(name, invoker, m, m.Specs())
}

// Name implements Module.
func (m *NativeModule) Name() string { return m.name }

// Methods implements Module.
func (m *NativeModule) Methods() []MethodSpec {
	return append([]MethodSpec(nil), m.specs...)
}

// Convention returns the calling convention of method.
func (m *NativeModule) Convention(method string) (Convention, bool) {
	c, ok := m.byName[method]
	return c, ok
}

// Call implements Module.
func (m *NativeModule) Call(ctx context.Context, method string, args ...any) (any, error) {
	convention, ok := m.byName[method]
	if !ok {
		return nil, &errors.BridgeError{
			Op:     "bridge.call",
			Kind:   errors.KindLinkage,
			Err:    ErrUnknownMethod,
			Module: m.name,
			Method: method,
		}
	}
	switch convention {
	case ConventionSync:
		return m.CallSync(ctx, method, args...)
	case ConventionVoid:
		return nil, m.CallVoid(ctx, method, args...)
	default:
		return m.CallPromise(ctx, method, args...), nil
	}
}

// CallSync runs method on the main thread and waits for its result.
// Calling a capability without a peer is fatal.
func (m *NativeModule) CallSync(ctx context.Context, method string, args ...any) (dynamic.Value, error) {
	if m.peer == nil {
		errors.Abort(&errors.BridgeError{
			Op:     "bridge.callSync",
			Kind:   errors.KindLinkage,
			Err:    ErrNoPeer,
			Module: m.name,
			Method: method,
		})
		return nil, ErrNoPeer
	}
	marshaled, _, err := marshalArgs(m.invoker.Callbacks(), args)
	if err != nil {
		return nil, m.wrap("bridge.callSync", errors.KindMarshal, method, err)
	}

	result, err := executor.Call(ctx, m.invoker.Runner(), executor.ThreadMain, func(ctx context.Context) (dynamic.Value, error) {
		return m.peer.Invoke(ctx, method, marshaled)
	})
	if err != nil {
		return nil, m.wrap("bridge.callSync", errors.KindExecution, method, err)
	}
	out, err := dynamic.From(result)
	if err != nil {
		return nil, m.wrap("bridge.callSync", errors.KindMarshal, method,
			&errors.MarshalError{Context: "result", Detail: err.Error(), Got: result})
	}
	return out, nil
}

// CallVoid schedules method on the main thread and returns at once.
// Failures on the main thread are logged and suppressed.
func (m *NativeModule) CallVoid(ctx context.Context, method string, args ...any) error {
	marshaled, _, err := marshalArgs(m.invoker.Callbacks(), args)
	if err != nil {
		return m.wrap("bridge.callVoid", errors.KindMarshal, method, err)
	}
	m.invoker.Runner().RunTask(executor.ThreadMain, func(ctx context.Context) {
		defer errors.RecoverWithCallback("bridge.callVoid", func(r any) {
			errors.Report(m.wrap("bridge.callVoid", errors.KindExecution, method, fmt.Errorf("panic: %v", r)))
		})
		if m.peer == nil {
			errors.Report(m.wrap("bridge.callVoid", errors.KindExecution, method, ErrNoPeer))
			return
		}
		if _, err := m.peer.Invoke(ctx, method, marshaled); err != nil {
			errors.Report(m.wrap("bridge.callVoid", errors.KindExecution, method, err))
		}
	})
	return nil
}

// CallPromise starts method on the main thread and returns a pending
// promise. The outcome is marshaled on the main thread and settled on the
// script thread.
func (m *NativeModule) CallPromise(ctx context.Context, method string, args ...any) *Promise {
	promise := NewPromise(m.invoker)
	fail := func(kind errors.ErrorKind, err error) {
		bridgeErr := m.wrap("bridge.callPromise", kind, method, err)
		errors.Report(bridgeErr)
		m.invoker.InvokeAsync(func(ctx context.Context) {
			promise.reject(ctx, err.Error())
		})
	}

	marshaled, handles, err := marshalArgs(m.invoker.Callbacks(), args)
	if err != nil {
		fail(errors.KindMarshal, err)
		return promise
	}
	release := func() {
		for _, h := range handles {
			h.Release()
		}
	}
	if m.peer == nil {
		release()
		fail(errors.KindAsyncExecution, ErrNoPeer)
		return promise
	}

	native, err := executor.Call(ctx, m.invoker.Runner(), executor.ThreadMain, func(ctx context.Context) (*NativePromise, error) {
		return m.peer.InvokeAsync(ctx, method, marshaled)
	})
	if err == nil && native == nil {
		err = fmt.Errorf("%s.%s returned no promise", m.name, method)
	}
	if err != nil {
		release()
		fail(errors.KindAsyncExecution, err)
		return promise
	}

	m.invoker.Runner().RunTask(executor.ThreadMain, func(context.Context) {
		native.Then(func(values []dynamic.Value) {
			release()
			v, err := resolutionValue(values)
			if err != nil {
				fail(errors.KindMarshal, err)
				return
			}
			m.invoker.InvokeAsync(func(ctx context.Context) {
				promise.resolve(ctx, v)
			})
		}, func(values []dynamic.Value) {
			release()
			msg, err := rejectionMessage(values)
			if err != nil {
				fail(errors.KindMarshal, err)
				return
			}
			m.invoker.InvokeAsync(func(ctx context.Context) {
				promise.reject(ctx, msg)
			})
		})
	})
	errors.Logger().Debug("promise call dispatched", zap.String("module", m.name), zap.String("method", method))
	return promise
}

func (m *NativeModule) wrap(op string, kind errors.ErrorKind, method string, err error) *errors.BridgeError {
	return &errors.BridgeError{
		Op:     op,
		Kind:   kind,
		Err:    err,
		Module: m.name,
		Method: method,
	}
}
