// Package script adapts the Risor interpreter to the call bridge.
//
// Scripts run on the script thread only. Capabilities resolved through the
// getCapability global appear as maps of builtins, one per method; promise
// methods return a map with "then" and "state" builtins. Scripts register
// callable modules with registerCallableModule(name, {method: fn}) so the
// host can call back into them by name.
package script

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/object"
	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

// RegisterCallableModuleBinding is the global scripts use to expose
// functions to the host.
const RegisterCallableModuleBinding = "registerCallableModule"

// ErrNoCallableModule is returned when calling an unregistered module method.
var ErrNoCallableModule = stderrors.New("script: callable module not registered")

// Engine evaluates Risor scripts on the script thread.
type Engine struct {
	runner bridge.TaskRunner

	mu       sync.Mutex
	globals  map[string]object.Object
	callable map[string]map[string]*Function
}

// NewEngine creates an engine scheduling evaluation through runner.
func NewEngine(runner bridge.TaskRunner) *Engine {
	e := &Engine{
		runner:   runner,
		globals:  make(map[string]object.Object),
		callable: make(map[string]map[string]*Function),
	}
	e.globals[RegisterCallableModuleBinding] = object.NewBuiltin(RegisterCallableModuleBinding, e.registerCallableModule)
	return e
}

// BindGlobal installs a native function as a script global. It implements
// bridge.Binder.
func (e *Engine) BindGlobal(name string, fn func(ctx context.Context, args []any) (any, error)) error {
	builtin := object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		converted, errObj := toArgs(ctx, name, args)
		if errObj != nil {
			return errObj
		}
		result, err := fn(ctx, converted)
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return e.resultObject(result)
	})
	e.mu.Lock()
	e.globals[name] = builtin
	e.mu.Unlock()
	return nil
}

// SetGlobal installs a neutral value as a script global.
func (e *Engine) SetGlobal(name string, v dynamic.Value) {
	e.mu.Lock()
	e.globals[name] = toObject(v)
	e.mu.Unlock()
}

// Globals returns the names of the installed globals.
func (e *Engine) Globals() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.globals))
	for name := range e.globals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Eval runs source on the script thread and returns the value of its last
// expression.
func (e *Engine) Eval(ctx context.Context, source string) (dynamic.Value, error) {
	return executor.Call(ctx, e.runner, executor.ThreadScript, func(ctx context.Context) (dynamic.Value, error) {
		return e.eval(ctx, source)
	})
}

func (e *Engine) eval(ctx context.Context, source string) (dynamic.Value, error) {
	e.mu.Lock()
	opts := make([]risor.Option, 0, len(e.globals))
	for name, val := range e.globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	e.mu.Unlock()

	out, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	if _, ok := out.(*object.Function); ok {
		return nil, nil
	}
	return toDynamic(ctx, out)
}

func (e *Engine) registerCallableModule(ctx context.Context, args ...object.Object) object.Object {
	if len(args) != 2 {
		return object.NewArgsError(RegisterCallableModuleBinding, 2, len(args))
	}
	name, ok := args[0].(*object.String)
	if !ok {
		return object.Errorf("%s: name must be a string, got %s", RegisterCallableModuleBinding, args[0].Type())
	}
	methods, ok := args[1].(*object.Map)
	if !ok {
		return object.Errorf("%s: methods must be a map, got %s", RegisterCallableModuleBinding, args[1].Type())
	}
	call, ok := object.GetCallFunc(ctx)
	if !ok {
		return object.Errorf("%s: no script is running", RegisterCallableModuleBinding)
	}

	fns := make(map[string]*Function)
	for method, value := range methods.Value() {
		fn, ok := value.(*object.Function)
		if !ok {
			return object.Errorf("%s: %s must be a function, got %s", RegisterCallableModuleBinding, method, value.Type())
		}
		fns[method] = &Function{fn: fn, call: call}
	}
	e.mu.Lock()
	e.callable[name.Value()] = fns
	e.mu.Unlock()
	errors.Logger().Debug("callable module registered", zap.String("module", name.Value()), zap.Int("methods", len(fns)))
	return object.Nil
}

// HasCallable reports whether a script registered module.
func (e *Engine) HasCallable(module string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.callable[module]
	return ok
}

// Invoke calls a registered callable module method. It must run on the
// script thread.
func (e *Engine) Invoke(ctx context.Context, module, method string, args ...dynamic.Value) (dynamic.Value, error) {
	e.mu.Lock()
	fn := e.callable[module][method]
	e.mu.Unlock()
	if fn == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoCallableModule, module, method)
	}
	return fn.Call(ctx, args...)
}

// CallFunction schedules a callable module method on the script thread.
// Failures are reported, not returned.
func (e *Engine) CallFunction(module, method string, args ...dynamic.Value) {
	e.runner.RunTask(executor.ThreadScript, func(ctx context.Context) {
		if _, err := e.Invoke(ctx, module, method, args...); err != nil {
			errors.Report(&errors.BridgeError{
				Op:     "script.callFunction",
				Kind:   errors.KindExecution,
				Module: module,
				Method: method,
				Err:    err,
			})
		}
	})
}

// capabilityObject exposes a capability as a map of builtins.
func (e *Engine) capabilityObject(m bridge.Module) object.Object {
	methods := make(map[string]object.Object)
	for _, spec := range m.Methods() {
		method := spec.Name
		label := m.Name() + "." + method
		methods[method] = object.NewBuiltin(label, func(ctx context.Context, args ...object.Object) object.Object {
			converted, errObj := toArgs(ctx, label, args)
			if errObj != nil {
				return errObj
			}
			result, err := m.Call(ctx, method, converted...)
			if err != nil {
				return object.Errorf("%s: %v", label, err)
			}
			return e.resultObject(result)
		})
	}
	return object.NewMap(methods)
}

// promiseObject exposes a pending promise to script.
func (e *Engine) promiseObject(p *bridge.Promise) object.Object {
	then := object.NewBuiltin("then", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 || len(args) > 2 {
			return object.NewArgsError("then", 1, len(args))
		}
		reactions := make([]*Function, 2)
		for i, a := range args {
			if _, ok := a.(*object.NilType); ok {
				continue
			}
			v, err := toValue(ctx, a)
			if err != nil {
				return object.Errorf("then: %v", err)
			}
			fn, ok := v.(*Function)
			if !ok {
				return object.Errorf("then: argument %d must be a function", i)
			}
			reactions[i] = fn
		}
		onFulfilled, onRejected := reactions[0], reactions[1]
		p.Then(func(ctx context.Context, v dynamic.Value) {
			if onFulfilled != nil {
				e.callReaction(ctx, onFulfilled, v)
			}
		}, func(ctx context.Context, reason string) {
			if onRejected != nil {
				e.callReaction(ctx, onRejected, reason)
			}
		})
		return object.Nil
	})
	state := object.NewBuiltin("state", func(context.Context, ...object.Object) object.Object {
		return object.NewString(p.State().String())
	})
	return object.NewMap(map[string]object.Object{
		"then":  then,
		"state": state,
	})
}

func (e *Engine) callReaction(ctx context.Context, fn *Function, v dynamic.Value) {
	if _, err := fn.Call(ctx, v); err != nil {
		errors.Report(&errors.BridgeError{
			Op:   "script.promise",
			Kind: errors.KindExecution,
			Err:  err,
		})
	}
}
