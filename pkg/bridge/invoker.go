package bridge

import (
	"github.com/go-drift/nativehost/pkg/executor"
)

// CallInvoker schedules work on the script thread.
type CallInvoker interface {
	InvokeAsync(task executor.Task)
}

// Invoker is the invocation context of one runtime instance. Modules use it
// to hop between threads and to wrap script callbacks.
type Invoker struct {
	runner    TaskRunner
	callbacks *CallbackArena
}

// NewInvoker creates an Invoker over runner with a fresh callback arena.
func NewInvoker(runner TaskRunner) *Invoker {
	inv := &Invoker{runner: runner}
	inv.callbacks = NewCallbackArena(inv)
	return inv
}

// InvokeAsync enqueues task on the script thread.
func (i *Invoker) InvokeAsync(task executor.Task) {
	i.runner.RunTask(executor.ThreadScript, task)
}

// Runner returns the task runner.
func (i *Invoker) Runner() TaskRunner { return i.runner }

// Callbacks returns the arena holding this instance's callback handles.
func (i *Invoker) Callbacks() *CallbackArena { return i.callbacks }

// Invalidate expires every callback handle created through this invoker.
func (i *Invoker) Invalidate() { i.callbacks.Invalidate() }
