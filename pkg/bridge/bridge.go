// Package bridge lets script code call native capabilities across the
// script/main thread boundary.
//
// A capability is exposed to script as a Module resolved by name through a
// ModuleProvider. Each method uses one of three calling conventions:
//
//   - ConventionSync blocks the script thread until the main thread has run
//     the method and returns its result.
//   - ConventionVoid schedules the method on the main thread and returns
//     immediately; failures are logged and suppressed.
//   - ConventionPromise returns a pending Promise immediately and settles it
//     on the script thread once the native side resolves or rejects.
//
// Script functions passed as arguments become CallbackHandles. Handles are
// invalidated when the owning runtime is torn down; invoking one afterwards
// is a silent no-op.
package bridge

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/executor"
)

// Convention selects how a capability method is called.
type Convention int

const (
	ConventionSync Convention = iota
	ConventionVoid
	ConventionPromise
)

func (c Convention) String() string {
	switch c {
	case ConventionSync:
		return "sync"
	case ConventionVoid:
		return "void"
	case ConventionPromise:
		return "promise"
	default:
		return fmt.Sprintf("convention(%d)", int(c))
	}
}

// ParseConvention parses the names produced by Convention.String.
func ParseConvention(s string) (Convention, error) {
	switch s {
	case "sync":
		return ConventionSync, nil
	case "void", "async":
		return ConventionVoid, nil
	case "promise":
		return ConventionPromise, nil
	}
	return 0, fmt.Errorf("bridge: unknown calling convention %q", s)
}

// MethodSpec declares a capability method.
type MethodSpec struct {
	Name       string
	Convention Convention
}

// Module is a script-facing capability proxy.
type Module interface {
	// Name returns the capability name.
	Name() string
	// Methods returns the declared methods in declaration order.
	Methods() []MethodSpec
	// Call invokes method from the script thread. Sync methods return a
	// dynamic.Value, void methods return nil, promise methods return a *Promise.
	Call(ctx context.Context, method string, args ...any) (any, error)
}

// Function is a script function value that native code may call back.
type Function interface {
	Call(ctx context.Context, args ...dynamic.Value) (dynamic.Value, error)
}

// TaskRunner runs tasks on executor threads.
type TaskRunner interface {
	RunTask(t executor.Thread, task executor.Task)
	RunSyncTask(ctx context.Context, t executor.Thread, task executor.Task) error
}

// Scheduler is the native tree scheduler capabilities may drive. It is
// bound once the first surface starts and may be nil before that.
type Scheduler interface {
	SynchronouslyUpdateView(ctx context.Context, tag int64, props *dynamic.Object) error
	DispatchCommand(ctx context.Context, tag int64, name string, args []dynamic.Value) error
	FindByNativeID(id string) (int64, bool)
}

var (
	// ErrModuleNotFound is returned when no factory produces the capability.
	ErrModuleNotFound = stderrors.New("capability not found")

	// ErrNoPeer means the capability was declared but never linked to a
	// native implementation.
	ErrNoPeer = stderrors.New("no native peer bound")

	// ErrUnknownMethod is returned for methods the capability does not declare.
	ErrUnknownMethod = stderrors.New("unknown method")
)
