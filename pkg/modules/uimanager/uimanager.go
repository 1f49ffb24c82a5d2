// Package uimanager provides the UIManager capability, which reaches the
// mounted tree through the scheduler bound to the capability provider.
package uimanager

import (
	"context"
	stderrors "errors"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Name is the capability name.
const Name = "UIManager"

// ErrNoScheduler is returned while no surface has started.
var ErrNoScheduler = stderrors.New("uimanager: no surface is running")

// Package returns the package providing UIManager. When the provider had no
// scheduler at creation time, each call asks bound for the current one, so a
// module resolved before the first surface starts works once it has. bound
// may be nil.
func Package(bound func() bridge.Scheduler) bridge.Package {
	return bridge.PackageFunc{
		PackageName: "uimanager",
		Factory: func(name string, invoker *bridge.Invoker, scheduler bridge.Scheduler) bridge.Module {
			if name != Name {
				return nil
			}
			current := func() (bridge.Scheduler, error) {
				s := scheduler
				if s == nil && bound != nil {
					s = bound()
				}
				if s == nil {
					return nil, ErrNoScheduler
				}
				return s, nil
			}
			return bridge.NewModule(name, invoker, methods(current)...)
		},
	}
}

func methods(current func() (bridge.Scheduler, error)) []bridge.Method {
	return []bridge.Method{
		{
			Name:       "findNodeByNativeID",
			Convention: bridge.ConventionSync,
			Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
				s, err := current()
				if err != nil {
					return nil, err
				}
				id, err := args.String(0)
				if err != nil {
					return nil, err
				}
				if tag, ok := s.FindByNativeID(id); ok {
					return tag, nil
				}
				return nil, nil
			},
		},
		{
			// dispatchViewManagerCommand(tag, command, args)
			Name:       "dispatchViewManagerCommand",
			Convention: bridge.ConventionVoid,
			Func: func(ctx context.Context, args bridge.Args) (dynamic.Value, error) {
				s, err := current()
				if err != nil {
					return nil, err
				}
				tag, err := args.Int(0)
				if err != nil {
					return nil, err
				}
				command, err := args.String(1)
				if err != nil {
					return nil, err
				}
				var commandArgs []dynamic.Value
				if args.Len() > 2 && args.Value(2) != nil {
					if commandArgs, err = args.List(2); err != nil {
						return nil, err
					}
				}
				return nil, s.DispatchCommand(ctx, tag, command, commandArgs)
			},
		},
		{
			// updateView(tag, props) merges props and applies them at once.
			Name:       "updateView",
			Convention: bridge.ConventionSync,
			Func: func(ctx context.Context, args bridge.Args) (dynamic.Value, error) {
				s, err := current()
				if err != nil {
					return nil, err
				}
				tag, err := args.Int(0)
				if err != nil {
					return nil, err
				}
				props, err := args.Object(1)
				if err != nil {
					return nil, err
				}
				return nil, s.SynchronouslyUpdateView(ctx, tag, props)
			},
		},
	}
}
