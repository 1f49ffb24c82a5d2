// Package appstate provides the AppState capability backed by the platform
// lifecycle service.
package appstate

import (
	"context"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/platform"
)

// Name is the capability name.
const Name = "AppState"

// Package returns the package providing AppState.
func Package(lifecycle *platform.LifecycleService) bridge.Package {
	return bridge.PackageFunc{
		PackageName: "appstate",
		Factory: func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
			if name != Name || lifecycle == nil {
				return nil
			}
			return bridge.NewModule(name, invoker,
				bridge.Method{
					Name:       "getCurrentAppState",
					Convention: bridge.ConventionSync,
					Func: func(context.Context, bridge.Args) (dynamic.Value, error) {
						return string(lifecycle.State()), nil
					},
				},
				bridge.Method{
					// getCurrentAppStateAsync resolves with {app_state}.
					Name:       "getCurrentAppStateAsync",
					Convention: bridge.ConventionPromise,
					Async: func(context.Context, bridge.Args) *bridge.NativePromise {
						return bridge.Resolved(dynamic.ObjectOf("app_state", string(lifecycle.State())))
					},
				},
			)
		},
	}
}
