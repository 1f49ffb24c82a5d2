// Package deviceinfo provides the DeviceInfo capability, a synchronous
// snapshot of host constants.
package deviceinfo

import (
	"context"
	"os"
	"runtime"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Name is the capability name.
const Name = "DeviceInfo"

// Info identifies the running app.
type Info struct {
	AppName    string
	AppID      string
	InstanceID string
	Debug      bool
}

// Constants returns the values getConstants reports, in a stable order.
func (i Info) Constants() *dynamic.Object {
	host, _ := os.Hostname()
	return dynamic.NewObject().
		Set("appName", i.AppName).
		Set("bundleId", i.AppID).
		Set("instanceId", i.InstanceID).
		Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH).
		Set("hostname", host).
		Set("cpus", int64(runtime.NumCPU())).
		Set("runtimeVersion", runtime.Version()).
		Set("isDebug", i.Debug)
}

// Package returns the package providing DeviceInfo.
func Package(info Info) bridge.Package {
	return bridge.PackageFunc{
		PackageName: "deviceinfo",
		Factory: func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
			if name != Name {
				return nil
			}
			return bridge.NewModule(name, invoker, bridge.Method{
				Name:       "getConstants",
				Convention: bridge.ConventionSync,
				Func: func(context.Context, bridge.Args) (dynamic.Value, error) {
					return info.Constants(), nil
				},
			})
		},
	}
}
