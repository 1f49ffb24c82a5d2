// Package modules assembles the built-in capability packages.
package modules

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/config"
	"github.com/go-drift/nativehost/pkg/executor"
	"github.com/go-drift/nativehost/pkg/modules/appstate"
	"github.com/go-drift/nativehost/pkg/modules/deviceinfo"
	"github.com/go-drift/nativehost/pkg/modules/logger"
	"github.com/go-drift/nativehost/pkg/modules/storage"
	"github.com/go-drift/nativehost/pkg/modules/timing"
	"github.com/go-drift/nativehost/pkg/modules/uimanager"
	"github.com/go-drift/nativehost/pkg/platform"
	"github.com/go-drift/nativehost/pkg/runtime"
)

// Names lists the built-in capability names.
var Names = []string{
	deviceinfo.Name,
	logger.Name,
	storage.Name,
	timing.Name,
	uimanager.Name,
	appstate.Name,
}

// Builtin returns the package constructor for runtime.Options. Channel
// capabilities declared in cfg come after the built-in ones.
func Builtin(cfg *config.Resolved, l *zap.Logger) func(env runtime.Env) []bridge.Package {
	if l == nil {
		l = zap.NewNop()
	}
	return func(env runtime.Env) []bridge.Package {
		pkgs := []bridge.Package{
			deviceinfo.Package(deviceinfo.Info{
				AppName:    cfg.AppName,
				AppID:      cfg.AppID,
				InstanceID: env.InstanceID,
				Debug:      cfg.EnableDebugger,
			}),
			logger.Package(l),
			storage.NewPackage(cfg.StoragePath, env.Executor.Dispatcher(executor.ThreadMain)),
			timing.Package(env.Ticker),
			uimanager.Package(env.Scheduler),
			appstate.Package(env.Lifecycle),
		}
		caps, err := ChannelCapabilities(cfg.Modules)
		if err != nil {
			// config.Resolve validated the conventions already.
			l.Error("channel capabilities skipped", zap.Error(err))
			return pkgs
		}
		if len(caps) > 0 {
			pkgs = append(pkgs, platform.ChannelPackage(env.Platform, caps...))
		}
		return pkgs
	}
}

// ChannelCapabilities converts configured modules to channel capabilities.
func ChannelCapabilities(mods []config.Module) ([]platform.ChannelCapability, error) {
	caps := make([]platform.ChannelCapability, 0, len(mods))
	for _, m := range mods {
		c := platform.ChannelCapability{Name: m.Name, Channel: m.Channel}
		for _, method := range m.Methods {
			conv, err := bridge.ParseConvention(method.Convention)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", m.Name, method.Name, err)
			}
			c.Methods = append(c.Methods, bridge.MethodSpec{Name: method.Name, Convention: conv})
		}
		caps = append(caps, c)
	}
	return caps, nil
}
