// Package logger provides the Logger capability, which lets scripts write
// to the host's structured log.
package logger

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Name is the capability name.
const Name = "Logger"

// Package returns the package providing Logger. Messages go to l.
func Package(l *zap.Logger) bridge.Package {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.Named("script")
	return bridge.PackageFunc{
		PackageName: "logger",
		Factory: func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
			if name != Name {
				return nil
			}
			return bridge.NewModule(name, invoker,
				bridge.Method{
					Name:       "log",
					Convention: bridge.ConventionVoid,
					Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
						return nil, write(l, args)
					},
				},
				bridge.Method{
					Name:       "isEnabled",
					Convention: bridge.ConventionSync,
					Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
						s, err := args.String(0)
						if err != nil {
							return nil, err
						}
						level, err := zapcore.ParseLevel(s)
						if err != nil {
							return nil, err
						}
						return l.Core().Enabled(level), nil
					},
				},
			)
		},
	}
}

// write handles log(level, message[, fields]).
func write(l *zap.Logger, args bridge.Args) error {
	levelName, err := args.String(0)
	if err != nil {
		return err
	}
	level, err := zapcore.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	message, err := args.String(1)
	if err != nil {
		return err
	}

	var fields []zap.Field
	if args.Len() > 2 {
		obj, err := args.Object(2)
		if err != nil {
			return err
		}
		obj.Range(func(k string, v dynamic.Value) bool {
			fields = append(fields, zap.Any(k, dynamic.ToNative(v)))
			return true
		})
	}
	if ce := l.Check(level, message); ce != nil {
		ce.Write(fields...)
	}
	return nil
}
