// Package cmd implements the nativehost CLI commands.
//
// The root command dispatches to run (evaluate a script against a runtime
// instance), apply (apply YAML mutation batches and print the tree) and
// modules (list the capabilities an instance provides).
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/config"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/modules"
	"github.com/go-drift/nativehost/pkg/runtime"
)

// Version information set at build time.
var (
	Version   = "0.1.0-dev"
	BuildTime = "unknown"
)

// SurfaceTag is the root tag of the surface every command renders into.
const SurfaceTag int64 = 1

type options struct {
	dir string
}

// Execute runs the CLI with os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "nativehost",
		Short:         "Host a script-driven native component tree",
		Long:          "nativehost runs scripts against a runtime instance, applies mutation batches to its component tree and exposes native capabilities to scripts.",
		Version:       fmt.Sprintf("%s (built %s)", Version, BuildTime),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.dir, "dir", "", "project directory holding nativehost.yaml (default: nearest parent with nativehost.yaml or go.mod)")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newApplyCommand(opts))
	root.AddCommand(newModulesCommand(opts))
	return root
}

func (o *options) resolve() (*config.Resolved, error) {
	dir := o.dir
	if dir == "" {
		found, err := config.FindProjectRoot()
		if err != nil {
			if dir, err = os.Getwd(); err != nil {
				return nil, err
			}
		} else {
			dir = found
		}
	}
	return config.Resolve(dir)
}

// session is a configured runtime instance.
type session struct {
	cfg      *config.Resolved
	logger   *zap.Logger
	registry *runtime.InstanceRegistry
	instance *runtime.Instance
}

func (o *options) start(ctx context.Context) (*session, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	errors.SetLogger(logger)

	registry := runtime.NewInstanceRegistry(cfg.IDPrefix)
	inst, err := registry.CreateInstance("", runtime.Options{
		TickInterval:   cfg.TickInterval,
		EnableDebugger: cfg.EnableDebugger,
		Packages:       modules.Builtin(cfg, logger),
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, registry: registry, instance: inst}, nil
}

// createSurface mounts the empty root at SurfaceTag.
func (s *session) createSurface(ctx context.Context) error {
	_, err := s.instance.CreateSurface(ctx, SurfaceTag, s.cfg.AppName, nil)
	return err
}

// startSurface lays the root out on a phone-sized screen and runs the app.
func (s *session) startSurface(ctx context.Context) error {
	return s.instance.StartSurface(ctx, SurfaceTag, runtime.LayoutConstraints{MaxWidth: 390, MaxHeight: 844})
}

func (s *session) close(ctx context.Context) {
	if err := s.registry.DestroyAll(ctx); err != nil {
		s.logger.Warn("teardown failed", zap.Error(err))
	}
	_ = s.logger.Sync()
}
