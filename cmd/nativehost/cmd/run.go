package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

func newRunCommand(opts *options) *cobra.Command {
	var (
		source   string
		wait     time.Duration
		showTree bool
	)
	c := &cobra.Command{
		Use:   "run [script.rsr]",
		Short: "Evaluate a Risor script against a runtime instance",
		Long: `Evaluates a script on the script thread of a fresh runtime instance and
prints its result as JSON. The script sees getCapability, applyMutations and
registerCallableModule. The surface root exists at tag 1 while the script
runs; it is started afterwards, so a script-registered AppRegistry receives
runApplication.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				if len(args) == 0 {
					return fmt.Errorf("provide a script file or --eval")
				}
				data, err := readSource(cmd, args[0])
				if err != nil {
					return err
				}
				source = string(data)
			}

			ctx := cmd.Context()
			s, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			if err := s.createSurface(ctx); err != nil {
				return err
			}
			result, err := s.instance.Eval(ctx, source)
			if err != nil {
				return err
			}
			if err := s.startSurface(ctx); err != nil {
				return err
			}
			if wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
				}
			}

			if dynamic.IsUndefined(result) {
				result = nil
			}
			out, err := dynamic.DefaultCodec.Encode(result)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			if showTree {
				fmt.Fprintln(cmd.OutOrStdout(), renderTree(s.instance.Applier().Registry(), SurfaceTag))
			}
			return nil
		},
	}
	c.Flags().StringVarP(&source, "eval", "e", "", "script source to evaluate instead of a file")
	c.Flags().DurationVar(&wait, "wait", 0, "keep the instance alive this long after evaluation (timers, promises)")
	c.Flags().BoolVar(&showTree, "tree", false, "print the component tree afterwards")
	return c
}

func readSource(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	return data, nil
}
