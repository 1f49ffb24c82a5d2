package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-drift/nativehost/pkg/mounting"
)

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply batch.yaml [batch.yaml...]",
		Short: "Apply YAML mutation batches and print the component tree",
		Long: `Applies each file as one mutation batch, in order, to the surface rooted at
tag 1, then prints the resulting component tree. Mutations that cannot be
applied are listed and skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batches := make([]mounting.Batch, 0, len(args))
			for _, path := range args {
				data, err := readSource(cmd, path)
				if err != nil {
					return err
				}
				batch, err := mounting.DecodeBatchYAML(data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				batches = append(batches, batch)
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
			if err := s.startSurface(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for n, batch := range batches {
				report, err := s.instance.ApplyMutations(ctx, SurfaceTag, batch)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderReport(args[n], report))
			}
			fmt.Fprintln(out, renderTree(s.instance.Applier().Registry(), SurfaceTag))
			return nil
		},
	}
}
