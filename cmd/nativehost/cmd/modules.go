package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-drift/nativehost/pkg/modules"
)

func newModulesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "modules",
		Short: "List the capabilities scripts can request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := opts.start(ctx)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			names := append([]string(nil), modules.Names...)
			for _, m := range s.cfg.Modules {
				names = append(names, m.Name)
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				m, err := s.instance.GetModule(name)
				if err != nil {
					fmt.Fprintln(out, errorStyle.Render(fmt.Sprintf("%s: %v", name, err)))
					continue
				}
				fmt.Fprintln(out, renderModule(m))
			}
			return nil
		},
	}
}
