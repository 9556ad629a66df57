package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgpkg/internal/imagepkg"
)

func newDerivativesCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "derivatives PACKAGE",
		Short: "Build missing master, preview and thumbnail renditions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPackage(cmd, args[0], mutating, func(p *imagepkg.Package) error {
				wrote, err := p.MakeDerivatives(cmd.Context(), overwrite)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !wrote {
					fmt.Fprintf(out, "%s: renditions already present\n", p.ID)
					return nil
				}
				fmt.Fprintf(out, "%s: renditions updated\n", p.ID)
				for _, a := range []*imagepkg.Artifact{p.Master, p.Preview, p.Thumbnail} {
					if a != nil {
						fmt.Fprintf(out, "  %s  %s\n", a.Digest, a.Name)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Rebuild preview and thumbnail even when present")
	return cmd
}
