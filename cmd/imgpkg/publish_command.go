package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgpkg/internal/imagepkg"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish PACKAGE",
		Short: "Upload the master to the photo host",
		Long: `Publish uploads master.tif to the configured photo host and stores the
returned URL as published-url. The package must have status "ready" and
isaw-publish-cleared "yes".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPackage(cmd, args[0], mutStrict, func(p *imagepkg.Package) error {
				report := p.Validate(cmd.Context())
				if !report.Valid {
					return fmt.Errorf("%s fails validation; run validate for details", p.ID)
				}
				url, err := p.Publish(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: published to %s\n", p.ID, url)
				return nil
			})
		},
	}
}
