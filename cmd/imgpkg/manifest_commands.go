package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgpkg/internal/imagepkg"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Inspect or rebuild the checksum manifest",
	}
	manifestCmd.AddCommand(newManifestListCommand(ctx))
	manifestCmd.AddCommand(newManifestRegenerateCommand(ctx))
	return manifestCmd
}

func newManifestListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list PACKAGE",
		Short: "Print the manifest in digest-name form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPackage(cmd, args[0], readOnly, func(p *imagepkg.Package) error {
				out := cmd.OutOrStdout()
				entries := p.Ledger().Snapshot()
				for _, name := range p.Files() {
					fmt.Fprintf(out, "%s  %s\n", entries[name], name)
				}
				return nil
			})
		},
	}
}

func newManifestRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate PACKAGE",
		Short: "Rebuild the manifest from the files on disk",
		Long: `Regenerate re-hashes every file in the package and replaces the manifest.
Use it only when the files on disk are known to be good; it accepts any
corruption present as the new baseline.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withPackage(cmd, args[0], mutating, func(p *imagepkg.Package) error {
				if err := p.RepairManifest(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: manifest regenerated (%d files)\n", p.ID, p.Ledger().Len())
				return nil
			})
		},
	}
}
