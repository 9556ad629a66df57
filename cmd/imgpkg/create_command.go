package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"imgpkg/internal/config"
	"imgpkg/internal/deps"
	"imgpkg/internal/imagepkg"
	"imgpkg/internal/logging"
	"imgpkg/internal/preflight"
)

func newCreateCommand(ctx *commandContext) *cobra.Command {
	var (
		id   string
		root string
	)

	cmd := &cobra.Command{
		Use:   "create SOURCE",
		Short: "Create a package from an original image",
		Long: `Create copies SOURCE into a new package directory, extracts its embedded
metadata, builds master.tif, preview.jpg and thumb.jpg, and writes meta.xml,
history.txt and the checksum manifest.

The package id defaults to the source file name without its extension.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			packageID := strings.TrimSpace(id)
			if packageID == "" {
				base := filepath.Base(source)
				packageID = strings.TrimSuffix(base, filepath.Ext(base))
			}
			target := cfg.Paths.PackagesDir
			if strings.TrimSpace(root) != "" {
				if target, err = config.ExpandPath(root); err != nil {
					return err
				}
			}

			if cfg.Exif.Enabled {
				if missing := deps.MissingRequired(preflight.CheckSystemDeps(cmd.Context(), cfg)); len(missing) > 0 {
					return fmt.Errorf("%s not available (set exif.enabled = false to create packages without embedded metadata)", missing[0].Name)
				}
			}

			opts, err := ctx.packageOptions()
			if err != nil {
				return err
			}
			runCtx := logging.WithPackageID(cmd.Context(), packageID)
			var pkg *imagepkg.Package
			err = ctx.withLock(packageID, func() error {
				p, createErr := imagepkg.Create(runCtx, target, packageID, source, opts...)
				if p != nil && p.State() != imagepkg.StateUnopened {
					ctx.recordPackage(runCtx, p, nil)
				}
				pkg = p
				return createErr
			})
			if err != nil {
				if pkg != nil {
					return fmt.Errorf("create %s (partial package left at %s): %w", packageID, pkg.Path, err)
				}
				return fmt.Errorf("create %s: %w", packageID, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created package %s at %s\n", pkg.ID, pkg.Path)
			for _, name := range pkg.Files() {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Package id (defaults to the source file name)")
	cmd.Flags().StringVar(&root, "root", "", "Directory to create the package in (defaults to paths.packages_dir)")
	return cmd
}
