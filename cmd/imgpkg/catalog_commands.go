package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imgpkg/internal/catalog"
)

var errCatalogDisabled = errors.New("catalog is disabled (set catalog.enabled = true)")

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Query the package catalog",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	catalogCmd.AddCommand(newCatalogHistoryCommand(ctx))
	catalogCmd.AddCommand(newCatalogForgetCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	var (
		invalid bool
		format  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalogued packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			var records []*catalog.Record
			enabled, err := ctx.withCatalog(func(cat *catalog.Catalog) error {
				list, listErr := cat.List(cmd.Context(), invalid)
				records = list
				return listErr
			})
			if err != nil {
				return err
			}
			if !enabled {
				return errCatalogDisabled
			}
			if done, err := writeStructured(cmd, outFormat, records); done {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No packages catalogued")
				return nil
			}
			rows := make([][]string, 0, len(records))
			for _, r := range records {
				rows = append(rows, []string{
					r.ID,
					r.Status,
					renditionFlags(r),
					lastValidText(r),
					r.UpdatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Package", "Status", "Renditions", "Valid", "Updated"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().BoolVar(&invalid, "invalid", false, "Only list packages whose last validation failed")
	addFormatFlag(cmd, &format)
	return cmd
}

func renditionFlags(r *catalog.Record) string {
	flag := func(present bool, c byte) byte {
		if present {
			return c
		}
		return '-'
	}
	return string([]byte{flag(r.HasMaster, 'M'), flag(r.HasPreview, 'P'), flag(r.HasThumbnail, 'T')})
}

func lastValidText(r *catalog.Record) string {
	if r.LastValid == nil {
		return "never checked"
	}
	text := "no"
	if *r.LastValid {
		text = "yes"
	}
	if r.LastValidatedAt != nil {
		text += " (" + r.LastValidatedAt.Local().Format(time.DateTime) + ")"
	}
	return text
}

func newCatalogHistoryCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "history ID",
		Short: "Show recorded validation runs for a package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			var runs []catalog.Validation
			enabled, err := ctx.withCatalog(func(cat *catalog.Catalog) error {
				if _, err := cat.Get(cmd.Context(), args[0]); err != nil {
					return err
				}
				list, listErr := cat.Validations(cmd.Context(), args[0])
				runs = list
				return listErr
			})
			if err != nil {
				return err
			}
			if !enabled {
				return errCatalogDisabled
			}
			if done, err := writeStructured(cmd, outFormat, runs); done {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, run := range runs {
				label := run.CreatedAt.Local().Format(time.DateTime)
				if run.Valid {
					fmt.Fprintln(out, renderStatusLine(label, statusOK, "run "+run.RunID, colorize))
					continue
				}
				fmt.Fprintln(out, renderStatusLine(label, statusError, "run "+run.RunID, colorize))
				for _, problem := range run.Problems {
					fmt.Fprintf(out, "%s  - %s\n", statusIndent, problem)
				}
			}
			return nil
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

func newCatalogForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget ID",
		Short: "Remove a package and its validation runs from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := ctx.withCatalog(func(cat *catalog.Catalog) error {
				return cat.Remove(cmd.Context(), args[0])
			})
			if err != nil {
				return err
			}
			if !enabled {
				return errCatalogDisabled
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the catalog\n", args[0])
			return nil
		},
	}
}
