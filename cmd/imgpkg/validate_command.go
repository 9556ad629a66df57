package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"imgpkg/internal/imagepkg"
	"imgpkg/internal/logging"
)

type validationView struct {
	Package  string   `json:"package" yaml:"package"`
	Valid    bool     `json:"valid" yaml:"valid"`
	Checked  int      `json:"checked" yaml:"checked"`
	Problems []string `json:"problems,omitempty" yaml:"problems,omitempty"`
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "validate PACKAGE...",
		Short: "Verify package files against the checksum manifest",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			views := make([]validationView, 0, len(args))
			for _, arg := range args {
				view := validationView{Package: arg}
				err := ctx.withPackage(cmd, arg, checking, func(p *imagepkg.Package) error {
					report := p.Validate(cmd.Context())
					ctx.recordPackage(logging.WithPackageID(cmd.Context(), p.ID), p, &report)
					view.Valid = report.Valid
					view.Checked = report.Checked
					view.Problems = report.Messages()
					return nil
				})
				if err != nil {
					view.Problems = []string{err.Error()}
				}
				views = append(views, view)
			}

			failed := 0
			for _, v := range views {
				if !v.Valid {
					failed++
				}
			}
			if done, err := writeStructured(cmd, outFormat, views); done {
				if err != nil {
					return err
				}
			} else {
				renderValidation(cmd, views)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d packages failed validation", failed, len(views))
			}
			return nil
		},
	}

	addFormatFlag(cmd, &format)
	return cmd
}

func renderValidation(cmd *cobra.Command, views []validationView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, v := range views {
		if v.Valid {
			fmt.Fprintln(out, renderStatusLine(v.Package, statusOK, fmt.Sprintf("%d files verified", v.Checked), colorize))
			continue
		}
		fmt.Fprintln(out, renderStatusLine(v.Package, statusError, fmt.Sprintf("%d problems", len(v.Problems)), colorize))
		for _, problem := range v.Problems {
			fmt.Fprintf(out, "%s  - %s\n", statusIndent, problem)
		}
	}
}
