package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"imgpkg/internal/batch"
	"imgpkg/internal/catalog"
	"imgpkg/internal/config"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		workers     int
		derivatives bool
		format      string
	)

	cmd := &cobra.Command{
		Use:   "scan [ROOT]",
		Short: "Validate every package under a directory",
		Long: `Scan opens each subdirectory of ROOT (default: paths.packages_dir) as a
package, optionally builds missing renditions, validates it, and records the
outcome in the catalog. Directories without a manifest are skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			outFormat, err := parseFormat(format)
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			opts, err := ctx.packageOptions()
			if err != nil {
				return err
			}

			root := cfg.Paths.PackagesDir
			if len(args) == 1 {
				if root, err = config.ExpandPath(args[0]); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Batch.Workers
			}
			if !cmd.Flags().Changed("derivatives") {
				derivatives = cfg.Batch.MakeDerivatives
			}

			scanOpts := batch.Options{
				Workers:         workers,
				MakeDerivatives: derivatives,
				LockDir:         cfg.LockDir(),
				PackageOptions:  opts,
			}
			if cfg.Catalog.Enabled {
				cat, err := catalog.Open(cfg)
				if err != nil {
					return err
				}
				defer cat.Close()
				scanOpts.Recorder = cat
			}

			summary, err := batch.New(scanOpts, logger).Run(cmd.Context(), root)
			if err != nil {
				return err
			}
			if done, err := writeStructured(cmd, outFormat, summary); done {
				if err != nil {
					return err
				}
			} else {
				renderScanSummary(cmd, summary)
			}
			if !summary.OK() {
				return fmt.Errorf("scan found %d invalid and %d failed packages",
					summary.Counts[batch.OutcomeInvalid], summary.Counts[batch.OutcomeFailed]+summary.Counts[batch.OutcomeCanceled])
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent packages (defaults to batch.workers)")
	cmd.Flags().BoolVar(&derivatives, "derivatives", false, "Build missing renditions before validating (defaults to batch.make_derivatives)")
	addFormatFlag(cmd, &format)
	return cmd
}

func renderScanSummary(cmd *cobra.Command, summary *batch.Summary) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		detail := r.Error
		if len(r.Problems) > 0 {
			detail = strings.Join(r.Problems, "; ")
		}
		rows = append(rows, []string{
			r.ID,
			string(r.Outcome),
			yesNo(r.Derived),
			r.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Package", "Outcome", "Derived", "Time", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))
	colorize := shouldColorize(out)
	for _, r := range summary.Results {
		if r.Outcome == batch.OutcomeValid || r.Outcome == batch.OutcomeSkipped {
			continue
		}
		fmt.Fprintln(out, renderStatusLine(r.ID, outcomeKind(r.Outcome), string(r.Outcome), colorize))
	}
	fmt.Fprintf(out, "Run %s: %d valid, %d invalid, %d failed, %d skipped\n",
		summary.RunID,
		summary.Counts[batch.OutcomeValid],
		summary.Counts[batch.OutcomeInvalid],
		summary.Counts[batch.OutcomeFailed],
		summary.Counts[batch.OutcomeSkipped],
	)
}
