// Package batch opens and validates every package under a directory with a
// bounded worker pool, optionally building missing renditions, and records
// the outcome in the catalog.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"imgpkg/internal/catalog"
	"imgpkg/internal/imagepkg"
	"imgpkg/internal/logging"
	"imgpkg/internal/metadata"
	"imgpkg/internal/pkglock"
)

// Outcome classifies one directory in a scan.
type Outcome string

const (
	OutcomeValid    Outcome = "valid"
	OutcomeInvalid  Outcome = "invalid"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeCanceled Outcome = "canceled"
)

// Recorder stores scan results. *catalog.Catalog satisfies it.
type Recorder interface {
	Upsert(ctx context.Context, r catalog.Record) error
	RecordValidation(ctx context.Context, v catalog.Validation) error
}

// Options configures a Scanner.
type Options struct {
	// Workers bounds concurrent packages; values below 1 mean one.
	Workers int
	// MakeDerivatives builds missing renditions before validating.
	MakeDerivatives bool
	// LockDir holds per-package lock files. Empty disables locking.
	LockDir string
	// Recorder receives one Upsert and one RecordValidation per package.
	Recorder Recorder
	// PackageOptions are passed to imagepkg.OpenBestEffort.
	PackageOptions []imagepkg.Option
}

// Result is the outcome for one directory.
type Result struct {
	ID       string        `json:"id" yaml:"id"`
	Path     string        `json:"path" yaml:"path"`
	Outcome  Outcome       `json:"outcome" yaml:"outcome"`
	Derived  bool          `json:"derived,omitempty" yaml:"derived,omitempty"`
	Problems []string      `json:"problems,omitempty" yaml:"problems,omitempty"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Summary aggregates a scan.
type Summary struct {
	RunID   string          `json:"run_id" yaml:"run_id"`
	Root    string          `json:"root" yaml:"root"`
	Results []Result        `json:"results" yaml:"results"`
	Counts  map[Outcome]int `json:"counts" yaml:"counts"`
}

// OK reports whether every scanned package validated.
func (s *Summary) OK() bool {
	return s.Counts[OutcomeInvalid] == 0 && s.Counts[OutcomeFailed] == 0 && s.Counts[OutcomeCanceled] == 0
}

// Scanner runs batch scans.
type Scanner struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Scanner.
func New(opts Options, logger *slog.Logger) *Scanner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Scanner{opts: opts, logger: logging.NewComponentLogger(logger, "batch")}
}

// Run scans every immediate subdirectory of root. Per-package failures are
// reported in the summary; only an unreadable root is an error.
func (s *Scanner) Run(ctx context.Context, root string) (*Summary, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read packages root: %w", err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			dirs = append(dirs, entry.Name())
		}
	}

	summary := &Summary{
		RunID:   catalog.NewRunID(),
		Root:    root,
		Results: make([]Result, len(dirs)),
		Counts:  make(map[Outcome]int),
	}
	ctx = logging.WithCorrelationID(ctx, summary.RunID)
	logger := logging.WithContext(ctx, s.logger)
	logger.Info("scan started",
		logging.String("root", root),
		logging.Int("directories", len(dirs)),
		logging.Int("workers", s.opts.Workers),
		logging.String(logging.FieldEventType, "scan_started"),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, id := range dirs {
		g.Go(func() error {
			summary.Results[i] = s.scanOne(gctx, summary.RunID, root, id)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range summary.Results {
		summary.Counts[r.Outcome]++
	}
	logger.Info("scan finished",
		logging.Int("valid", summary.Counts[OutcomeValid]),
		logging.Int("invalid", summary.Counts[OutcomeInvalid]),
		logging.Int("failed", summary.Counts[OutcomeFailed]),
		logging.Int("skipped", summary.Counts[OutcomeSkipped]),
		logging.String(logging.FieldEventType, "scan_finished"),
	)
	return summary, nil
}

func (s *Scanner) scanOne(ctx context.Context, runID, root, id string) Result {
	start := time.Now()
	res := Result{ID: id, Path: filepath.Join(root, id)}

	ctx = logging.WithPackageID(ctx, id)
	logger := logging.WithContext(ctx, s.logger)
	fail := func(outcome Outcome, err error) Result {
		res.Outcome = outcome
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res
	}

	if err := ctx.Err(); err != nil {
		return fail(OutcomeCanceled, err)
	}
	if s.opts.LockDir != "" {
		lock, err := pkglock.Acquire(s.opts.LockDir, id)
		if errors.Is(err, pkglock.ErrLocked) {
			logger.Info("package locked; skipping", logging.String(logging.FieldEventType, "package_locked"))
			return fail(OutcomeSkipped, err)
		}
		if err != nil {
			return fail(OutcomeFailed, err)
		}
		defer func() { _ = lock.Release() }()
	}

	opts := append(slices.Clone(s.opts.PackageOptions), imagepkg.WithLogger(logger))
	p, err := imagepkg.OpenBestEffort(ctx, res.Path, opts...)
	switch {
	case errors.Is(err, imagepkg.ErrNotAPackage):
		logger.Debug("not a package; skipping")
		return fail(OutcomeSkipped, err)
	case err != nil:
		logging.WarnWithContext(logger, "package could not be opened", "package_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the package directory; manifest regenerate can rebuild a damaged ledger"),
		)
		return fail(OutcomeFailed, err)
	}

	if s.opts.MakeDerivatives {
		derived, err := p.MakeDerivatives(ctx, false)
		res.Derived = derived
		if err != nil {
			logging.WarnWithContext(logger, "rendition build failed", "derivatives_failed", logging.Error(err))
			res.Error = err.Error()
		}
	}

	report := p.Validate(ctx)
	res.Problems = report.Messages()
	res.Outcome = OutcomeInvalid
	if report.Valid {
		res.Outcome = OutcomeValid
	}
	if res.Error != "" {
		res.Outcome = OutcomeFailed
	}

	if s.opts.Recorder != nil {
		if err := s.record(ctx, runID, p, report); err != nil {
			logging.WarnWithContext(logger, "catalog update failed", "catalog_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "catalog does not reflect this validation"),
			)
		}
	}
	res.Duration = time.Since(start)
	return res
}

func (s *Scanner) record(ctx context.Context, runID string, p *imagepkg.Package, report imagepkg.Report) error {
	status := ""
	if doc := p.Metadata(); doc != nil {
		status = doc.GetString(metadata.KeyStatus)
	}
	if err := s.opts.Recorder.Upsert(ctx, RecordOf(p, status)); err != nil {
		return err
	}
	return s.opts.Recorder.RecordValidation(ctx, catalog.Validation{
		RunID:     runID,
		PackageID: p.ID,
		Valid:     report.Valid,
		Problems:  report.Messages(),
	})
}

// RecordOf builds the catalog row for an opened package.
func RecordOf(p *imagepkg.Package, status string) catalog.Record {
	return catalog.Record{
		ID:           p.ID,
		Path:         p.Path,
		Original:     p.Original,
		HasMaster:    p.Master != nil,
		HasPreview:   p.Preview != nil,
		HasThumbnail: p.Thumbnail != nil,
		Status:       status,
	}
}
