package imagepkg

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"imgpkg/internal/logging"
)

// Report is the outcome of Validate. Problems holds every issue found, each
// one of ErrNotOpened, *MissingEntryError, *MissingFileError,
// *ChecksumMismatch, or an I/O error.
type Report struct {
	Valid    bool    `json:"valid" yaml:"valid"`
	Checked  int     `json:"checked" yaml:"checked"`
	Problems []error `json:"-" yaml:"-"`
}

// Messages returns the problem texts in report order.
func (r Report) Messages() []string {
	out := make([]string, 0, len(r.Problems))
	for _, err := range r.Problems {
		out = append(out, err.Error())
	}
	return out
}

// Mismatches returns the checksum mismatches in the report.
func (r Report) Mismatches() []*ChecksumMismatch {
	var out []*ChecksumMismatch
	for _, err := range r.Problems {
		var m *ChecksumMismatch
		if errors.As(err, &m) {
			out = append(out, m)
		}
	}
	return out
}

// Validate checks that the master and original are registered and that every
// ledger entry exists with a matching digest. It examines every entry before
// returning and logs each problem.
func (p *Package) Validate(ctx context.Context) Report {
	var report Report
	if err := p.opened(); err != nil {
		report.Problems = append(report.Problems, err)
		if p != nil && p.logger != nil {
			p.problem(err)
		}
		return report
	}

	for _, name := range []string{p.Original, MasterName} {
		if name == "" {
			report.Problems = append(report.Problems, &MissingEntryError{Name: "original"})
			continue
		}
		if !p.ledger.Has(name) {
			report.Problems = append(report.Problems, &MissingEntryError{Name: name})
		}
	}

	alg := p.ledger.Algorithm()
	entries := p.ledger.Snapshot()
	for _, name := range p.ledger.Names() {
		want := entries[name]
		if err := ctx.Err(); err != nil {
			report.Problems = append(report.Problems, err)
			break
		}
		report.Checked++
		got, err := alg.File(p.file(name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			report.Problems = append(report.Problems, &MissingFileError{Name: name})
		case err != nil:
			report.Problems = append(report.Problems, err)
		case got != want:
			report.Problems = append(report.Problems, &ChecksumMismatch{Name: name, Expected: want, Actual: got})
		}
	}

	for _, err := range report.Problems {
		p.problem(err)
	}
	report.Valid = len(report.Problems) == 0
	valid := report.Valid
	p.lastValid = &valid
	p.state = StateValidated
	p.logger.Info("package validated",
		logging.Bool("valid", report.Valid),
		logging.Int("checked", report.Checked),
		logging.Int("problems", len(report.Problems)),
		logging.String(logging.FieldEventType, "package_validated"),
	)
	return report
}

func (p *Package) problem(err error) {
	var (
		event = "validation_problem"
		hint  = "run validate again after restoring the file from backup"
	)
	var mismatch *ChecksumMismatch
	var missing *MissingFileError
	var entry *MissingEntryError
	switch {
	case errors.Is(err, ErrNotOpened):
		event, hint = "package_not_opened", "open the package before validating"
	case errors.As(err, &mismatch):
		event = "checksum_mismatch"
	case errors.As(err, &missing):
		event = "file_missing"
	case errors.As(err, &entry):
		event, hint = "manifest_entry_missing", "run manifest regenerate if the file is present and trusted"
	}
	logging.WarnWithContext(p.logger, "validation problem", event,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
		logging.String(logging.FieldImpact, "package fails validation"),
	)
}

// Exists reports whether path holds a package ledger.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, _, err = findLedger(path, "")
	return err == nil
}
