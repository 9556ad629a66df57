package preflight

import (
	"context"

	"imgpkg/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name" yaml:"name"`
	Passed bool   `json:"passed" yaml:"passed"`
	Detail string `json:"detail" yaml:"detail"`
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	// Packages and state directories (always checked)
	results = append(results, CheckDirectoryAccess("Packages directory", cfg.Paths.PackagesDir))
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	results = append(results, CheckProfile("Target profile", cfg.Imaging.TargetProfile, true))
	results = append(results, CheckProfile("Default input profile", cfg.Imaging.DefaultInputProfile, false))

	if cfg.Exif.Enabled {
		for _, status := range CheckSystemDeps(ctx, cfg) {
			results = append(results, fromStatus(status))
		}
	}

	if cfg.PhotoHost.Enabled && !cfg.PhotoHost.DryRun {
		results = append(results, CheckPhotoHostCredentials(cfg.PhotoHost))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
