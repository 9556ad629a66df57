package preflight

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"imgpkg/internal/config"
	"imgpkg/internal/deps"
	"imgpkg/internal/imaging"
	"imgpkg/internal/imaging/icc"
	"imgpkg/internal/photohost"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckProfile verifies that ref resolves to an ICC profile the converter can
// read from, or write to when target is set.
func CheckProfile(name, ref string, target bool) Result {
	profile, err := imaging.ResolveProfile(ref)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", ref, err)}
	}
	src, dst := profile, icc.SRGB()
	if target {
		src, dst = icc.SRGB(), profile
	}
	if _, err := icc.NewTransform(src, dst); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", profile, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", profile, profile.ColorSpace)}
}

// CheckSystemDeps evaluates the external programs the config needs. Both the
// doctor command and the create path use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "ExifTool",
			Command:     cfg.Exif.Binary,
			Description: "Required for embedded metadata extraction",
			Optional:    !cfg.Exif.Enabled,
			VersionArgs: []string{"-ver"},
		},
	}
	return deps.CheckBinaries(ctx, requirements)
}

// CheckPhotoHostCredentials verifies that publishing credentials resolve.
func CheckPhotoHostCredentials(cfg config.PhotoHost) Result {
	const name = "Photo host credentials"

	if _, err := photohost.LoadCredentials(cfg); err != nil {
		if errors.Is(err, photohost.ErrNoCredentials) {
			return Result{Name: name, Detail: "no key or secret configured"}
		}
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "key and secret loaded"}
}

func fromStatus(s deps.Status) Result {
	r := Result{Name: s.Name, Passed: s.Available || s.Optional}
	switch {
	case s.Available && s.Version != "":
		r.Detail = fmt.Sprintf("%s (version %s)", s.Command, s.Version)
	case s.Available:
		r.Detail = s.Command
	default:
		r.Detail = s.Detail
	}
	return r
}
