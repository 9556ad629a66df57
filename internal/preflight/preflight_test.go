package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgpkg/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckProfile(t *testing.T) {
	if r := CheckProfile("target", config.BuiltinProfile, true); !r.Passed {
		t.Fatalf("builtin profile failed: %s", r.Detail)
	}
	if r := CheckProfile("target", filepath.Join(t.TempDir(), "missing.icc"), true); r.Passed {
		t.Fatal("expected missing profile to fail")
	}
	garbage := filepath.Join(t.TempDir(), "garbage.icc")
	if err := os.WriteFile(garbage, []byte("not a profile"), 0o644); err != nil {
		t.Fatal(err)
	}
	if r := CheckProfile("input", garbage, false); r.Passed {
		t.Fatal("expected unparseable profile to fail")
	}
}

func TestCheckPhotoHostCredentials(t *testing.T) {
	if r := CheckPhotoHostCredentials(config.PhotoHost{}); r.Passed {
		t.Fatal("expected missing credentials to fail")
	}
	if r := CheckPhotoHostCredentials(config.PhotoHost{Key: "k"}); r.Passed || !strings.Contains(r.Detail, "together") {
		t.Fatalf("expected mixed credentials to fail, got %+v", r)
	}
	if r := CheckPhotoHostCredentials(config.PhotoHost{Key: "k", Secret: "s"}); !r.Passed {
		t.Fatalf("expected explicit credentials to pass, got %s", r.Detail)
	}
}

func TestRunAll(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.PackagesDir = filepath.Join(base, "packages")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Exif.Binary = "clearly-not-present-exiftool"
	cfg.PhotoHost.Enabled = true
	cfg.PhotoHost.DryRun = false
	if err := os.MkdirAll(cfg.Paths.PackagesDir, 0o755); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), &cfg)
	byName := make(map[string]Result, len(results))
	for _, r := range results {
		byName[r.Name] = r
	}
	if !byName["Packages directory"].Passed {
		t.Fatalf("packages dir: %s", byName["Packages directory"].Detail)
	}
	if byName["State directory"].Passed {
		t.Fatal("missing state dir passed")
	}
	if !byName["Target profile"].Passed || !byName["Default input profile"].Passed {
		t.Fatal("builtin profiles failed")
	}
	if byName["ExifTool"].Passed {
		t.Fatal("missing exiftool passed")
	}
	if _, ok := byName["Photo host credentials"]; !ok {
		t.Fatal("credentials not checked")
	}
	if got := len(Failed(results)); got != 3 {
		t.Fatalf("expected 3 failures, got %d: %+v", got, Failed(results))
	}
}

func TestRunAllSkipsDisabledFeatures(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.PackagesDir = t.TempDir()
	cfg.Paths.StateDir = t.TempDir()
	cfg.Exif.Enabled = false

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %+v", results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}
