package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"imgpkg/internal/config"
	"imgpkg/internal/digest"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantState := filepath.Join(tempHome, ".local", "share", "imgpkg")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.Paths.PackagesDir != filepath.Join(tempHome, "images", "packages") {
		t.Fatalf("unexpected packages dir: %q", cfg.Paths.PackagesDir)
	}
	if cfg.DigestAlgorithm() != digest.SHA1 {
		t.Fatalf("expected sha1 default, got %s", cfg.DigestAlgorithm())
	}
	if cfg.Imaging.TargetProfile != config.BuiltinProfile {
		t.Fatalf("unexpected target profile %q", cfg.Imaging.TargetProfile)
	}
	if cfg.Imaging.PreviewWidth != 800 || cfg.Imaging.PreviewHeight != 600 {
		t.Fatalf("unexpected preview box %dx%d", cfg.Imaging.PreviewWidth, cfg.Imaging.PreviewHeight)
	}
	if cfg.HistoryLocation().String() != "America/New_York" {
		t.Fatalf("unexpected history zone %s", cfg.HistoryLocation())
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.LogDir, cfg.LockDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	configPath := filepath.Join(t.TempDir(), "custom.toml")
	content := `
[paths]
packages_dir = "~/archive"

[fixity]
algorithm = "BLAKE3"

[imaging]
preview_width = 1024
target_profile = "~/profiles/adobe.icc"

[logging]
format = "JSON"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.PackagesDir != filepath.Join(tempHome, "archive") {
		t.Fatalf("unexpected packages dir %q", cfg.Paths.PackagesDir)
	}
	if cfg.DigestAlgorithm() != digest.BLAKE3 {
		t.Fatalf("unexpected algorithm %s", cfg.DigestAlgorithm())
	}
	if cfg.Imaging.PreviewWidth != 1024 || cfg.Imaging.PreviewHeight != 600 {
		t.Fatalf("unexpected preview box %dx%d", cfg.Imaging.PreviewWidth, cfg.Imaging.PreviewHeight)
	}
	if cfg.Imaging.TargetProfile != filepath.Join(tempHome, "profiles", "adobe.icc") {
		t.Fatalf("unexpected target profile %q", cfg.Imaging.TargetProfile)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("unexpected log format %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "typo.toml")
	if err := os.WriteFile(configPath, []byte("[imaging]\npreveiw_width = 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestEnvVarFillsPhotoHostCredentials(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMGPKG_PHOTOHOST_KEY", "env-key")
	t.Setenv("IMGPKG_PHOTOHOST_SECRET", "env-secret")
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[photohost]\nenabled = true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PhotoHost.Key != "env-key" || cfg.PhotoHost.Secret != "env-secret" {
		t.Fatalf("expected env credentials, got %q/%q", cfg.PhotoHost.Key, cfg.PhotoHost.Secret)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[photohost]") {
		t.Fatalf("sample config missing photohost section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Imaging.JPEGQuality != 80 {
		t.Fatalf("sample jpeg quality = %d", cfg.Imaging.JPEGQuality)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"algorithm", func(c *config.Config) { c.Fixity.Algorithm = "md5" }, "fixity.algorithm"},
		{"quality", func(c *config.Config) { c.Imaging.JPEGQuality = 101 }, "jpeg_quality"},
		{"box", func(c *config.Config) { c.Imaging.ThumbnailWidth = -1 }, "thumbnail_width"},
		{"preshrink", func(c *config.Config) { c.Imaging.PreshrinkFactor = 1 }, "preshrink_factor"},
		{"timezone", func(c *config.Config) { c.History.Timezone = "Mars/Olympus" }, "history.timezone"},
		{"half credentials", func(c *config.Config) { c.PhotoHost.Key = "only-key" }, "photohost.key"},
		{"half credential files", func(c *config.Config) { c.PhotoHost.SecretPath = "/tmp/secret" }, "photohost.key_path"},
		{"log level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
