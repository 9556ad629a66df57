package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"

	"imgpkg/internal/digest"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	PackagesDir string `toml:"packages_dir"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
}

// Fixity selects the digest algorithm new package ledgers record.
type Fixity struct {
	Algorithm string `toml:"algorithm"`
}

// Imaging contains derivative generation settings.
type Imaging struct {
	// TargetProfile is an ICC file path, or "builtin:srgb".
	TargetProfile string `toml:"target_profile"`
	// DefaultInputProfile is assumed for originals without an embedded profile.
	DefaultInputProfile string `toml:"default_input_profile"`
	PreviewWidth        int    `toml:"preview_width"`
	PreviewHeight       int    `toml:"preview_height"`
	ThumbnailWidth      int    `toml:"thumbnail_width"`
	ThumbnailHeight     int    `toml:"thumbnail_height"`
	JPEGQuality         int    `toml:"jpeg_quality"`
	// PreshrinkFactor is how many times larger than the box a source must be
	// before a fast nearest-neighbour pass runs ahead of the final resample.
	PreshrinkFactor int `toml:"preshrink_factor"`
}

// Exif configures header fact extraction.
type Exif struct {
	Enabled        bool   `toml:"enabled"`
	Binary         string `toml:"binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// History configures package history and change records.
type History struct {
	Timezone string `toml:"timezone"`
	Agent    string `toml:"agent"`
}

// Batch configures package scans.
type Batch struct {
	Workers         int  `toml:"workers"`
	MakeDerivatives bool `toml:"make_derivatives"`
}

// Catalog toggles the SQLite record of packages and validation runs.
type Catalog struct {
	Enabled bool `toml:"enabled"`
}

// PhotoHost configures the optional remote publication capability.
type PhotoHost struct {
	Enabled    bool   `toml:"enabled"`
	DryRun     bool   `toml:"dry_run"`
	KeyPath    string `toml:"key_path"`
	SecretPath string `toml:"secret_path"`
	Key        string `toml:"key"`
	Secret     string `toml:"secret"`
}

// Logging configures log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for imgpkg.
//
// Configuration sections by subsystem:
//   - Paths: package root, state and log directories
//   - Fixity: manifest digest algorithm
//   - Imaging: color profiles, rendition sizes and JPEG quality
//   - Exif: exiftool invocation
//   - History: timestamp zone and change-record agent
//   - Batch: scan worker pool
//   - Catalog: SQLite package catalog
//   - PhotoHost: remote publication credentials
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Fixity    Fixity    `toml:"fixity"`
	Imaging   Imaging   `toml:"imaging"`
	Exif      Exif      `toml:"exif"`
	History   History   `toml:"history"`
	Batch     Batch     `toml:"batch"`
	Catalog   Catalog   `toml:"catalog"`
	PhotoHost PhotoHost `toml:"photohost"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. The packages
// directory is created on a best-effort basis so commands that only read
// packages elsewhere still run when the archive volume is offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.PackagesDir) != "" {
		_ = os.MkdirAll(c.Paths.PackagesDir, 0o755)
	}
	return nil
}

// DigestAlgorithm returns the configured fixity algorithm.
func (c *Config) DigestAlgorithm() digest.Algorithm {
	alg, err := digest.Parse(c.Fixity.Algorithm)
	if err != nil {
		return digest.Default
	}
	return alg
}

// HistoryLocation returns the zone history timestamps are written in.
func (c *Config) HistoryLocation() *time.Location {
	loc, err := time.LoadLocation(c.History.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// CatalogPath returns the SQLite catalog location.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.Paths.StateDir, "catalog.db")
}

// LockDir returns the directory holding per-package lock files.
func (c *Config) LockDir() string {
	return filepath.Join(c.Paths.StateDir, "locks")
}

// ExifTimeout returns the per-file extraction timeout.
func (c *Config) ExifTimeout() time.Duration {
	return time.Duration(c.Exif.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
