package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"imgpkg/internal/batch"
	"imgpkg/internal/catalog"
	"imgpkg/internal/config"
	"imgpkg/internal/imagepkg"
	"imgpkg/internal/logging"
	"imgpkg/internal/metadata"
	"imgpkg/internal/pkglock"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) packageOptions() ([]imagepkg.Option, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	return imagepkg.OptionsFromConfig(cfg, logger)
}

// resolvePackagePath maps a package argument to a directory. Bare ids are
// looked up under the packages directory; anything path-like is used as is.
func (c *commandContext) resolvePackagePath(arg string) (string, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", errors.New("package id or path is required")
	}
	if strings.ContainsRune(arg, os.PathSeparator) || arg == "." || arg == ".." || strings.HasPrefix(arg, "~") {
		expanded, err := config.ExpandPath(arg)
		if err != nil {
			return "", err
		}
		return filepath.Abs(expanded)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg.Paths.PackagesDir, arg), nil
}

// withLock runs fn while holding the package lock for id.
func (c *commandContext) withLock(id string, fn func() error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	lock, err := pkglock.Acquire(cfg.LockDir(), id)
	if err != nil {
		if errors.Is(err, pkglock.ErrLocked) {
			return fmt.Errorf("package %s is busy in another imgpkg process: %w", id, err)
		}
		return err
	}
	defer func() { _ = lock.Release() }()
	return fn()
}

type openMode struct {
	strict bool
	lock   bool
	record bool
}

var (
	readOnly  = openMode{}
	checking  = openMode{lock: true}
	mutating  = openMode{lock: true, record: true}
	mutStrict = openMode{strict: true, lock: true, record: true}
)

// withPackage opens the package named by arg and runs fn. Locking modes hold
// the package lock; recording modes refresh the catalog row afterwards.
func (c *commandContext) withPackage(cmd *cobra.Command, arg string, mode openMode, fn func(*imagepkg.Package) error) error {
	path, err := c.resolvePackagePath(arg)
	if err != nil {
		return err
	}
	opts, err := c.packageOptions()
	if err != nil {
		return err
	}
	ctx := logging.WithPackageID(cmd.Context(), filepath.Base(path))
	run := func() error {
		open := imagepkg.OpenBestEffort
		if mode.strict {
			open = imagepkg.Open
		}
		p, err := open(ctx, path, opts...)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		if mode.record {
			c.recordPackage(ctx, p, nil)
		}
		return nil
	}
	if !mode.lock {
		return run()
	}
	return c.withLock(filepath.Base(path), run)
}

// withCatalog runs fn against the catalog. It reports false when the catalog
// is disabled.
func (c *commandContext) withCatalog(fn func(*catalog.Catalog) error) (bool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return false, err
	}
	if !cfg.Catalog.Enabled {
		return false, nil
	}
	cat, err := catalog.Open(cfg)
	if err != nil {
		return true, err
	}
	defer cat.Close()
	return true, fn(cat)
}

// recordPackage refreshes the catalog row for p, adding a validation run
// when report is set. Catalog failures are logged, never returned.
func (c *commandContext) recordPackage(ctx context.Context, p *imagepkg.Package, report *imagepkg.Report) {
	logger, _ := c.ensureLogger()
	_, err := c.withCatalog(func(cat *catalog.Catalog) error {
		status := ""
		if doc := p.Metadata(); doc != nil {
			status = doc.GetString(metadata.KeyStatus)
		}
		if err := cat.Upsert(ctx, batch.RecordOf(p, status)); err != nil {
			return err
		}
		if report == nil {
			return nil
		}
		return cat.RecordValidation(ctx, catalog.Validation{
			RunID:     catalog.NewRunID(),
			PackageID: p.ID,
			Valid:     report.Valid,
			Problems:  report.Messages(),
		})
	})
	if err != nil && logger != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "catalog update failed", "catalog_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "catalog does not reflect this change"),
		)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
