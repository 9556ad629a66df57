package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImaging()
	if err := c.normalizeImagingPaths(); err != nil {
		return err
	}
	c.normalizeExif()
	c.normalizeHistory()
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultBatchWorkers
	}
	if err := c.normalizePhotoHost(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Fixity.Algorithm = strings.ToLower(strings.TrimSpace(c.Fixity.Algorithm))
	if c.Fixity.Algorithm == "" {
		c.Fixity.Algorithm = defaultFixity
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.PackagesDir) == "" {
		c.Paths.PackagesDir = defaultPackagesDir
	}
	if c.Paths.PackagesDir, err = expandPath(c.Paths.PackagesDir); err != nil {
		return fmt.Errorf("paths.packages_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImaging() {
	if c.Imaging.PreviewWidth == 0 {
		c.Imaging.PreviewWidth = defaultPreviewWidth
	}
	if c.Imaging.PreviewHeight == 0 {
		c.Imaging.PreviewHeight = defaultPreviewHeight
	}
	if c.Imaging.ThumbnailWidth == 0 {
		c.Imaging.ThumbnailWidth = defaultThumbnailWidth
	}
	if c.Imaging.ThumbnailHeight == 0 {
		c.Imaging.ThumbnailHeight = defaultThumbnailHeight
	}
	if c.Imaging.JPEGQuality == 0 {
		c.Imaging.JPEGQuality = defaultJPEGQuality
	}
	if c.Imaging.PreshrinkFactor == 0 {
		c.Imaging.PreshrinkFactor = defaultPreshrinkFactor
	}
}

func (c *Config) normalizeImagingPaths() error {
	var err error
	if c.Imaging.TargetProfile, err = normalizeProfile(c.Imaging.TargetProfile); err != nil {
		return fmt.Errorf("imaging.target_profile: %w", err)
	}
	if c.Imaging.DefaultInputProfile, err = normalizeProfile(c.Imaging.DefaultInputProfile); err != nil {
		return fmt.Errorf("imaging.default_input_profile: %w", err)
	}
	return nil
}

func normalizeProfile(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, BuiltinProfile) {
		return BuiltinProfile, nil
	}
	return expandPath(value)
}

func (c *Config) normalizeExif() {
	c.Exif.Binary = strings.TrimSpace(c.Exif.Binary)
	if c.Exif.Binary == "" {
		c.Exif.Binary = defaultExifBinary
	}
	if c.Exif.TimeoutSeconds <= 0 {
		c.Exif.TimeoutSeconds = defaultExifTimeout
	}
}

func (c *Config) normalizeHistory() {
	c.History.Timezone = strings.TrimSpace(c.History.Timezone)
	if c.History.Timezone == "" {
		c.History.Timezone = defaultTimezone
	}
	c.History.Agent = strings.TrimSpace(c.History.Agent)
	if c.History.Agent == "" {
		c.History.Agent = defaultAgent
	}
}

func (c *Config) normalizePhotoHost() error {
	var err error
	if c.PhotoHost.KeyPath, err = expandPath(strings.TrimSpace(c.PhotoHost.KeyPath)); err != nil {
		return fmt.Errorf("photohost.key_path: %w", err)
	}
	if c.PhotoHost.SecretPath, err = expandPath(strings.TrimSpace(c.PhotoHost.SecretPath)); err != nil {
		return fmt.Errorf("photohost.secret_path: %w", err)
	}
	c.PhotoHost.Key = strings.TrimSpace(c.PhotoHost.Key)
	if c.PhotoHost.Key == "" {
		if value, ok := os.LookupEnv("IMGPKG_PHOTOHOST_KEY"); ok {
			c.PhotoHost.Key = strings.TrimSpace(value)
		}
	}
	c.PhotoHost.Secret = strings.TrimSpace(c.PhotoHost.Secret)
	if c.PhotoHost.Secret == "" {
		if value, ok := os.LookupEnv("IMGPKG_PHOTOHOST_SECRET"); ok {
			c.PhotoHost.Secret = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
