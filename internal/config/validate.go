package config

import (
	"errors"
	"fmt"
	"time"

	"imgpkg/internal/digest"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if _, err := digest.Parse(c.Fixity.Algorithm); err != nil {
		return fmt.Errorf("fixity.algorithm: %w", err)
	}
	if err := c.validateImaging(); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.History.Timezone); err != nil {
		return fmt.Errorf("history.timezone: %w", err)
	}
	if c.Batch.Workers < 1 {
		return errors.New("batch.workers must be positive")
	}
	if err := c.validatePhotoHost(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateImaging() error {
	boxes := map[string]int{
		"imaging.preview_width":    c.Imaging.PreviewWidth,
		"imaging.preview_height":   c.Imaging.PreviewHeight,
		"imaging.thumbnail_width":  c.Imaging.ThumbnailWidth,
		"imaging.thumbnail_height": c.Imaging.ThumbnailHeight,
	}
	if err := ensurePositiveMap(boxes); err != nil {
		return err
	}
	if c.Imaging.JPEGQuality < 1 || c.Imaging.JPEGQuality > 100 {
		return fmt.Errorf("imaging.jpeg_quality must be between 1 and 100, got %d", c.Imaging.JPEGQuality)
	}
	if c.Imaging.PreshrinkFactor < 2 {
		return fmt.Errorf("imaging.preshrink_factor must be at least 2, got %d", c.Imaging.PreshrinkFactor)
	}
	return nil
}

func (c *Config) validatePhotoHost() error {
	if (c.PhotoHost.Key == "") != (c.PhotoHost.Secret == "") {
		return errors.New("photohost.key and photohost.secret must be set together")
	}
	if (c.PhotoHost.KeyPath == "") != (c.PhotoHost.SecretPath == "") {
		return errors.New("photohost.key_path and photohost.secret_path must be set together")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
