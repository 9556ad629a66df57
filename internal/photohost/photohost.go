// Package photohost describes the optional remote photo-hosting capability a
// package can publish to once it is cleared.
//
// Only credential handling and a dry-run client live here; the network
// protocol of any concrete host is supplied by callers implementing Client.
package photohost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"strings"

	"imgpkg/internal/config"
	"imgpkg/internal/logging"
)

var (
	// ErrMixedCredentials reports that exactly one of key and secret was
	// supplied explicitly.
	ErrMixedCredentials = errors.New("photohost: key and secret must be supplied together")
	// ErrNoCredentials reports that no credential source produced a key pair.
	ErrNoCredentials = errors.New("photohost: no credentials configured")
)

// Credentials authenticate against a photo host.
type Credentials struct {
	Key    string
	Secret string
}

// LoadCredentials resolves credentials from explicit values first and from
// key/secret files second. Files are only read from configured paths.
func LoadCredentials(cfg config.PhotoHost) (Credentials, error) {
	key, secret := strings.TrimSpace(cfg.Key), strings.TrimSpace(cfg.Secret)
	switch {
	case key != "" && secret != "":
		return Credentials{Key: key, Secret: secret}, nil
	case key != "" || secret != "":
		return Credentials{}, ErrMixedCredentials
	}
	if cfg.KeyPath == "" || cfg.SecretPath == "" {
		return Credentials{}, ErrNoCredentials
	}
	key, err := readCredential(cfg.KeyPath)
	if err != nil {
		return Credentials{}, err
	}
	secret, err = readCredential(cfg.SecretPath)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{Key: key, Secret: secret}, nil
}

func readCredential(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("credential file %s is empty", p)
	}
	return v, nil
}

// Upload is one image handed to a host.
type Upload struct {
	PackageID   string
	Path        string
	Title       string
	Description string
	Tags        []string
	License     string
}

// Client publishes images and returns their public URL.
type Client interface {
	Upload(ctx context.Context, up Upload) (string, error)
}

// DryRunClient logs uploads without contacting any host.
type DryRunClient struct {
	logger *slog.Logger
}

// NewDryRun returns a client that only logs.
func NewDryRun(logger *slog.Logger) *DryRunClient {
	return &DryRunClient{logger: logging.NewComponentLogger(logger, "photohost")}
}

func (c *DryRunClient) Upload(ctx context.Context, up Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u := url.URL{Scheme: "dryrun", Host: "photohost", Path: "/" + path.Join(up.PackageID, path.Base(up.Path))}
	logging.WithContext(ctx, c.logger).Info("dry-run upload",
		logging.Path(up.Path),
		logging.String("title", up.Title),
		logging.Strings("tags", up.Tags),
		logging.String("url", u.String()),
	)
	return u.String(), nil
}

// NewFromConfig returns the configured client, or nil when hosting is
// disabled. Only the dry-run client ships with imgpkg; a non-dry-run
// configuration yields nil with a warning so that only publishing fails.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Client, error) {
	if cfg == nil || !cfg.PhotoHost.Enabled {
		return nil, nil
	}
	if cfg.PhotoHost.DryRun {
		return NewDryRun(logger), nil
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldErrorHint, "set photohost.dry_run = true or publish through a program that supplies a Client"),
		logging.String(logging.FieldImpact, "publish is unavailable"),
	}
	if _, err := LoadCredentials(cfg.PhotoHost); err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	logging.WarnWithContext(logging.NewComponentLogger(logger, "photohost"),
		"no network photo host client is built in", "photohost_unavailable", attrs...)
	return nil, nil
}
