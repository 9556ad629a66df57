package photohost_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"imgpkg/internal/config"
	"imgpkg/internal/logging"
	"imgpkg/internal/photohost"
)

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key")
	secretPath := filepath.Join(dir, "secret")
	if err := os.WriteFile(keyPath, []byte("file-key\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(secretPath, []byte("file-secret\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     config.PhotoHost
		want    photohost.Credentials
		wantErr error
	}{
		{"explicit", config.PhotoHost{Key: "k", Secret: "s", KeyPath: keyPath, SecretPath: secretPath}, photohost.Credentials{Key: "k", Secret: "s"}, nil},
		{"files", config.PhotoHost{KeyPath: keyPath, SecretPath: secretPath}, photohost.Credentials{Key: "file-key", Secret: "file-secret"}, nil},
		{"only key", config.PhotoHost{Key: "k", KeyPath: keyPath, SecretPath: secretPath}, photohost.Credentials{}, photohost.ErrMixedCredentials},
		{"only secret", config.PhotoHost{Secret: "s"}, photohost.Credentials{}, photohost.ErrMixedCredentials},
		{"nothing", config.PhotoHost{}, photohost.Credentials{}, photohost.ErrNoCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := photohost.LoadCredentials(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("credentials = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLoadCredentialsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key")
	secretPath := filepath.Join(dir, "secret")
	_ = os.WriteFile(keyPath, []byte("  \n"), 0o600)
	_ = os.WriteFile(secretPath, []byte("s"), 0o600)
	if _, err := photohost.LoadCredentials(config.PhotoHost{KeyPath: keyPath, SecretPath: secretPath}); err == nil {
		t.Fatal("expected error for empty key file")
	}
}

func TestDryRunUpload(t *testing.T) {
	client := photohost.NewDryRun(logging.NewNop())
	url, err := client.Upload(context.Background(), photohost.Upload{PackageID: "pkg-1", Path: "/archive/pkg-1/master.tif"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if url != "dryrun://photohost/pkg-1/master.tif" {
		t.Fatalf("url = %q", url)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Upload(ctx, photohost.Upload{PackageID: "pkg-1", Path: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	client, err := photohost.NewFromConfig(&cfg, nil)
	if err != nil || client != nil {
		t.Fatalf("disabled host should yield nil client, got %v %v", client, err)
	}

	cfg.PhotoHost.Enabled = true
	client, err = photohost.NewFromConfig(&cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := client.(*photohost.DryRunClient); !ok {
		t.Fatalf("expected dry-run client, got %T", client)
	}

	cfg.PhotoHost.DryRun = false
	for _, creds := range []config.PhotoHost{
		{Enabled: true},
		{Enabled: true, Key: "only"},
		{Enabled: true, Key: "k", Secret: "s"},
	} {
		cfg.PhotoHost = creds
		client, err := photohost.NewFromConfig(&cfg, nil)
		if err != nil || client != nil {
			t.Fatalf("non-dry-run host %+v: got %v %v, want nil client and no error", creds, client, err)
		}
	}
}
