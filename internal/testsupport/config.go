package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"imgpkg/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Header extraction is disabled unless WithStubExifTool is applied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.PackagesDir = filepath.Join(base, "packages")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.History.Timezone = "UTC"
	cfgVal.Exif.Enabled = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBatchWorkers overrides the scan worker count.
func WithBatchWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.Workers = n
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, exiftool is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"exiftool"}
		}
		binDir := b.binDir()
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
	}
}

// WithStubExifTool installs an exiftool stand-in that prints output and
// enables extraction through it.
func WithStubExifTool(output string) ConfigOption {
	return func(b *configBuilder) {
		target := filepath.Join(b.binDir(), "exiftool")
		script := "#!/bin/sh\ncat <<'JSON'\n" + output + "\nJSON\n"
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			b.t.Fatalf("write exiftool stub: %v", err)
		}
		b.cfg.Exif.Enabled = true
		b.cfg.Exif.Binary = target
	}
}

func (b *configBuilder) binDir() string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	oldPath := os.Getenv("PATH")
	if !strings.HasPrefix(oldPath, binDir+string(os.PathListSeparator)) {
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath)
	}
	return binDir
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
