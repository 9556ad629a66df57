package testsupport

import (
	"testing"

	"imgpkg/internal/catalog"
	"imgpkg/internal/config"
)

// MustOpenCatalog opens the catalog for tests and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Catalog {
	t.Helper()

	cat, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = cat.Close()
	})
	return cat
}
