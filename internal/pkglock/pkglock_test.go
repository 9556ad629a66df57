package pkglock_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"imgpkg/internal/pkglock"
)

func TestAcquireExclusive(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "locks")
	first, err := pkglock.Acquire(dir, "pkg-0001")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := pkglock.Acquire(dir, "pkg-0001"); !errors.Is(err, pkglock.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	other, err := pkglock.Acquire(dir, "pkg-0002")
	if err != nil {
		t.Fatalf("independent id should lock: %v", err)
	}
	defer other.Release()

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	again, err := pkglock.Acquire(dir, "pkg-0001")
	if err != nil {
		t.Fatalf("reacquire after release: %v", err)
	}
	_ = again.Release()
}

func TestPathSanitizesID(t *testing.T) {
	dir := "/state/locks"
	if got := pkglock.Path(dir, "pkg-0001"); got != filepath.Join(dir, "pkg-0001.lock") {
		t.Fatalf("Path = %q", got)
	}
	got := pkglock.Path(dir, "../evil id")
	if filepath.Dir(got) != dir || !strings.HasPrefix(filepath.Base(got), ".._evil_id~") {
		t.Fatalf("Path = %q", got)
	}
	if got != pkglock.Path(dir, "../evil id") {
		t.Fatal("Path is not stable")
	}
}

func TestPathKeepsDistinctIDsApart(t *testing.T) {
	dir := t.TempDir()
	ids := []string{"a b", "a_b", "a/b", "a:b"}
	seen := make(map[string]string)
	for _, id := range ids {
		p := pkglock.Path(dir, id)
		if prev, ok := seen[p]; ok {
			t.Fatalf("ids %q and %q share lock %s", prev, id, p)
		}
		seen[p] = id
	}

	held, err := pkglock.Acquire(dir, "a b")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer held.Release()
	other, err := pkglock.Acquire(dir, "a_b")
	if err != nil {
		t.Fatalf("distinct id blocked by sanitized twin: %v", err)
	}
	_ = other.Release()
}

func TestAcquireRejectsEmptyID(t *testing.T) {
	if _, err := pkglock.Acquire(t.TempDir(), " "); err == nil {
		t.Fatal("expected error for empty id")
	}
}
