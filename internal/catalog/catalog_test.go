package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"imgpkg/internal/catalog"
	"imgpkg/internal/testsupport"
)

func TestUpsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cat := testsupport.MustOpenCatalog(t, cfg)
	ctx := context.Background()

	rec := catalog.Record{ID: "pkg-1", Path: "/archive/pkg-1", Original: "original.jpg", HasMaster: true, Status: "draft"}
	if err := cat.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	rec.HasPreview = true
	rec.Status = "ready"
	if err := cat.Upsert(ctx, rec); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := cat.Get(ctx, "pkg-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.HasMaster || !got.HasPreview || got.HasThumbnail || got.Status != "ready" || got.Original != "original.jpg" {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.LastValid != nil || got.LastValidatedAt != nil {
		t.Fatalf("expected no validation yet, got %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected updated_at")
	}

	if _, err := cat.Get(ctx, "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordValidation(t *testing.T) {
	cat := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"pkg-a", "pkg-b"} {
		if err := cat.Upsert(ctx, catalog.Record{ID: id, Path: "/p/" + id}); err != nil {
			t.Fatal(err)
		}
	}

	run := catalog.NewRunID()
	if err := cat.RecordValidation(ctx, catalog.Validation{RunID: run, PackageID: "pkg-a", Valid: true}); err != nil {
		t.Fatalf("RecordValidation: %v", err)
	}
	if err := cat.RecordValidation(ctx, catalog.Validation{RunID: run, PackageID: "pkg-b", Problems: []string{"checksum mismatch: master.tif"}}); err != nil {
		t.Fatalf("RecordValidation: %v", err)
	}
	if err := cat.RecordValidation(ctx, catalog.Validation{RunID: run, PackageID: "pkg-z"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown package, got %v", err)
	}

	invalid, err := cat.List(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(invalid) != 1 || invalid[0].ID != "pkg-b" || invalid[0].LastValid == nil || *invalid[0].LastValid {
		t.Fatalf("unexpected invalid list %+v", invalid)
	}
	all, err := cat.List(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "pkg-a" {
		t.Fatalf("unexpected list %+v", all)
	}

	history, err := cat.Validations(ctx, "pkg-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].RunID != run || history[0].Valid || len(history[0].Problems) != 1 {
		t.Fatalf("unexpected validations %+v", history)
	}
}

func TestRemoveCascades(t *testing.T) {
	cat := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := cat.Upsert(ctx, catalog.Record{ID: "pkg-1", Path: "/p"}); err != nil {
		t.Fatal(err)
	}
	if err := cat.RecordValidation(ctx, catalog.Validation{RunID: "r", PackageID: "pkg-1", Valid: true}); err != nil {
		t.Fatal(err)
	}
	if err := cat.Remove(ctx, "pkg-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if v, err := cat.Validations(ctx, "pkg-1"); err != nil || len(v) != 0 {
		t.Fatalf("expected cascaded delete, got %v %v", v, err)
	}
	if err := cat.Remove(ctx, "pkg-1"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := catalog.OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = cat.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	if _, err := catalog.OpenPath(path); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	cat, err := catalog.OpenPath(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := cat.Upsert(context.Background(), catalog.Record{ID: "pkg-1", Path: "/p"}); err != nil {
		t.Fatal(err)
	}
	_ = cat.Close()

	cat, err = catalog.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer cat.Close()
	if _, err := cat.Get(context.Background(), "pkg-1"); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
}
