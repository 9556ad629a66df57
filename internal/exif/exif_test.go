package exif_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"imgpkg/internal/exif"
	"imgpkg/internal/logging"
	"imgpkg/internal/metadata"
)

const sample = `[{
  "SourceFile": "original.jpg",
  "ExifIFD:CreateDate": "2009:02:27 14:23:05",
  "ExifIFD:FileSource": 3,
  "IPTC:Keywords": ["temple", "column"],
  "XMP-dc:Subject": ["temple"],
  "XMP-dc:Creator": "Jane Doe",
  "IFD0:Orientation": 1,
  "Composite:Flash": false,
  "MakerNotes:Nested": {"a": 1}
}]`

func TestParse(t *testing.T) {
	facts, err := exif.Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := facts["SourceFile"]; ok {
		t.Fatal("SourceFile should not be a fact")
	}
	if got := facts["IPTC:Keywords"]; !slices.Equal(got, []string{"temple", "column"}) {
		t.Fatalf("keywords = %v", got)
	}
	if got := facts["XMP:Subject"]; !slices.Equal(got, []string{"temple"}) {
		t.Fatalf("folded XMP subject = %v", got)
	}
	if v, _ := facts.First("ExifIFD:FileSource"); v != "3" {
		t.Fatalf("numeric value = %q", v)
	}
	if v, _ := facts.First("Composite:Flash"); v != "false" {
		t.Fatalf("bool value = %q", v)
	}
	if _, ok := facts["MakerNotes:Nested"]; ok {
		t.Fatal("nested objects should be skipped")
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := exif.Parse([]byte("[]")); !errors.Is(err, exif.ErrNoFacts) {
		t.Fatalf("expected ErrNoFacts, got %v", err)
	}
	if _, err := exif.Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFoldGroup(t *testing.T) {
	tests := map[string]string{
		"XMP-dc:Subject":       "XMP:Subject",
		"XMP-photoshop:City":   "XMP:City",
		"IPTC:City":            "IPTC:City",
		"ExifIFD:CreateDate":   "ExifIFD:CreateDate",
		"NoGroup":              "NoGroup",
		"XMPNotes:Unchanged":   "XMPNotes:Unchanged",
		"XMP-xmp:CreateDate":   "XMP:CreateDate",
		"XMP-iptcCore:Country": "XMP:Country",
	}
	for in, want := range tests {
		if got := exif.FoldGroup(in); got != want {
			t.Fatalf("FoldGroup(%q) = %q, want %q", in, got, want)
		}
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exiftool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExifToolRunsBinary(t *testing.T) {
	bin := writeScript(t, "cat <<'EOF'\n"+sample+"\nEOF")
	tool := exif.New(bin, 5*time.Second, logging.NewNop())

	res, err := tool.Extract(context.Background(), "/tmp/original.jpg")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(string(res.Raw), "ExifIFD:CreateDate") {
		t.Fatalf("raw output not preserved: %s", res.Raw)
	}
	if v, _ := res.Facts.First("ExifIFD:CreateDate"); v != "2009:02:27 14:23:05" {
		t.Fatalf("CreateDate = %q", v)
	}
}

func TestExifToolReportsStderr(t *testing.T) {
	bin := writeScript(t, "echo 'File not found' >&2\nexit 1")
	_, err := exif.New(bin, time.Second, nil).Extract(context.Background(), "missing.jpg")
	if err == nil || !strings.Contains(err.Error(), "File not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestExifToolTimeout(t *testing.T) {
	bin := writeScript(t, "exec sleep 5")
	_, err := exif.New(bin, 100*time.Millisecond, nil).Extract(context.Background(), "slow.jpg")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSidecarRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), exif.SidecarName)
	if err := exif.WriteSidecar(path, []byte(sample)); err != nil {
		t.Fatalf("WriteSidecar: %v", err)
	}
	res, err := exif.ReadSidecar(path)
	if err != nil {
		t.Fatalf("ReadSidecar: %v", err)
	}
	if string(res.Raw) != sample {
		t.Fatal("sidecar bytes changed")
	}
	want, _ := exif.Parse([]byte(sample))
	if len(res.Facts) != len(want) {
		t.Fatalf("facts = %v, want %v", res.Facts, want)
	}
}

func TestSidecarFactsImport(t *testing.T) {
	facts, err := exif.Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	doc, err := metadata.Create(filepath.Join(t.TempDir(), "meta.xml"), false)
	if err != nil {
		t.Fatal(err)
	}
	if err := doc.ImportFacts(facts, metadata.DefaultVocabulary()); err != nil {
		t.Fatalf("ImportFacts: %v", err)
	}
	if got := doc.Keywords(); !slices.Equal(got, []string{"temple", "column"}) {
		t.Fatalf("keywords = %v", got)
	}
	if got := doc.GetString("date-photographed"); got != "2009-02-27T14:23:05" {
		t.Fatalf("date-photographed = %q", got)
	}
}
