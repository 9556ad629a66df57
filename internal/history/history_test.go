package history_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"imgpkg/internal/history"
)

func TestAppendFormatsLines(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	fixed := time.Date(2024, 3, 1, 17, 4, 5, 123456000, time.UTC)
	path := filepath.Join(t.TempDir(), history.FileName)
	log := history.Open(path, loc, history.WithClock(func() time.Time { return fixed }))

	if _, err := log.Append("created package"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := log.Append("wrote\nmaster.tif   from original"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "2024-03-01T12:04:05.123456-05:00 created package\n" +
		"2024-03-01T12:04:05.123456-05:00 wrote master.tif from original\n"
	if string(data) != want {
		t.Fatalf("history =\n%s\nwant\n%s", data, want)
	}

	events, err := log.Events()
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != 2 || events[1].Message != "wrote master.tif from original" {
		t.Fatalf("unexpected events %+v", events)
	}
	if !events[0].Time.Equal(fixed) {
		t.Fatalf("parsed time %v, want %v", events[0].Time, fixed)
	}
}

func TestAppendNeverRewrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), history.FileName)
	if err := os.WriteFile(path, []byte("2020-01-01T00:00:00.000000+00:00 earlier event\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	log := history.Open(path, time.UTC)
	if _, err := log.Append("later event"); err != nil {
		t.Fatal(err)
	}
	events, err := log.Events()
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 || events[0].Message != "earlier event" || events[1].Message != "later event" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestAppendRejectsEmpty(t *testing.T) {
	log := history.Open(filepath.Join(t.TempDir(), history.FileName), time.UTC)
	if _, err := log.Append("  \n "); err == nil {
		t.Fatal("expected error for blank message")
	}
}

func TestEventsMissingFile(t *testing.T) {
	events, err := history.Open(filepath.Join(t.TempDir(), "none.txt"), nil).Events()
	if err != nil || events != nil {
		t.Fatalf("expected no events, got %v %v", events, err)
	}
}

func TestEventsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), history.FileName)
	if err := os.WriteFile(path, []byte("yesterday something happened\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := history.Open(path, time.UTC).Events(); err == nil {
		t.Fatal("expected parse error")
	}
}
