package metadata

import (
	"errors"
	"testing"
)

func TestImportFactsMapsFields(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{
		"IPTC:By-line":          {"Picasa"},
		"ExifIFD:Artist":        {"Picasa"},
		"IPTC:Caption-Abstract": {"Moon town road"},
		"XMP:Description":       {"Moon  town road"},
		"IPTC:Source":           {"album"},
		"IPTC:Keywords":         {"roads", "moon"},
		"XMP:Subject":           {"moon", "towns"},
		"XMP:LocationShownCity": {"Siwa"},
		"XMP:UsageTerms":        {"CC BY"},
		"File:FileSize":         {"12345"},
	}
	if err := doc.ImportFacts(facts, DefaultVocabulary(), OverwriteCurated()); err != nil {
		t.Fatalf("ImportFacts: %v", err)
	}

	orig := func(key string) string {
		node, err := doc.GetFrom(Original, key)
		if err != nil {
			t.Fatalf("original %s: %v", key, err)
		}
		return Text(node)
	}
	if got := orig("photographer:name"); got != "Picasa" {
		t.Fatalf("photographer = %q", got)
	}
	if got := orig("description"); got != "Moon town road album" {
		t.Fatalf("description = %q", got)
	}
	if got := orig("geography:photographed-place:modern-name"); got != "Siwa" {
		t.Fatalf("place = %q", got)
	}
	if got := orig("license"); got != "CC BY" {
		t.Fatalf("original license = %q", got)
	}

	if got := doc.GetString("photographer:name"); got != "Picasa" {
		t.Fatalf("curated photographer = %q", got)
	}
	if got := doc.GetString(KeyLicense); got != "CC BY" {
		t.Fatalf("curated license = %q, want the imported value over the template default", got)
	}

	kw := doc.Keywords()
	want := []string{"roads", "moon", "towns"}
	if len(kw) != len(want) {
		t.Fatalf("keywords = %v, want %v", kw, want)
	}
	for i := range want {
		if kw[i] != want[i] {
			t.Fatalf("keywords = %v, want %v", kw, want)
		}
	}
}

func TestImportFactsKeepsCuratedValues(t *testing.T) {
	doc := newDoc(t)
	if err := doc.Set("title", Leaf("Curated title")); err != nil {
		t.Fatal(err)
	}
	facts := Facts{
		"XMP:Title":      {"Header title"},
		"XMP:UsageTerms": {"CC BY"},
		"XMP:Creator":    {"Picasa"},
	}
	if err := doc.ImportFacts(facts, DefaultVocabulary()); err != nil {
		t.Fatalf("ImportFacts: %v", err)
	}
	if got := doc.GetString("title"); got != "Curated title" {
		t.Fatalf("curated title = %q", got)
	}
	if got := doc.GetString(KeyLicense); got != DefaultLicense {
		t.Fatalf("curated license = %q, want %q", got, DefaultLicense)
	}
	if got := doc.GetString("photographer:name"); got != "Picasa" {
		t.Fatalf("absent curated key not seeded, got %q", got)
	}
	if node, err := doc.GetFrom(Original, "title"); err != nil || Text(node) != "Header title" {
		t.Fatalf("original title = %v, %v", node, err)
	}
}

func TestImportComposesCaptureDate(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{
		"IPTC:DateCreated":   {"2009:02:27"},
		"IPTC:TimeCreated":   {"14:23:05+02:00"},
		"ExifIFD:CreateDate": {"2009:02:27 14:23:05"},
		"XMP:DateCreated":    {"2009-02-27T14:23:05.12"},
	}
	if err := doc.ImportFacts(facts, DefaultVocabulary()); err != nil {
		t.Fatalf("ImportFacts: %v", err)
	}
	if got := doc.GetString("date-photographed"); got != "2009-02-27T14:23:05.12+02:00" {
		t.Fatalf("date-photographed = %q", got)
	}
}

func TestImportUsesScanDateForScanners(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{
		"ExifIFD:FileSource": {"1"},
		"XMP:CreateDate":     {"1998:05:01"},
	}
	if err := doc.ImportFacts(facts, DefaultVocabulary()); err != nil {
		t.Fatalf("ImportFacts: %v", err)
	}
	if got := doc.GetString("date-scanned"); got != "1998-05-01" {
		t.Fatalf("date-scanned = %q", got)
	}
	if _, err := doc.Get("date-photographed"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected no date-photographed, got %v", err)
	}
}

func TestImportConflictingDatesFails(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{
		"IPTC:DateCreated": {"2009:02:27"},
		"XMP:DateCreated":  {"2010:01:01"},
		"XMP:Title":        {"should not be written"},
	}
	err := doc.ImportFacts(facts, DefaultVocabulary())
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Key != "date-photographed" {
		t.Fatalf("conflict key = %q", conflict.Key)
	}
	if _, err := doc.GetFrom(Original, "title"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("nothing should be written after a conflict, got %v", err)
	}
}

func TestImportConflictingZonesFails(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{
		"IPTC:TimeCreated": {"14:23:05+02:00"},
		"XMP:CreateDate":   {"2009:02:27 14:23:05-05:00"},
	}
	if err := doc.ImportFacts(facts, DefaultVocabulary()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestImportSkipsZeroDates(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{"ExifIFD:CreateDate": {"0000:00:00 00:00:00"}}
	if err := doc.ImportFacts(facts, DefaultVocabulary()); err != nil {
		t.Fatalf("ImportFacts: %v", err)
	}
	if _, err := doc.Get("date-photographed"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("zero date should be ignored, got %v", err)
	}
}

func TestImportRejectsMalformedDate(t *testing.T) {
	doc := newDoc(t)
	facts := Facts{"XMP:CreateDate": {"sometime in May"}}
	if err := doc.ImportFacts(facts, DefaultVocabulary()); !errors.Is(err, ErrMalformedFact) {
		t.Fatalf("expected ErrMalformedFact, got %v", err)
	}
}

func TestMergeDateKeepsMorePreciseValue(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		timeOnly bool
		want     string
	}{
		{"time then date", "T12:00", "2001:02:03", false, "2001-02-03T12:00"},
		{"partial clock", "2001:02:03 12:00", "2001:02:03 12:00:30", false, "2001-02-03T12:00:30"},
		{"zone then fraction", "2001:02:03 12:00:00+02:00", "2001:02:03 12:00:00.50", false, "2001-02-03T12:00:00.50+02:00"},
		{"partial date", "2001", "2001:02:03", false, "2001-02-03"},
		{"utc spellings", "2001:02:03 12:00:00Z", "2001:02:03 12:00:00+00:00", false, "2001-02-03T12:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := parseDateTime(tt.a, tt.timeOnly)
			if err != nil {
				t.Fatal(err)
			}
			b, err := parseDateTime(tt.b, tt.timeOnly)
			if err != nil {
				t.Fatal(err)
			}
			if err := mergeDate("date-photographed", a, b); err != nil {
				t.Fatalf("merge: %v", err)
			}
			if got := a.String(); got != tt.want {
				t.Fatalf("merged = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClean(t *testing.T) {
	if got := Clean("\t a \n\n b  "); got != "a b" {
		t.Fatalf("Clean = %q", got)
	}
	if got := Clean("   "); got != "" {
		t.Fatalf("Clean blank = %q", got)
	}
}
