package metadata

import "maps"

// Facts are tag/value pairs extracted from image headers, keyed by
// "Group:Tag" (for example "IPTC:By-line"). Scalar values hold one element.
type Facts map[string][]string

// First returns the first value recorded for tag.
func (f Facts) First(tag string) (string, bool) {
	values, ok := f[tag]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// Vocabulary maps extracted tags onto metadata keys.
type Vocabulary struct {
	// Fields maps a tag to its target key. Targets are hierarchical keys;
	// KeyTypology collects keywords; an empty target means the tag is
	// ignored unless it is named by Dates or Source.
	Fields map[string]string
	// Dates lists tags carrying a date, a time, or both.
	Dates []string
	// TimeOnly lists the subset of Dates that carry only a time of day.
	TimeOnly []string
	// Source is the tag describing the capture device; it decides whether
	// dates describe photography or scanning.
	Source string
}

const (
	subjectPhotographed = "date-photographed"
	subjectScanned      = "date-scanned"
)

// DefaultVocabulary returns the IPTC, EXIF and XMP mapping used for imports.
func DefaultVocabulary() Vocabulary {
	fields := map[string]string{
		"IPTC:By-line":          "photographer:name",
		"IPTC:Caption-Abstract": "description",
		"IPTC:Credit":           "photographer:name",
		"IPTC:Source":           "description",
		"IPTC:Writer-Editor":    "contributor:name",
		"IPTC:ObjectName":       "title",
		"IPTC:Keywords":         KeyTypology,
		"IPTC:CopyrightNotice":  "rights-statement",
		// By-lineTitle is truncated by most writers, so it is not imported.
		"IPTC:By-lineTitle": "",

		"ExifIFD:UserComment":      "description",
		"ExifIFD:ImageDescription": "description",
		"ExifIFD:Artist":           "photographer:name",
		"ExifIFD:Copyright":        "rights-statement",

		"XMP:AuthorsPosition":    "photographer:title",
		"XMP:CaptionWriter":      "contributor:name",
		"XMP:WebStatement":       "description",
		"XMP:Description":        "description",
		"XMP:Title":              "title",
		"XMP:Creator":            "photographer:name",
		"XMP:Subject":            KeyTypology,
		"XMP:Rights":             "rights-statement",
		"XMP:UsageTerms":         "license",
		"XMP:ImageCreatorName":   "photographer:name",
		"XMP:ImageCreatorID":     "photographer:uri",
		"XMP:CopyrightOwnerName": "copyright-holder:name",
		"XMP:CopyrightOwnerID":   "copyright-holder:uri",
		"XMP:CreatorWorkEmail":   "photographer:email",
		"XMP:CreatorWorkURL":     "photographer:url",
	}
	for _, where := range []string{"LocationCreated", "LocationShown"} {
		for _, part := range []string{"Sublocation", "City", "ProvinceState", "CountryName"} {
			fields["XMP:"+where+part] = "geography:photographed-place:modern-name"
		}
	}
	return Vocabulary{
		Fields: fields,
		Dates: []string{
			"ExifIFD:CreateDate",
			"IPTC:DateCreated",
			"IPTC:TimeCreated",
			"XMP:CreateDate",
			"XMP:DateCreated",
		},
		TimeOnly: []string{"IPTC:TimeCreated"},
		Source:   "ExifIFD:FileSource",
	}
}

// Clone returns an independent copy.
func (v Vocabulary) Clone() Vocabulary {
	return Vocabulary{
		Fields:   maps.Clone(v.Fields),
		Dates:    append([]string(nil), v.Dates...),
		TimeOnly: append([]string(nil), v.TimeOnly...),
		Source:   v.Source,
	}
}

// dateSubject picks the key dates are recorded under from the capture
// source code. EXIF codes: 1 film scanner, 2 reflection print scanner,
// 3 digital camera. Absent means digital camera.
func dateSubject(source string, ok bool) string {
	if !ok {
		return subjectPhotographed
	}
	switch Clean(source) {
	case "", "3", "Digital Camera":
		return subjectPhotographed
	}
	return subjectScanned
}
