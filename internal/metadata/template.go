package metadata

import "slices"

// Provenance selects one of the two parallel descriptive sections.
type Provenance string

const (
	// Original holds values as extracted from the image headers.
	Original Provenance = "original"
	// Curated holds the values maintained by catalogers.
	Curated Provenance = "isaw"
)

// Provenances lists the sections in document order.
var Provenances = []Provenance{Original, Curated}

// Root administrative keys, in document order.
const (
	KeyStatus                 = "status"
	KeyLicenseReleaseVerified = "license-release-verified"
	KeyPublishCleared         = "isaw-publish-cleared"
	KeyReviewNotes            = "review-notes"
	KeyImageFiles             = "image-files"
	KeyChangeHistory          = "change-history"
	KeyTypology               = "typology"
	KeyLicense                = "license"
	KeyPublishedURL           = "published-url"
)

var adminKeys = []string{KeyStatus, KeyLicenseReleaseVerified, KeyPublishCleared, KeyReviewNotes}

func isAdminKey(key string) bool {
	return slices.Contains(adminKeys, key)
}

// isRootKey reports keys stored at the document root rather than in a section.
func isRootKey(key string) bool {
	return isAdminKey(key) || key == KeyImageFiles || key == KeyChangeHistory
}

// Element names used inside repeating containers.
const (
	rootElement   = "image-info"
	infoElement   = "info"
	termElement   = "term"
	changeElement = "change"
	typeAttr      = "type"
)

// skeleton describes the element layout every written document carries,
// whether or not a value is known.
type skeleton struct {
	name     string
	children []skeleton
}

var sectionSkeleton = []skeleton{
	{name: "title"},
	{name: "description"},
	{name: KeyLicense},
	{name: "rights-statement"},
	{name: "copyright-holder", children: []skeleton{{name: "name"}, {name: "uri"}}},
	{name: "copyright-date"},
	{name: "photographer", children: []skeleton{{name: "name"}, {name: "title"}, {name: "email"}, {name: "url"}, {name: "uri"}}},
	{name: "contributor", children: []skeleton{{name: "name"}}},
	{name: "date-photographed"},
	{name: "date-scanned"},
	{name: "geography", children: []skeleton{
		{name: "photographed-place", children: []skeleton{{name: "modern-name"}, {name: "ancient-name"}, {name: "uri"}}},
	}},
	{name: KeyTypology},
	{name: KeyPublishedURL},
}

var imageFilesSkeleton = []skeleton{
	{name: "original"}, {name: "master"}, {name: "preview"}, {name: "thumbnail"},
}

// Template values for a freshly created document.
const (
	DefaultStatus  = "draft"
	DefaultLicense = "undetermined"
	DefaultNo      = "no"
)

func newTemplateRoot() *Map {
	m := NewMap()
	m.Set(KeyStatus, Leaf(DefaultStatus))
	m.Set(KeyLicenseReleaseVerified, Leaf(DefaultNo))
	m.Set(KeyPublishCleared, Leaf(DefaultNo))
	return m
}

func newTemplateSection(p Provenance) *Map {
	m := NewMap()
	if p == Curated {
		m.Set(KeyLicense, Leaf(DefaultLicense))
	}
	return m
}
