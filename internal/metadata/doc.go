// Package metadata maintains the descriptive metadata document (meta.xml)
// stored in every image package.
//
// A Document is a tree of Leaf, List and *Map values split into root
// administrative fields, an image-files block naming the renditions, two
// parallel descriptive sections and a change history. The "original"
// section records values as they were extracted from the image headers; the
// "isaw" section is what catalogers curate. Every mutation normalizes text
// (NFC, collapsed whitespace), drops empty values and, unless deferred,
// rewrites the XML file in full so the file and the in-memory tree never
// diverge.
//
// ImportFacts maps header tags through a Vocabulary, aggregating keywords,
// composing capture dates from scattered date and time fragments and
// refusing to guess when fragments disagree.
package metadata
