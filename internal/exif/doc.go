// Package exif extracts header facts from image files and persists them as a
// JSON sidecar.
//
// The default Extractor runs exiftool with family-1 group names so tags read
// like "ExifIFD:CreateDate" or "IPTC:Keywords"; XMP namespaces are folded to
// a single "XMP" group to match the metadata vocabulary. The raw tool output
// is kept verbatim so a package can re-import it later without the binary.
package exif
