// Package imaging decodes source images, applies ICC color conversion and
// writes the master and rendition formats stored in a package.
//
// Decoding covers JPEG, PNG, GIF, TIFF, BMP and WebP. Embedded ICC profiles
// are read from JPEG APP2 segments, PNG iCCP chunks, the TIFF ICC tag and
// WebP ICCP chunks. Masters are written as uncompressed 8-bit RGB TIFF and
// renditions as baseline JPEG, both carrying the profile they were rendered
// in.
package imaging
