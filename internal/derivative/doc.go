// Package derivative renders the master, preview and thumbnail files of an
// image package.
//
// The master is the full-resolution source converted into the configured
// target profile and stored as an uncompressed TIFF. Previews are fitted to
// the preview box from the master, and thumbnails from the preview. Preview
// and thumbnail builds are idempotent: an existing file is left alone unless
// the caller asks for an overwrite.
package derivative
