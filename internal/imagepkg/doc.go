// Package imagepkg models one archival image package: a directory holding a
// verbatim copy of the original image, its derived renditions, a metadata
// document, an append-only history log and a checksum ledger covering every
// file.
//
// Create builds a package from a source image in a fixed order (copy, fact
// extraction, master, preview, thumbnail, metadata) and registers each file in
// the ledger as soon as it is written, so a package interrupted midway still
// validates for everything it contains. Open reconstructs the in-memory view
// without regenerating anything. Validate re-reads every ledger entry and
// reports missing files and digest mismatches without stopping at the first.
//
// Packages are not safe for concurrent use. Callers that may touch the same
// package from several processes serialize through internal/pkglock.
package imagepkg
