// Package digest names the fixity algorithms a package ledger can record and
// streams files through them.
//
// SHA-1 remains the default for compatibility with existing package
// manifests; SHA-256 and BLAKE3 are available for new collections.
package digest
