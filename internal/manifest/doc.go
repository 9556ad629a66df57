// Package manifest implements the fixity ledger kept at the root of every
// image package.
//
// The ledger file holds one "<digest> <filename>" line per package file,
// sorted by filename, and is rewritten in full whenever an entry changes so
// the on-disk copy never lags the in-memory view. Lines follow the BagIt
// manifest convention, which lets the file sit next to other tooling
// unchanged.
package manifest
