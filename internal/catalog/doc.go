// Package catalog keeps a SQLite index of known image packages and the
// outcome of every validation run.
//
// The catalog is a convenience for batch tooling: it records what a scan
// observed and never replaces the package files as the source of truth. A
// lost or stale catalog is rebuilt by scanning again.
package catalog
