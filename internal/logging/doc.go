// Package logging assembles structured slog loggers and formatting helpers used
// across imgpkg.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so package operations tag log
// lines with the package id and the command's correlation id. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits records with the same shape.
package logging
