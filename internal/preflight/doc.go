// Package preflight provides readiness checks for the directories, color
// profiles, external programs and credentials imgpkg depends on.
//
// The CLI "imgpkg doctor" command runs RunAll and prints each result; create
// and scan run the same checks and refuse to start when a required one fails.
//
// Each check is gated by its config toggle -- disabled features are skipped.
package preflight
