// Package fileutil holds the small filesystem helpers shared by the package
// model: path validation with typed failures, digest-verified copies and
// atomic whole-file replacement.
package fileutil
