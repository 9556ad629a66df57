// Command imgpkg creates, inspects, validates and publishes archival image
// packages.
//
// Every command loads configuration through internal/config (the --config
// flag, ~/.config/imgpkg/config.toml, or ./imgpkg.toml) and logs through
// internal/logging to stderr, keeping stdout for command results. Commands
// that modify a package hold its lock from internal/pkglock for the duration
// of the change, and record outcomes in the catalog when it is enabled.
package main
