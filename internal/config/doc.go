// Package config loads, normalizes, and validates imgpkg configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// IMGPKG_PHOTOHOST_KEY. The Config type centralizes every knob the CLI and the
// package model need: the packages root, fixity algorithm, color profiles,
// rendition sizes and photo-host credentials are all resolved in one pass.
//
// Nothing is looked up relative to the working directory except the optional
// ./imgpkg.toml project file; credentials and profiles always come from
// configured paths.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
