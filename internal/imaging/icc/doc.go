// Package icc reads ICC color profiles and converts 8-bit pixels between
// matrix/TRC profiles.
//
// Only the subset needed for archival masters is covered: RGB and gray
// profiles whose transforms are expressed as colorant matrices plus tone
// curves. Lookup-table profiles parse but cannot be transformed. The package
// also synthesizes a v4 sRGB profile used when no profile is configured.
package icc
