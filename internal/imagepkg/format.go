package imagepkg

import (
	"fmt"
	"path/filepath"
	"strings"

	"imgpkg/internal/digest"
)

// writeExtensions maps every extension the imaging engine can decode to the
// extension the package stores the original under. Anything else is refused
// before a package directory is created.
var writeExtensions = map[string]string{
	"bmp":  "bmp",
	"dib":  "bmp",
	"gif":  "gif",
	"jpg":  "jpg",
	"jpeg": "jpg",
	"jpe":  "jpg",
	"jif":  "jpg",
	"jfif": "jpg",
	"png":  "png",
	"tif":  "tif",
	"tiff": "tiff",
	"webp": "webp",
}

// NormalizeExtension returns the canonical write extension (without the dot)
// for the image at path.
func NormalizeExtension(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "", fmt.Errorf("%w: %s has no extension", ErrUnsupportedFormat, filepath.Base(path))
	}
	canonical, ok := writeExtensions[ext]
	if !ok {
		return "", fmt.Errorf("%w: .%s", ErrUnsupportedFormat, ext)
	}
	return canonical, nil
}

// OriginalName returns the in-package filename for a source image.
func OriginalName(source string) (string, error) {
	ext, err := NormalizeExtension(source)
	if err != nil {
		return "", err
	}
	return originalStem + "." + ext, nil
}

// isOriginalName reports ledger names of the form original.<ext>, excluding
// digest sidecars such as original.jpg.sha1.
func isOriginalName(name string) bool {
	rest, ok := strings.CutPrefix(name, originalStem+".")
	if !ok || rest == "" {
		return false
	}
	last := rest
	if i := strings.LastIndexByte(rest, '.'); i >= 0 {
		last = rest[i+1:]
	}
	if digest.Known(last) || strings.EqualFold(last, "md5") {
		return false
	}
	return true
}
