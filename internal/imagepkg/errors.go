package imagepkg

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAPackage reports a directory without a checksum ledger.
	ErrNotAPackage = errors.New("not an image package")
	// ErrMissingOriginal reports a ledger with no original.* entry.
	ErrMissingOriginal = errors.New("package has no original image")
	// ErrPackageExists reports a Create target that already exists.
	ErrPackageExists = errors.New("package already exists")
	// ErrUnsupportedFormat reports an original whose extension is not a known
	// image type.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrNotOpened reports an operation on a package that was never created
	// or opened, or that has been deleted.
	ErrNotOpened = errors.New("package not opened")
	// ErrNoMetadata reports an operation needing meta.xml on a package opened
	// without one.
	ErrNoMetadata = errors.New("package has no metadata document")
	// ErrNotPublishable reports a Publish attempt on a package that is not
	// ready and cleared.
	ErrNotPublishable = errors.New("package not cleared for publishing")
	// ErrNoPhotoHost reports Publish without a configured client.
	ErrNoPhotoHost = errors.New("no photo host configured")
)

// ChecksumMismatch is a validation problem for a file whose current digest
// differs from its ledger entry. Validate reports it; nothing returns it.
type ChecksumMismatch struct {
	Name     string
	Expected string
	Actual   string
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("%s: checksum mismatch (ledger %s, file %s)", e.Name, e.Expected, e.Actual)
}

// MissingFileError reports a ledger entry whose file is gone.
type MissingFileError struct {
	Name string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s: listed in manifest but missing", e.Name)
}

// MissingEntryError reports a required file absent from the ledger.
type MissingEntryError struct {
	Name string
}

func (e *MissingEntryError) Error() string {
	return fmt.Sprintf("%s: not listed in manifest", e.Name)
}
