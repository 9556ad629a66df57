package fileutil

import (
	"fmt"
	"os"

	"imgpkg/internal/digest"
)

// DefaultCopyTries is the number of copy attempts SafeCopy makes before
// reporting an integrity failure.
const DefaultCopyTries = 2

// CopyIntegrityError reports that every copy attempt produced a destination
// whose digest differed from the source.
type CopyIntegrityError struct {
	Src, Dst      string
	Tries         int
	Expected, Got string
}

func (e *CopyIntegrityError) Error() string {
	return fmt.Sprintf("copy %s -> %s failed verification after %d tries (expected %s, got %s)",
		e.Src, e.Dst, e.Tries, e.Expected, e.Got)
}

// copyFunc is swapped in tests to simulate a corrupting copy.
var copyFunc = CopyFile

// SafeCopy copies src to dst and verifies the destination digest against the
// source, retrying up to tries times. On success it returns the digest.
func SafeCopy(src, dst string, alg digest.Algorithm, tries int) (string, error) {
	if tries < 1 {
		tries = DefaultCopyTries
	}
	src, err := ValidatePath(src, FileKind)
	if err != nil {
		return "", err
	}
	want, err := alg.File(src)
	if err != nil {
		return "", err
	}

	var got string
	for attempt := 1; attempt <= tries; attempt++ {
		if err := copyFunc(src, dst); err != nil {
			return "", fmt.Errorf("copy %s: %w", src, err)
		}
		got, err = alg.File(dst)
		if err != nil {
			return "", err
		}
		if got == want {
			return got, nil
		}
	}
	_ = os.Remove(dst)
	return "", &CopyIntegrityError{Src: src, Dst: dst, Tries: tries, Expected: want, Got: got}
}
