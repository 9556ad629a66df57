package fileutil

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrPathNotFound reports a path that does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrNotAFile reports a path that exists but is not a regular file.
	ErrNotAFile = errors.New("not a file")
	// ErrNotADirectory reports a path that exists but is not a directory.
	ErrNotADirectory = errors.New("not a directory")
)

// PathKind selects what ValidatePath expects to find.
type PathKind int

const (
	AnyKind PathKind = iota
	FileKind
	DirKind
)

// PathError carries the offending path alongside one of the sentinel errors.
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string { return fmt.Sprintf("%s: %v", e.Path, e.Err) }

func (e *PathError) Unwrap() error { return e.Err }

// ValidatePath returns the absolute form of path after confirming it exists
// and matches kind.
func ValidatePath(path string, kind PathKind) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &PathError{Path: abs, Err: ErrPathNotFound}
		}
		return "", fmt.Errorf("stat %s: %w", abs, err)
	}
	switch kind {
	case FileKind:
		if !info.Mode().IsRegular() {
			return "", &PathError{Path: abs, Err: ErrNotAFile}
		}
	case DirKind:
		if !info.IsDir() {
			return "", &PathError{Path: abs, Err: ErrNotADirectory}
		}
	}
	return abs, nil
}

// Exists reports whether path can be stat'ed.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// WriteFileAtomic replaces path with data by writing a sibling temp file and
// renaming it into place.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return WriteAtomic(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic streams fill into a sibling temp file, syncs it and renames it
// over path. The temp file is removed on any failure.
func WriteAtomic(path string, mode os.FileMode, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	buf := bufio.NewWriterSize(tmp, 1<<16)
	if err := fill(buf); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := buf.Flush(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}
