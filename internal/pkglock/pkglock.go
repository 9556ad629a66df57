// Package pkglock serializes work on a single image package across processes
// with advisory file locks.
package pkglock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"imgpkg/internal/digest"
)

// ErrLocked reports a package already locked by another holder.
var ErrLocked = errors.New("package is locked by another process")

// Lock is a held package lock.
type Lock struct {
	id   string
	path string
	lock *flock.Flock
}

// Path returns the lock file location for id under dir. IDs that need
// sanitizing get a digest suffix so that distinct ids never share a lock.
func Path(dir, id string) string {
	return filepath.Join(dir, sanitize(id)+".lock")
}

// Acquire takes the lock for id without blocking.
func Acquire(dir, id string) (*Lock, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("pkglock: empty package id")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	path := Path(dir, id)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrLocked)
	}
	return &Lock{id: id, path: path, lock: fl}, nil
}

func (l *Lock) ID() string   { return l.id }
func (l *Lock) Path() string { return l.path }

// Release drops the lock. The lock file is left in place.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

func sanitize(id string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
	if safe == id {
		return id
	}
	// '~' never survives the mapping above, so suffixed names cannot clash
	// with an id that needed no sanitizing.
	return safe + "~" + digest.BLAKE3.Bytes([]byte(id))[:12]
}
