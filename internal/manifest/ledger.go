package manifest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"imgpkg/internal/digest"
	"imgpkg/internal/fileutil"
)

var (
	// ErrNotFound reports a filename with no ledger entry.
	ErrNotFound = errors.New("manifest entry not found")
	// ErrMalformed reports a ledger line that cannot be parsed.
	ErrMalformed = errors.New("malformed manifest line")
)

// ParseError locates a malformed ledger line.
type ParseError struct {
	Path string
	Line int
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v: %q", e.Path, e.Line, ErrMalformed, e.Text)
}

func (e *ParseError) Unwrap() error { return ErrMalformed }

// FileName returns the ledger filename for an algorithm, e.g. manifest-sha1.txt.
func FileName(alg digest.Algorithm) string {
	return "manifest-" + alg.String() + ".txt"
}

// IsLedgerName reports whether name looks like any algorithm's ledger file.
func IsLedgerName(name string) bool {
	if !strings.HasPrefix(name, "manifest-") || !strings.HasSuffix(name, ".txt") {
		return false
	}
	return digest.Known(strings.TrimSuffix(strings.TrimPrefix(name, "manifest-"), ".txt"))
}

// Ledger maps package-relative filenames to content digests and mirrors every
// mutation to its file immediately.
type Ledger struct {
	path    string
	alg     digest.Algorithm
	entries map[string]string
}

// Create starts an empty ledger at path and writes it.
func Create(path string, alg digest.Algorithm) (*Ledger, error) {
	l := &Ledger{path: path, alg: alg, entries: make(map[string]string)}
	if err := l.flush(); err != nil {
		return nil, err
	}
	return l, nil
}

// Load parses an existing ledger file. A missing file yields an error
// wrapping fs.ErrNotExist; any malformed line yields a *ParseError.
func Load(path string, alg digest.Algorithm) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}
	entries, err := parse(path, data, alg)
	if err != nil {
		return nil, err
	}
	return &Ledger{path: path, alg: alg, entries: entries}, nil
}

func parse(path string, data []byte, alg digest.Algorithm) (map[string]string, error) {
	entries := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		sum, name, ok := strings.Cut(text, " ")
		if !ok || !validName(name) || !alg.ValidHex(sum) {
			return nil, &ParseError{Path: path, Line: line, Text: text}
		}
		entries[name] = sum
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return entries, nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string { return l.path }

// Algorithm returns the digest algorithm the ledger records.
func (l *Ledger) Algorithm() digest.Algorithm { return l.alg }

// Dir returns the directory the ledger describes.
func (l *Ledger) Dir() string { return filepath.Dir(l.path) }

// Len returns the number of entries.
func (l *Ledger) Len() int { return len(l.entries) }

// Get returns the recorded digest for name.
func (l *Ledger) Get(name string) (string, error) {
	sum, ok := l.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return sum, nil
}

// Has reports whether name has an entry.
func (l *Ledger) Has(name string) bool {
	_, ok := l.entries[name]
	return ok
}

// Set records digest for name and rewrites the ledger file.
func (l *Ledger) Set(name, sum string) error {
	if !validName(name) {
		return fmt.Errorf("manifest set: invalid filename %q", name)
	}
	if !l.alg.ValidHex(sum) {
		return fmt.Errorf("manifest set %s: invalid %s digest %q", name, l.alg, sum)
	}
	l.entries[name] = sum
	return l.flush()
}

// SetFile digests the file name inside the ledger directory and records it.
func (l *Ledger) SetFile(name string) (string, error) {
	sum, err := l.alg.File(filepath.Join(l.Dir(), name))
	if err != nil {
		return "", err
	}
	return sum, l.Set(name, sum)
}

// Remove deletes the entry for name and rewrites the ledger file.
func (l *Ledger) Remove(name string) error {
	if _, ok := l.entries[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(l.entries, name)
	return l.flush()
}

// Snapshot returns a copy of the entries; mutating it does not affect the ledger.
func (l *Ledger) Snapshot() map[string]string {
	return maps.Clone(l.entries)
}

// Names returns entry filenames in ledger order.
func (l *Ledger) Names() []string {
	return slices.Sorted(maps.Keys(l.entries))
}

// Regenerate discards the current entries and digests every regular file in
// the ledger directory, skipping ledger files, OS artifacts and exclude.
func (l *Ledger) Regenerate(exclude ...string) error {
	skip := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		skip[name] = struct{}{}
	}
	dirEntries, err := os.ReadDir(l.Dir())
	if err != nil {
		return fmt.Errorf("regenerate manifest: %w", err)
	}
	entries := make(map[string]string, len(dirEntries))
	for _, entry := range dirEntries {
		name := entry.Name()
		if !entry.Type().IsRegular() || IsLedgerName(name) || IsSystemArtifact(name) {
			continue
		}
		if _, ok := skip[name]; ok {
			continue
		}
		if !validName(name) {
			return fmt.Errorf("regenerate manifest: invalid filename %q", name)
		}
		sum, err := l.alg.File(filepath.Join(l.Dir(), name))
		if err != nil {
			return fmt.Errorf("regenerate manifest: %w", err)
		}
		entries[name] = sum
	}
	l.entries = entries
	return l.flush()
}

// IsSystemArtifact reports OS-generated files that never belong in a ledger.
// Other dotfiles are ordinary package content.
func IsSystemArtifact(name string) bool {
	switch name {
	case ".DS_Store", "Thumbs.db", "desktop.ini":
		return true
	}
	// AppleDouble resource forks.
	return strings.HasPrefix(name, "._")
}

// validName reports whether name can be written as a single ledger line and
// read back unchanged: non-empty, no path separator, no control characters.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r == '/' || r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

func (l *Ledger) flush() error {
	var buf bytes.Buffer
	for _, name := range l.Names() {
		buf.WriteString(l.entries[name])
		buf.WriteByte(' ')
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	if err := fileutil.WriteFileAtomic(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", l.path, err)
	}
	return nil
}
