package digest

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Algorithm names a supported fixity digest.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// Default is the algorithm used when none is configured.
const Default = SHA1

// ErrUnknownAlgorithm reports an algorithm name outside the supported set.
var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

// Parse resolves a configured algorithm name. Empty input yields Default.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return Default, nil
	case SHA1:
		return SHA1, nil
	case SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
}

// Known reports whether name is a supported algorithm name.
func Known(name string) bool {
	switch Algorithm(strings.ToLower(name)) {
	case SHA1, SHA256, BLAKE3:
		return true
	}
	return false
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// HexLen is the length of the lowercase hex form of a digest.
func (a Algorithm) HexLen() int {
	return a.New().Size() * 2
}

func (a Algorithm) String() string {
	if a == "" {
		return string(Default)
	}
	return string(a)
}

// Reader digests everything readable from r.
func (a Algorithm) Reader(r io.Reader) (string, error) {
	h := a.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File streams the file at path through the algorithm.
func (a Algorithm) File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	sum, err := a.Reader(f)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return sum, nil
}

// Bytes digests an in-memory buffer.
func (a Algorithm) Bytes(data []byte) string {
	h := a.New()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ValidHex reports whether s looks like a lowercase hex digest for the algorithm.
func (a Algorithm) ValidHex(s string) bool {
	if len(s) != a.HexLen() {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
