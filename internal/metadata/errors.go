package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict reports metadata that cannot be merged or stored at the
	// requested key.
	ErrConflict = errors.New("metadata conflict")
	// ErrKeyNotFound reports a key with no stored value.
	ErrKeyNotFound = errors.New("metadata key not found")
	// ErrMalformedFact reports an extracted value that cannot be interpreted.
	ErrMalformedFact = errors.New("malformed metadata fact")
	// ErrMalformed reports a metadata file that does not have the expected shape.
	ErrMalformed = errors.New("malformed metadata document")
)

// ConflictError describes a MetadataConflict.
type ConflictError struct {
	Key      string
	Existing string
	Incoming string
	Reason   string
}

func (e *ConflictError) Error() string {
	if e.Existing != "" || e.Incoming != "" {
		return fmt.Sprintf("%v at %s: %s (have %q, got %q)", ErrConflict, e.Key, e.Reason, e.Existing, e.Incoming)
	}
	return fmt.Sprintf("%v at %s: %s", ErrConflict, e.Key, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ParseError wraps a failure to decode a metadata file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse metadata %s: %v", e.Path, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }
