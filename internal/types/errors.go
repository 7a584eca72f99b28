package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	// ErrFieldNotFound means a probe exhausted every candidate. The harvester
	// absorbs it and stores the probe's fallback value.
	ErrFieldNotFound = errors.New("field not found")

	// ErrDocumentUnavailable means the document capability itself failed
	// (navigation error, closed page, lost browser). It aborts a harvest.
	ErrDocumentUnavailable = errors.New("document unavailable")

	ErrInvalidURL      = errors.New("invalid URL")
	ErrInvalidSelector = errors.New("invalid selector")
	ErrNoMatch         = errors.New("no element matched")
)

// DocumentError wraps a failure of the document capability.
// errors.Is(err, ErrDocumentUnavailable) reports true for every DocumentError.
type DocumentError struct {
	Op  string
	URL string
	Err error
}

func (e *DocumentError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("document %s failed for %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("document %s failed: %v", e.Op, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

func (e *DocumentError) Is(target error) bool { return target == ErrDocumentUnavailable }

// IsDocumentUnavailable reports whether err should abort a harvest.
func IsDocumentUnavailable(err error) bool {
	return errors.Is(err, ErrDocumentUnavailable)
}

// ParseError wraps a malformed abbreviated count such as "12.x3K".
type ParseError struct {
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse count %q: %v", e.Text, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SelectorError wraps a selector that cannot be compiled.
type SelectorError struct {
	Kind string
	Expr string
	Err  error
}

func (e *SelectorError) Error() string {
	return fmt.Sprintf("invalid %s selector %q: %v", e.Kind, e.Expr, e.Err)
}

func (e *SelectorError) Unwrap() error { return e.Err }

func (e *SelectorError) Is(target error) bool { return target == ErrInvalidSelector }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
