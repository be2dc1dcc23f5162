// Package errors defines the typed error kinds the search core surfaces,
// per spec.md §7.
package errors

import (
	"fmt"
	"time"
)

// Kind classifies an error surfaced by the core.
type Kind string

const (
	KindUnsupportedExtension Kind = "unsupported_extension"
	KindQueryParse           Kind = "query_parse"
	KindFileIO               Kind = "file_io"
	KindOutOfBounds          Kind = "out_of_bounds"
	KindTreeSitterParse      Kind = "tree_sitter_parse"
	KindPatternCompile       Kind = "pattern_compile"
)

// CoreError wraps an underlying error with the kind, operation, and path
// context needed to decide whether it is file-level (recoverable, skip and
// count) or query-level (surfaced to the caller).
type CoreError struct {
	Kind        Kind
	Operation   string
	Path        string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// New creates a CoreError for the given kind and operation.
func New(kind Kind, op string, err error) *CoreError {
	return &CoreError{
		Kind:      kind,
		Operation: op,
		Underlying: err,
		Timestamp: time.Now(),
	}
}

// WithPath attaches the file or query path this error occurred against.
func (e *CoreError) WithPath(path string) *CoreError {
	e.Path = path
	return e
}

// WithRecoverable marks whether a caller may skip this error and continue.
func (e *CoreError) WithRecoverable(recoverable bool) *CoreError {
	e.Recoverable = recoverable
	return e
}

func (e *CoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable reports whether the caller may skip this error (file-level)
// rather than surface it (query-level), per §7's propagation policy.
func (e *CoreError) IsRecoverable() bool {
	return e.Recoverable
}

// Unsupported builds a file-level "unsupported extension" error (§4.7).
func Unsupported(ext, path string) *CoreError {
	return New(KindUnsupportedExtension, "acquire_parser", fmt.Errorf("no grammar registered for extension %q", ext)).
		WithPath(path).
		WithRecoverable(true)
}

// FileIO builds a recoverable file-level I/O error.
func FileIO(op, path string, err error) *CoreError {
	return New(KindFileIO, op, err).WithPath(path).WithRecoverable(true)
}

// TreeSitterParse builds a recoverable parse-failure error for one file.
func TreeSitterParse(path string, err error) *CoreError {
	return New(KindTreeSitterParse, "parse_for_blocks", err).WithPath(path).WithRecoverable(true)
}

// QueryParse builds a non-recoverable query-compilation error.
func QueryParse(query string, err error) *CoreError {
	return New(KindQueryParse, "compile", err).WithPath(query).WithRecoverable(false)
}

// OutOfBounds builds a non-recoverable extract() line-out-of-range error.
func OutOfBounds(path string, line, total int) *CoreError {
	return New(KindOutOfBounds, "extract", fmt.Errorf("line %d is outside file range (1..%d)", line, total)).
		WithPath(path).
		WithRecoverable(false)
}
