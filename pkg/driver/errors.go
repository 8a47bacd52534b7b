package driver

import (
	"errors"
	"fmt"
)

// Resolution failure kinds. Declining is not an error: a driver that does
// not handle an identifier returns a nil result and a nil error.
var (
	ErrMalformedIdentifier = errors.New("malformed identifier")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrBackendIO           = errors.New("backend i/o failure")
	ErrBrokenChain         = errors.New("broken chain")
	ErrContinuationFetch   = errors.New("continuation fetch failure")
	ErrNoDriverMatched     = errors.New("no driver matched")
	ErrConfiguration       = errors.New("configuration error")
	ErrTooManyRedirects    = errors.New("too many redirects")
	ErrChainTooLong        = errors.New("chain too long")
	ErrNotSupported        = errors.New("not supported")
)

// ResolutionError is a committed resolution failure for one identifier.
type ResolutionError struct {
	Kind       error
	Identifier string
	Err        error
}

// Fail creates a ResolutionError of the given kind.
func Fail(kind error, identifier string, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Identifier: identifier, Err: err}
}

// Failf creates a ResolutionError with a formatted cause.
func Failf(kind error, identifier string, format string, args ...any) *ResolutionError {
	return Fail(kind, identifier, fmt.Errorf(format, args...))
}

func (e *ResolutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v for %s", e.Kind, e.Identifier)
	}
	return fmt.Sprintf("%v for %s: %v", e.Kind, e.Identifier, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}
