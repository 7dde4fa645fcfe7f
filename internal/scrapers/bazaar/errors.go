package bazaar

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument is matched by every error returned from the parser.
var ErrMalformedDocument = errors.New("malformed document")

// ParseError names the field that could not be extracted from a listing.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed document: %s: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedDocument
}

func malformed(field string, format string, args ...any) error {
	return &ParseError{Field: field, Err: fmt.Errorf(format, args...)}
}
