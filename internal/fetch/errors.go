package fetch

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that the remote service answered but had no record for
// the requested identifier.
var ErrNotFound = errors.New("not found")

// ConnectionError wraps a transport-level failure talking to a collaborator.
// Surfaced to the user as a short notice, never retried automatically.
type ConnectionError struct {
	Source string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to %s: %v", e.Source, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ParseError wraps a malformed collaborator response.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s response: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
