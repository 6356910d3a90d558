package repo

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by One when a query matches no rows.
var ErrNotFound = errors.New("no rows matched the query")

// StorageErrorKind classifies adapter failures.
type StorageErrorKind string

const (
	StorageConnection StorageErrorKind = "connection"
	StorageTimeout    StorageErrorKind = "timeout"
	StorageConstraint StorageErrorKind = "constraint_violation"
	StorageInternal   StorageErrorKind = "internal"
)

// StorageError is an execution-level failure surfaced by the storage
// adapter. Constraint violations carry the name of the violated rule so the
// repo can map them back onto a changeset; every other kind is terminal for
// the call and returned to the caller unchanged. The core never retries.
type StorageError struct {
	Kind       StorageErrorKind
	Constraint string
	Err        error
}

// Error returns the error message for a StorageError.
func (e *StorageError) Error() string {
	if e.Kind == StorageConstraint {
		return fmt.Sprintf("storage error (%s): constraint '%s' violated", e.Kind, e.Constraint)
	}
	if e.Err != nil {
		return fmt.Sprintf("storage error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("storage error (%s)", e.Kind)
}

// Unwrap exposes the underlying driver error.
func (e *StorageError) Unwrap() error {
	return e.Err
}
