package repositories

import (
	"errors"
	"fmt"
)

// ErrorKind categorises repository failures.
type ErrorKind int

const (
	// ErrorKindUnknown is an unclassified failure.
	ErrorKindUnknown ErrorKind = iota
	// ErrorKindNotFound means the record does not exist.
	ErrorKindNotFound
	// ErrorKindConflict means a precondition or uniqueness check failed.
	ErrorKindConflict
	// ErrorKindUnavailable means the backing store could not be reached.
	ErrorKindUnavailable
)

// Error is the RepositoryError returned by the in-memory store and by typed repositories
// that detect a condition themselves.
type Error struct {
	Op   string
	Kind ErrorKind
	Err  error
}

// NewNotFoundError reports a missing record.
func NewNotFoundError(op, entity, id string) *Error {
	return &Error{Op: op, Kind: ErrorKindNotFound, Err: fmt.Errorf("%s %q not found", entity, id)}
}

// NewConflictError reports a failed precondition.
func NewConflictError(op, message string) *Error {
	return &Error{Op: op, Kind: ErrorKindConflict, Err: errors.New(message)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *Error) IsNotFound() bool    { return e != nil && e.Kind == ErrorKindNotFound }
func (e *Error) IsConflict() bool    { return e != nil && e.Kind == ErrorKindConflict }
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == ErrorKindUnavailable }

// IsNotFound reports whether err is a RepositoryError describing a missing record.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err is a RepositoryError describing a conflict.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
