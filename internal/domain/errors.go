package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a position has no remote entry
	ErrNotFound = errors.New("not found")

	// ErrTransient indicates a retryable network or service failure
	ErrTransient = errors.New("transient failure")

	// ErrDuplicateName indicates an append would introduce a name already in the catalog
	ErrDuplicateName = errors.New("duplicate name")

	// ErrOutOfOrder indicates an append whose positions are not ascending past the tail
	ErrOutOfOrder = errors.New("entries out of order")

	// ErrBusy indicates the loader is running a conflicting operation
	ErrBusy = errors.New("loader busy")
)

// NotFoundError is returned when the remote service has nothing at a position.
type NotFoundError struct {
	Position int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("entry at position %d not found", e.Position)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// TransientError wraps a failure that may succeed on retry.
type TransientError struct {
	Position int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure fetching position %d: %v", e.Position, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

func (e *TransientError) Is(target error) bool {
	return target == ErrTransient
}

// DuplicateNameError reports the first name that collided during an append.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("entry %q already exists in catalog", e.Name)
}

func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}
