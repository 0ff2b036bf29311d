package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across packages.
var (
	// ErrNotFound indicates an unknown debate or participant id.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, such as a duplicate participant name.
	ErrConflict = errors.New("conflict")
	// ErrInvalid indicates invalid caller input.
	ErrInvalid = errors.New("invalid input")
	// ErrPersistence indicates the store failed to read or write.
	ErrPersistence = errors.New("persistence failure")
)

// NotFoundError names the resource that could not be found.
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Unwrap lets errors.Is match ErrNotFound.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// PersistenceError wraps a failure reported by the store.
type PersistenceError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying store error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrPersistence.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// NewPersistenceError wraps err, or returns nil if err is nil.
func NewPersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// Invalidf returns an error wrapping ErrInvalid.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
