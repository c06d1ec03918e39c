package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrDuplicateKey is returned when a ticket id has already been recorded.
	ErrDuplicateKey = errors.New("storage: ticket id already recorded")
	// ErrNotFound is returned when no record matches the ticket id.
	ErrNotFound = errors.New("storage: transaction not found")
	// ErrInvalidStatus rejects status values outside the lifecycle.
	ErrInvalidStatus = errors.New("storage: invalid status")
)

// WriteError wraps a backend failure during a mutating operation.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func writeErr(op string, err error) error {
	return &WriteError{Op: op, Err: err}
}
