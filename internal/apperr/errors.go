// Package apperr holds the sentinel errors shared by the service, store and API layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidInput  = errors.New("invalid input")

	// ErrIllegalOperation is returned when a reorder is requested on a note whose
	// legality flag for that operation is false, or when the move would create a cycle.
	ErrIllegalOperation = errors.New("illegal operation")

	// ErrStaleSnapshot is a conflict where a reorder was computed against an
	// outline revision that is no longer current.
	ErrStaleSnapshot = fmt.Errorf("stale snapshot: %w", ErrConflict)

	// ErrBusy is returned while another reorder for the same tree is still in flight.
	ErrBusy = errors.New("reorder in flight")
)
