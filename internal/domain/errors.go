package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or malformed field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to a record that does not exist in its store.
	ErrNotFound = errors.New("not found")
	// ErrUnavailable is returned when a book has no copy left to issue.
	ErrUnavailable = errors.New("book not available")
	// ErrInvariant marks a copy-count mutation that would break 0 <= available <= total.
	// Callers going through the lending commands never see it.
	ErrInvariant = errors.New("inventory invariant violated")
	// ErrConflict marks a command rejected because of the state of related records.
	ErrConflict = errors.New("conflict")
)

// Invalidf returns an ErrValidation error with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound returns an ErrNotFound error naming the entity and id.
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Conflictf returns an ErrConflict error with a formatted reason.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
