// Package errs defines the error taxonomy shared by the encoder, the coverer,
// the storage adapters and the service layer.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks out-of-range or non-finite coordinates,
	// degenerate regions and non-positive limits.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStorageUnavailable marks failures reported by a storage engine.
	// The driver error is kept in the chain.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FieldError identifies the input field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid argument: %s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidArgument
}

// InvalidArgument returns a *FieldError for field.
func InvalidArgument(field, format string, args ...any) error {
	return &FieldError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Field returns the offending field name when err is a validation error.
func Field(err error) (string, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field, true
	}
	return "", false
}

// Storage wraps a driver error so that it matches ErrStorageUnavailable
// while keeping the original cause reachable with errors.Is / errors.As.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, op, err)
}
