package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no valid identity is attached to the request
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden means the identity lacks an admin role or its profile could not be read
	ErrForbidden = errors.New("admin access required")
	ErrNotFound  = errors.New("not found")
	// ErrValidation is matched by every *ValidationError
	ErrValidation = errors.New("validation failed")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError names the entity that was absent
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// OperationError is a backend failure. Its message is generic; the cause is
// kept for logs only.
type OperationError struct {
	Op     string
	Entity string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("failed to %s %s", e.Op, e.Entity)
}

func (e *OperationError) Unwrap() error { return e.Err }

// IsBackendFailure reports whether err is an *OperationError
func IsBackendFailure(err error) bool {
	var opErr *OperationError
	return errors.As(err, &opErr)
}
