package model

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors below wrap one of these so callers can branch
// with errors.Is on the kind alone.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate")
	ErrNotFound   = errors.New("not found")
	ErrRetryable  = errors.New("retryable")
)

var (
	ErrInvalidPool         = fmt.Errorf("invalid pool: %w", ErrValidation)
	ErrInvalidSubscription = fmt.Errorf("invalid subscription: %w", ErrValidation)
	ErrExtraction          = fmt.Errorf("extraction: %w", ErrValidation)
	ErrInvalidEvent        = fmt.Errorf("invalid event: %w", ErrValidation)

	ErrDuplicatePool         = fmt.Errorf("pool: %w", ErrDuplicate)
	ErrDuplicateSubscription = fmt.Errorf("subscription: %w", ErrDuplicate)
	ErrEventInFlight         = fmt.Errorf("event in flight: %w", ErrDuplicate)

	ErrUnknownSubscription = fmt.Errorf("subscription %w", ErrNotFound)
	ErrUnknownPool         = fmt.Errorf("pool %w", ErrNotFound)
)

// FieldError records which entity and field failed and why.
type FieldError struct {
	Kind   error
	Entity string
	ID     string
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	msg := e.Kind.Error()
	if e.ID != "" {
		msg = fmt.Sprintf("%s [%s %s]", msg, e.Entity, e.ID)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

// NewFieldError builds a FieldError of the given kind.
func NewFieldError(kind error, entity, id, field, reason string) *FieldError {
	return &FieldError{Kind: kind, Entity: entity, ID: id, Field: field, Reason: reason}
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDuplicate reports whether err is an identifier collision.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// IsNotFound reports whether err references an unknown identifier.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
