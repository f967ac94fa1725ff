package entity

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the domain layer.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError carries the field name alongside the failure message so
// callers can report which part of a profile or request was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}
