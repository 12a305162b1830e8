package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrTypeMismatch indicates the value type doesn't match the expected type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrValidationFailed indicates a setting holds an unacceptable value.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError describes a validation failure for a setting.
type ValidationError struct {
	// Path is the setting path that failed validation.
	Path string
	// Message describes the validation error.
	Message string
	// Value is the invalid value.
	Value any
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (value: %v)", e.Path, e.Message, e.Value)
}

// Is implements error matching for ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

// TypeError is returned when a type conversion fails.
type TypeError struct {
	// Path is the setting path.
	Path string
	// Expected is the expected type name.
	Expected string
	// Actual is the actual type name.
	Actual string
}

// Error implements the error interface.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error for %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// Is implements error matching for TypeError.
func (e *TypeError) Is(target error) bool {
	return target == ErrTypeMismatch
}
