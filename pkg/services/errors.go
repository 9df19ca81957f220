package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrInsufficientData is returned when a service has no usable telemetry
	// for the requested window
	ErrInsufficientData = errors.New("insufficient telemetry data")

	// ErrTelemetryUnavailable is returned when the telemetry store itself
	// cannot be reached
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")

	// ErrStorageFailure is returned when a repository operation fails
	ErrStorageFailure = errors.New("storage failure")

	// ErrRecommendationInactive is returned when a lifecycle action targets a
	// recommendation that is no longer active
	ErrRecommendationInactive = errors.New("recommendation is no longer active")
)

// ValidationError wraps field-specific validation errors
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// storageErr tags a repository failure with the storage sentinel while
// preserving the underlying chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageFailure, err)
}
