package config

import (
	"errors"
	"fmt"
)

// LoadError wraps a failure to read or parse a configuration file.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError creates a new load error.
func NewLoadError(file string, err error) error {
	return &LoadError{File: file, Err: err}
}

// ValidationError marks a configuration option that violates a constraint.
type ValidationError struct {
	Option  string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration option '%s': %s", e.Option, e.Message)
}

// NewValidationError creates a new validation error.
func NewValidationError(option, message string) error {
	return &ValidationError{Option: option, Message: message}
}

// IsValidationError checks if an error is a configuration validation error.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
