package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrSettingsNotFound    = fmt.Errorf("settings %w", ErrNotFound)
)

// ValidationError reports a malformed input field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + " " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
