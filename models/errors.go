package models

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("record not found")

// ValidationError reports a model invariant that was violated on save.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
