package todos

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a todo does not exist or belongs to another user
	ErrNotFound = errors.New("todo not found")
	// ErrCategorization wraps failures of the categorization service
	ErrCategorization = errors.New("categorization failed")
	// ErrCategorizerUnavailable is wrapped when no categorizer is configured
	ErrCategorizerUnavailable = errors.New("no categorizer configured")
)

// ValidationError reports invalid input for a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
