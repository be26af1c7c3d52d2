package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("invalid request")
	// ErrEmbeddingsUnavailable is returned by RequestIngest when no embedding model is configured.
	ErrEmbeddingsUnavailable = errors.New("embeddings are not configured")
)

// ValidationError rejects a request before any job is started.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
