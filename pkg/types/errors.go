package types

import "errors"

// Domain errors shared across packages
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNotFound       = errors.New("not found")

	ErrInvalidChunkID = errors.New("invalid chunk ID")
	ErrInvalidDocID   = errors.New("invalid document ID")
	ErrInvalidRank    = errors.New("rank must be >= 1")
	ErrEmptyContent   = errors.New("content cannot be empty")
)

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is reports ValidationError as an ErrInvalidRequest.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
