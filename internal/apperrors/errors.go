package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates there is no sales history for the requested selection
	ErrNotFound = errors.New("no sales data found")

	// ErrInvalidData indicates malformed or missing required columns
	ErrInvalidData = errors.New("invalid sales data")

	// ErrForecastFailed indicates the model failed during fit or predict
	ErrForecastFailed = errors.New("forecast failed")
)

// ValidationError represents a rejected input with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// InvalidData wraps ErrInvalidData with a formatted reason.
func InvalidData(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidData, fmt.Sprintf(format, args...))
}

// ForecastFailed wraps ErrForecastFailed around the underlying cause.
func ForecastFailed(cause error) error {
	return fmt.Errorf("%w: %w", ErrForecastFailed, cause)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
