package normalize

import (
	"errors"
	"fmt"
)

// Common normalization errors
var (
	// ErrNotAnObject is returned when the extraction payload is not a JSON object.
	ErrNotAnObject = errors.New("extraction record is not an object")

	// ErrMalformedRecord is returned when the extraction payload fails the
	// structural schema check (e.g. line_items is not an array of objects).
	ErrMalformedRecord = errors.New("malformed extraction record")

	// ErrUncoercibleValue is returned when a field value cannot be coerced to
	// its declared semantic type.
	ErrUncoercibleValue = errors.New("value cannot be coerced")
)

// NormalizationError reports a field value that cannot be coerced to its
// declared semantic type. It is fatal to that invoice's processing; business
// rule findings are never reported this way.
type NormalizationError struct {
	// Field is the raw extraction key that failed (e.g. "total_amount",
	// "line_items[2].quantity").
	Field string

	// Value is the offending raw value.
	Value interface{}

	// Reason describes why coercion failed.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *NormalizationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("normalize: field %q: %s (value: %v)", e.Field, e.Reason, e.Value)
	}
	return fmt.Sprintf("normalize: %s", e.Reason)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *NormalizationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUncoercibleValue
}

// NewNormalizationError creates a NormalizationError for a single field.
func NewNormalizationError(field string, value interface{}, reason string) *NormalizationError {
	return &NormalizationError{Field: field, Value: value, Reason: reason}
}
