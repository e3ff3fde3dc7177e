package well

import (
	"errors"
	"fmt"
)

// ErrDuplicateRecord is returned by a Database when a record with the same ID
// has already been appended.
var ErrDuplicateRecord = errors.New("record already exists")

// ErrNotFound is returned when a named snapshot does not exist in the vault.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed caller input. It is always surfaced to
// the caller and never swallowed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// UpstreamServiceError wraps a failure of the external text-completion call,
// including timeouts and unparseable responses.
type UpstreamServiceError struct {
	Err error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream completion failed: %v", e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

// SerializationError reports an insight payload that cannot be stored as plain JSON.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("payload is not serializable: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IsValidation reports whether err (or anything it wraps) is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
