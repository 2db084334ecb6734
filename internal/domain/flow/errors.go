package flow

import "fmt"

// ValidationError rejects one field of a message. Other fields of the same
// message are unaffected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for a flow field.
func Invalid(f Field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: f.String(), Reason: fmt.Sprintf(format, args...)}
}
