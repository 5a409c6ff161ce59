package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared by the store, scheduler and import/export layers.
var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrCorruptRow = errors.New("corrupt row")
)

// FieldError describes a validation failure for one field.
// Field is a dotted path such as "morphology.ism.gender" or "entries[3].tags".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError collects every field error found in a value.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s", e.Errors[0])
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("validation: %d errors: %s", len(e.Errors), strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

// CorruptFieldError reports a stored JSON column that failed to parse or validate.
type CorruptFieldError struct {
	EntryID string
	Word    string
	Field   string
	Reason  string
}

func (e *CorruptFieldError) Error() string {
	return fmt.Sprintf("entry %s (%s): corrupt %s: %s", e.EntryID, e.Word, e.Field, e.Reason)
}

func (e *CorruptFieldError) Unwrap() error { return ErrCorruptRow }

// fieldErrors accumulates FieldErrors under a path prefix.
type fieldErrors struct {
	prefix string
	errs   []FieldError
}

func (f *fieldErrors) add(field, format string, args ...any) {
	path := field
	if f.prefix != "" {
		path = f.prefix + "." + field
	}
	f.errs = append(f.errs, FieldError{Field: path, Message: fmt.Sprintf(format, args...)})
}

func (f *fieldErrors) err() error {
	if len(f.errs) == 0 {
		return nil
	}
	return &ValidationError{Errors: f.errs}
}
