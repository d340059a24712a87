package validation

import (
	"fmt"
	"strings"

	"github.com/kbukum/chanflow/errors"
)

// Validator collects validation errors.
type Validator struct {
	errors []FieldError
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// New creates a new Validator.
func New() *Validator {
	return &Validator{}
}

// AddError adds a field error.
func (v *Validator) AddError(field, message string) {
	v.errors = append(v.errors, FieldError{Field: field, Message: message})
}

// HasErrors returns true if there are validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors.
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Validate returns an INVALID_CONFIG error if any check failed, nil otherwise.
func (v *Validator) Validate() error {
	if !v.HasErrors() {
		return nil
	}
	return newInvalidConfig(v.errors)
}

// Positive checks value >= 1.
func (v *Validator) Positive(field string, value int) *Validator {
	if value < 1 {
		v.AddError(field, fmt.Sprintf("must be at least 1 (got %d)", value))
	}
	return v
}

// NotNil checks that a required callback or handle was supplied.
func (v *Validator) NotNil(field string, isNil bool) *Validator {
	if isNil {
		v.AddError(field, "is required")
	}
	return v
}

// ExactlyOne checks that exactly one of the named alternatives was set.
// set holds how many were set.
func (v *Validator) ExactlyOne(field string, set int, alternatives ...string) *Validator {
	switch {
	case set == 0:
		v.AddError(field, "one of "+strings.Join(alternatives, ", ")+" is required")
	case set > 1:
		v.AddError(field, fmt.Sprintf("exactly one of %s may be set (got %d)", strings.Join(alternatives, ", "), set))
	}
	return v
}

// OneOf checks if value is in the allowed list.
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

// Custom adds an error if condition is false.
func (v *Validator) Custom(condition bool, field, message string) *Validator {
	if !condition {
		v.AddError(field, message)
	}
	return v
}

func newInvalidConfig(fields []FieldError) *errors.AppError {
	if len(fields) == 1 {
		return errors.InvalidConfig(fields[0].Field, fields[0].Message).WithDetail("fields", fields)
	}
	messages := make([]string, len(fields))
	for i, e := range fields {
		messages[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return errors.New(errors.ErrCodeInvalidConfig, strings.Join(messages, "; ")).WithDetail("fields", fields)
}
