// Package validation checks request payloads before they reach the service
// layer and reports every invalid field at once.
package validation

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/everest/authsvc/internal/role"
)

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	maxNameLength     = 255
	minPasswordLength = 8
)

func requireName(errs []FieldError, field, value string) []FieldError {
	v := strings.TrimSpace(value)
	if v == "" {
		return append(errs, FieldError{Field: field, Message: field + " is required"})
	}
	if utf8.RuneCountInString(v) > maxNameLength {
		return append(errs, FieldError{Field: field, Message: field + " must be at most 255 characters"})
	}
	return errs
}

func requireEmail(errs []FieldError, value string) []FieldError {
	if strings.TrimSpace(value) == "" {
		return append(errs, FieldError{Field: "email", Message: "email is required"})
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return append(errs, FieldError{Field: "email", Message: "email must be a valid address"})
	}
	return errs
}

func requireRole(errs []FieldError, value string) []FieldError {
	if value == "" {
		return append(errs, FieldError{Field: "role", Message: "role is required"})
	}
	if _, err := role.ParseRole(value); err != nil {
		return append(errs, FieldError{Field: "role", Message: "role must be one of admin, partner, operator, registered_user, guest"})
	}
	return errs
}

func optionalUUID(errs []FieldError, field, value string) []FieldError {
	if value == "" {
		return errs
	}
	if _, err := uuid.Parse(value); err != nil {
		return append(errs, FieldError{Field: field, Message: field + " must be a valid UUID"})
	}
	return errs
}
