package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/everest/authsvc/internal/rolerequest"
)

// CreateRoleRequest mirrors the fields needed for role request validation.
type CreateRoleRequest struct {
	Role   string
	Reason string
}

// ValidateCreateRoleRequest validates the fields of a new role request.
func ValidateCreateRoleRequest(req CreateRoleRequest) []FieldError {
	var errs []FieldError
	errs = requireRole(errs, req.Role)
	errs = maxText(errs, "reason", req.Reason)
	return errs
}

// ReviewRoleRequest mirrors the fields needed for review validation.
type ReviewRoleRequest struct {
	Status string
	Notes  string
}

// ValidateReviewRoleRequest validates a review decision. Only approved and
// denied are accepted; cancellation has its own endpoint.
func ValidateReviewRoleRequest(req ReviewRoleRequest) []FieldError {
	var errs []FieldError
	switch rolerequest.Status(strings.ToLower(strings.TrimSpace(req.Status))) {
	case rolerequest.StatusApproved, rolerequest.StatusDenied:
	case "":
		errs = append(errs, FieldError{Field: "status", Message: "status is required"})
	default:
		errs = append(errs, FieldError{Field: "status", Message: `status must be "approved" or "denied"`})
	}
	errs = maxText(errs, "notes", req.Notes)
	return errs
}

func maxText(errs []FieldError, field, value string) []FieldError {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > rolerequest.MaxReasonLength {
		return append(errs, FieldError{
			Field:   field,
			Message: fmt.Sprintf("%s must be at most %d characters", field, rolerequest.MaxReasonLength),
		})
	}
	return errs
}
