package validation

import "strings"

// LoginRequest mirrors the fields needed for login validation.
type LoginRequest struct {
	Username string
	Password string
}

// ValidateLoginRequest only checks presence; credential errors come from the
// identity provider.
func ValidateLoginRequest(req LoginRequest) []FieldError {
	var errs []FieldError
	if strings.TrimSpace(req.Username) == "" {
		errs = append(errs, FieldError{Field: "username", Message: "username is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	return errs
}

// RegisterRequest mirrors the fields needed for registration validation.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// ValidateRegisterRequest validates a self-service registration.
func ValidateRegisterRequest(req RegisterRequest) []FieldError {
	var errs []FieldError
	errs = requireName(errs, "username", req.Username)
	errs = requireEmail(errs, req.Email)
	errs = requirePassword(errs, req.Password)
	return errs
}

func requirePassword(errs []FieldError, password string) []FieldError {
	if password == "" {
		return append(errs, FieldError{Field: "password", Message: "password is required"})
	}
	if len(password) < minPasswordLength {
		return append(errs, FieldError{Field: "password", Message: "password must be at least 8 characters"})
	}
	return errs
}
