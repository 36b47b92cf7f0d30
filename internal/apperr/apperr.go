// Package apperr declares the error kinds shared by every component of the
// service. Components wrap one of these kinds with their own sentinel or with
// fmt.Errorf("%w: ...") and callers classify failures with errors.Is.
package apperr

import "errors"

var (
	// ErrAuthenticationFailed is returned for bad credentials. It never
	// distinguishes an unknown user from a wrong password.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidToken is returned for expired, malformed or unverifiable tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrUnauthorized is returned when no authenticated identity is present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller is authenticated but not permitted.
	ErrForbidden = errors.New("forbidden")

	ErrUserNotFound = errors.New("user not found")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// ErrInvalidOperation marks a structural invariant violation, such as a
	// role that does not match the company assignment.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrBusinessRule marks an operation that is structurally valid but
	// forbidden by the current workflow state.
	ErrBusinessRule = errors.New("business rule violation")

	ErrActiveRequestExists = errors.New("an active role request already exists")

	// ErrIdentityProviderUnavailable is transient and may be retried by the caller.
	ErrIdentityProviderUnavailable = errors.New("identity provider unavailable")

	ErrValidation = errors.New("validation error")
)

// Kind returns the taxonomy kind err belongs to, or nil when err is not
// classified.
func Kind(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ActiveRequestExists is checked before BusinessRule and Conflict so that the
// most specific kind wins.
var kinds = []error{
	ErrAuthenticationFailed,
	ErrInvalidToken,
	ErrUnauthorized,
	ErrForbidden,
	ErrUserNotFound,
	ErrNotFound,
	ErrActiveRequestExists,
	ErrConflict,
	ErrInvalidOperation,
	ErrBusinessRule,
	ErrIdentityProviderUnavailable,
	ErrValidation,
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrIdentityProviderUnavailable)
}
