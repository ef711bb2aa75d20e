package domain

import "errors"

var (
	// ErrValidation marks malformed input rejected before auth logic runs.
	ErrValidation = errors.New("validation failed")
	// ErrEmailTaken is the conflict raised when registering an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is deliberately generic: it never tells whether the email exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated covers missing, malformed, expired or orphaned tokens alike.
	ErrUnauthenticated = errors.New("please authenticate")
	// ErrForbidden means the identity is valid but its role is not allowed.
	ErrForbidden = errors.New("access denied: insufficient permissions")
	// ErrForbiddenRole is returned when public registration asks for a privileged role.
	ErrForbiddenRole = errors.New("role cannot be self-assigned")
	// ErrTooManyAttempts is returned by the login throttle.
	ErrTooManyAttempts = errors.New("too many login attempts, try again later")
	// ErrMFARequired means the password matched but a TOTP code is still needed.
	ErrMFARequired    = errors.New("mfa_required")
	ErrInvalidMFACode = errors.New("invalid mfa code")
	ErrNotFound       = errors.New("not found")
)
