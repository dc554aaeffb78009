package shared

import "errors"

var (
	// ErrNotAuthenticated indicates the request carried no usable credentials.
	ErrNotAuthenticated = errors.New("no token provided")
	// ErrInvalidToken indicates a garbled, expired, revoked or forged token.
	ErrInvalidToken = errors.New("invalid token")
	// ErrAccountInactive indicates a deactivated account. It is reported to
	// callers exactly like an unknown user.
	ErrAccountInactive = errors.New("user not found or inactive")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden indicates an authenticated actor failed a role or tenant check.
	ErrForbidden = errors.New("insufficient permissions")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates a uniqueness or state-transition conflict.
	ErrConflict = errors.New("conflict")
)
