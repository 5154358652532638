package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Security plane errors. These are expected negative outcomes: the
	// engines return them as values, they never cross the API boundary
	// as panics.
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrAccountLocked      = errors.New("account is temporarily locked")
	ErrIPLocked           = errors.New("too many attempts from this address")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
