package domain

import "errors"

// Caller-facing redemption failures.
var (
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrScopeMismatch         = errors.New("token scope does not match resource")
	ErrBootstrapFailed       = errors.New("identity bootstrap failed")
	ErrSessionMintFailed     = errors.New("session mint failed")
)

// Internal causes.
var (
	ErrMalformedToken      = errors.New("malformed token")
	ErrTokenNotFound       = errors.New("token not found")
	ErrTokenExpired        = errors.New("token expired")
	ErrDuplicateToken      = errors.New("duplicate token")
	ErrStaleResource       = errors.New("bound resource no longer exists")
	ErrAssignmentNotFound  = errors.New("assignment not found")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrCredentialManaged   = errors.New("identity credential is externally managed")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidMintArgument = errors.New("invalid mint argument")
)
