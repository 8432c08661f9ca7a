// Package errorutil maps domain failures onto HTTP-facing errors.
package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spec-kit/link-access-service/internal/domain"
)

// LinkDeniedMessage is the only text shown for a failed redemption.
const LinkDeniedMessage = "this link is invalid or has expired"

// LinkDeniedAction tells the recipient how to obtain a fresh link.
const LinkDeniedAction = "request a new link from your administrator"

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewLinkDenied is the generic redemption failure. It never says which stage failed.
func NewLinkDenied() error {
	return NewDomainError("LINK_INVALID", LinkDeniedMessage, http.StatusUnauthorized, map[string]any{
		"action": LinkDeniedAction,
	})
}

func isRedemptionFailure(err error) bool {
	return errors.Is(err, domain.ErrInvalidOrExpiredToken) ||
		errors.Is(err, domain.ErrScopeMismatch) ||
		errors.Is(err, domain.ErrBootstrapFailed) ||
		errors.Is(err, domain.ErrSessionMintFailed)
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if isRedemptionFailure(err) {
		if de, ok := NewLinkDenied().(*DomainError); ok {
			return de
		}
	}
	if errors.Is(err, domain.ErrAssignmentNotFound) || errors.Is(err, domain.ErrIdentityNotFound) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// MapError converts err for handlers that return it to the error middleware.
func MapError(err error) error {
	return ToDomainError(err)
}
