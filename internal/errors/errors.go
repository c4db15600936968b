package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Common error types for the job portal client
var (
	// Validation errors
	ErrValidation      = errors.New("validation failed")
	ErrEmailRequired   = errors.New("email is required")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrPasswordMissing = errors.New("password is required")
	ErrInvalidRole     = errors.New("invalid role")

	// Session errors
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionInvalidated  = errors.New("session invalidated")

	// Push errors
	ErrPushTokenUnavailable = errors.New("push token unavailable")

	// General errors
	ErrUnsupported = errors.New("unsupported operation")
)

// Validation returns an error wrapping ErrValidation with the given message.
func Validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Invalid marks a sentinel such as ErrEmailRequired as a validation failure.
func Invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrValidation, cause)
}

// ValidationMessage returns the user facing part of a validation error.
func ValidationMessage(err error) (string, bool) {
	if !errors.Is(err, ErrValidation) {
		return "", false
	}
	msg := err.Error()
	prefix := ErrValidation.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		msg = msg[i+len(prefix):]
	}
	return msg, true
}
