package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

const GenericErrorMessage = "Something went wrong. Please try again."

// ErrNetwork marks failures where no response was received.
var ErrNetwork = errors.New("network error")

// Error is returned for every failed call. StatusCode is zero when the
// request never got a response.
type Error struct {
	StatusCode int
	Message    string // Server supplied message, may be empty
	Err        error  // Underlying transport or decode error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("api error %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("api request failed: %v", e.Err)
	}
	return "api error: " + e.Message
}

func (e *Error) Unwrap() error {
	if e.StatusCode == 0 && e.Err != nil {
		return errors.Join(ErrNetwork, e.Err)
	}
	return e.Err
}

func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsUnauthorized reports whether the backend rejected the credentials.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

// IsNotFound reports whether the backend answered 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsNetwork reports whether err is a transport failure rather than an
// answer from the backend. Context cancellation is not a network failure.
func IsNetwork(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrNetwork)
}

// ErrorMessage extracts a user presentable message from err, falling back to a
// generic one.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.StatusCode == 0 {
			return "Unable to reach the server. Check your connection and try again."
		}
	}
	return GenericErrorMessage
}
