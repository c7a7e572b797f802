package client

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

var (
	// ErrUnauthenticated reports a 401: the API key is missing or invalid.
	ErrUnauthenticated = errors.New("unauthenticated: invalid or missing API key")

	// ErrForbidden reports a 403: the key is valid but lacks access to the
	// namespace or project.
	ErrForbidden = errors.New("forbidden")
)

// APIError carries the HTTP status and body excerpt of a failed scheduler
// call.
type APIError struct {
	// Status is the HTTP status code.
	Status int
	// Message is the response body, truncated.
	Message string
}

// Error renders the status and server message.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("scheduler api status %d", e.Status)
	}
	return fmt.Sprintf("scheduler api status %d: %s", e.Status, e.Message)
}

// Retryable reports whether repeating the call may succeed: gateway errors
// (502, 503, 504) are transient, everything else is final.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Is maps 401 to ErrUnauthenticated and 403 to ErrForbidden so callers can
// branch with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	}
	return false
}

// maxErrorBody bounds how much of an error response is kept for messages.
const maxErrorBody = 2048

// statusError drains the response body into an *APIError. The caller has
// already checked the status is unexpected.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		Status:  resp.StatusCode,
		Message: strings.TrimSpace(string(raw)),
	}
}
