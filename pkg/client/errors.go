package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors callers can match with errors.Is.
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrUnavailable    = errors.New("server unavailable")
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx response decoded from the portal's shared error
// envelope. Details carries field-level validation messages on 400s.
type APIError struct {
	StatusCode int
	Message    string
	Details    map[string]any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap maps the status code onto the package sentinels so that
// errors.Is(err, ErrUnauthorized) and friends work on decoded responses.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrUnavailable
	}
	return nil
}

// Field returns the validation message recorded for one input field, if any.
func (e *APIError) Field(name string) string {
	if msg, ok := e.Details[name].(string); ok {
		return msg
	}
	return ""
}

func mapTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
