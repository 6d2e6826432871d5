package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call
type Kind string

const (
	// KindUnauthorized means the backend rejected the session token (HTTP 401)
	KindUnauthorized Kind = "unauthorized"
	// KindNetwork means the request never produced an HTTP response
	KindNetwork Kind = "network"
	// KindServer means the backend failed (HTTP 5xx)
	KindServer Kind = "server"
	// KindInvalidResponse means the body was empty or not the expected JSON
	KindInvalidResponse Kind = "invalid_response"
	// KindRejected means the backend refused the request (other 4xx, or success:false)
	KindRejected Kind = "rejected"
)

// APIError is returned by every Client method that fails
type APIError struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" when err is not an APIError
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsUnauthorized reports whether err means the session token is no longer valid
func IsUnauthorized(err error) bool {
	return KindOf(err) == KindUnauthorized
}

// Message returns the user-facing message for err
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
