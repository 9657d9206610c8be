package client

import (
	"errors"
	"fmt"
)

// NetworkError means the request never produced an HTTP response:
// connection refused, DNS failure, timeout or cancellation.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError is a well-formed rejection from the server, either a
// status "error" envelope or a non-2xx response.
type ValidationError struct {
	StatusCode int
	Message    string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ProtocolError means the response broke the envelope contract. It is never
// retried.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// AuthError means there is no usable session: none was established, the
// token expired locally, or the server answered 401.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return "authentication required: " + e.Message
}

// Retryable reports whether repeating the request may succeed.
func Retryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// UserMessage renders err as text suitable for a notification.
func UserMessage(err error) string {
	var (
		netErr   *NetworkError
		valErr   *ValidationError
		protoErr *ProtocolError
		authErr  *AuthError
	)
	switch {
	case errors.As(err, &authErr):
		return "Your session has expired. Please log in again."
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &netErr):
		return "Network error. Please check your connection."
	case errors.As(err, &protoErr):
		return "Unexpected response from server."
	case err == nil:
		return ""
	}
	return err.Error()
}
