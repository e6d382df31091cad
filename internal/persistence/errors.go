package persistence

import (
	"errors"
	"fmt"
)

// ErrNotFound means no report exists yet for the group. Callers treat it as
// a normal state, not a failure.
var ErrNotFound = errors.New("not found")

// AuthError means the credential is missing or expired. The caller clears
// its session and sends the user back to sign-in.
type AuthError struct {
	Message string
}

func (e AuthError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return e.Message
}

// ServerError is a non-2xx response after the request was sent.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// NetworkError is a transport failure or timeout; the request may never have
// reached the server.
type NetworkError struct {
	Cause error
}

func (e NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Cause)
}

func (e NetworkError) Unwrap() error {
	return e.Cause
}
