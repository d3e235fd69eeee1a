package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthExpired is returned when the backend answers 401. The gateway has
// already invalidated the session by the time callers see it.
var ErrAuthExpired = errors.New("session expired, please log in again")

// ValidationError is a client-detected problem that never reached the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// TransportError wraps network-level failures: unreachable host, timeouts,
// undecodable responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("failed to %s, please check the connection and retry", e.Op)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerRejection is a non-2xx answer other than 401.
type ServerRejection struct {
	Op      string
	Status  int
	Message string
}

// Error returns the server message verbatim when there is one.
func (e *ServerRejection) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("failed to %s, please retry", e.Op)
}

// IsNotFound reports whether the server did not know the addressed entity.
func (e *ServerRejection) IsNotFound() bool {
	return e.Status == http.StatusNotFound
}

// IsNotFound reports whether err is a 404 ServerRejection.
func IsNotFound(err error) bool {
	var rej *ServerRejection
	return errors.As(err, &rej) && rej.IsNotFound()
}

// IsValidation reports whether err is a client-side ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
