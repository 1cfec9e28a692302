package gateway

import (
	"fmt"
	"net/http"

	"github.com/pulse-ai/pulse/internal/client/failure"
)

// ErrUnauthenticated is returned before any request when a required token is missing.
var ErrUnauthenticated = failure.New(failure.Unauthenticated, "Please sign in to continue.")

// APIError is a non-2xx backend response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Kind() failure.Kind {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return failure.Unauthenticated
	}
	return failure.ServerError
}

// UserMessage is the server-provided text.
func (e *APIError) UserMessage() string {
	return e.Message
}

// TransportError wraps a failure to reach the backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Kind() failure.Kind { return failure.TransportFailure }
