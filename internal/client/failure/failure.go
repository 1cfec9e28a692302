// Package failure classifies client errors into the kinds the UI reports.
package failure

import (
	"errors"
)

// Kind is the user-facing category of an error.
type Kind int

const (
	Unknown Kind = iota
	Unauthenticated
	ValidationFailure
	TransportFailure
	ServerError
)

func (k Kind) String() string {
	switch k {
	case Unauthenticated:
		return "unauthenticated"
	case ValidationFailure:
		return "validation_failure"
	case TransportFailure:
		return "transport_failure"
	case ServerError:
		return "server_error"
	default:
		return "unknown"
	}
}

// Kinded is implemented by errors that know their kind.
type Kinded interface {
	error
	Kind() Kind
}

// Error is a kinded error with a user-visible message and an optional cause.
type Error struct {
	kind Kind
	msg  string
	err  error
}

// New returns a kinded error suitable as a sentinel.
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap attaches kind and msg to cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, err: cause}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Unwrap() error { return e.err }

// UserMessage is the text meant for the user, without the cause.
func (e *Error) UserMessage() string { return e.msg }

// Classify returns the kind of the first kinded error in err's chain.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unknown
}

const (
	msgUnauthenticated = "Please sign in to continue."
	msgTransport       = "Could not reach Pulse. Check your connection and try again."
	msgServer          = "Something went wrong on our side. Please try again."
	msgUnknown         = "Something went wrong. Please try again."
)

// Message converts err into text for the user. Validation and server errors
// keep their own message; transport failures use a generic one.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var specific interface{ UserMessage() string }
	hasMessage := errors.As(err, &specific) && specific.UserMessage() != ""

	switch Classify(err) {
	case Unauthenticated:
		if hasMessage {
			return specific.UserMessage()
		}
		return msgUnauthenticated
	case ValidationFailure:
		if hasMessage {
			return specific.UserMessage()
		}
		return err.Error()
	case TransportFailure:
		return msgTransport
	case ServerError:
		if hasMessage {
			return specific.UserMessage()
		}
		return msgServer
	default:
		return msgUnknown
	}
}
