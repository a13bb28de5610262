package gateway

import (
	"fmt"

	"github.com/pkg/errors"
)

// TransportError reports a backend call that could not complete: the backend was
// unreachable, answered with a non-success status, or sent an unreadable body.
type TransportError struct {
	Op         string
	StatusCode int
	// Message is the backend's own error text, when it sent one.
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: backend returned %d", e.Op, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Op + ": transport failure"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UserMessage is what the chat window shows for this failure.
func (e *TransportError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "Failed to reach the assistant backend. Please try again."
}

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// AsTransport returns the wrapped *TransportError, if any.
func AsTransport(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
