package core

import (
	"github.com/go-go-golems/triage/pkg/gateway"
	"github.com/pkg/errors"
)

// ErrValidation matches every rejected request that never reached the backend.
var ErrValidation = errors.New("validation failure")

var (
	ErrEmptyMessage  error = &validationError{msg: "message is empty"}
	ErrAwaitingReply error = &validationError{msg: "a reply is still pending"}
	ErrNoSession     error = &validationError{msg: "no session is active"}
	ErrUnknownModel  error = &validationError{msg: "model is not in the catalog"}
)

// ErrUnknownSession is logged when an operation names a session the registry has
// not listed. The operation is still attempted since the registry may be stale.
var ErrUnknownSession = errors.New("unknown session")

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}

func (e *validationError) Is(target error) bool {
	return target == ErrValidation
}

// UserMessage is the text a chat window shows for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if te, ok := gateway.AsTransport(err); ok {
		return te.UserMessage()
	}
	return err.Error()
}
