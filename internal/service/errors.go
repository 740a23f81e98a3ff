package service

import (
	"errors"

	"nia/internal/validation"
)

var (
	ErrNoStudent            = errors.New("no student is logged in")
	ErrEmptyMessage         = errors.New("message is empty")
	ErrRequestInFlight      = errors.New("a message is already being answered")
	ErrRegistrationRejected = errors.New("registration was not accepted")
)

// Messages shown to the student
const (
	msgChatRemoteFailure    = "Connection issue. Try again!"
	msgChatTransportFailure = "Something went wrong! Try again."
	msgLoginNotFound        = "Login failed: Student not found"
)

// FlowError carries the message shown inline for a failed identity or chat step
type FlowError struct {
	Message string
	Err     error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text to show the student for err
func UserMessage(err error) string {
	var ve validation.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}

	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Message
	}

	switch {
	case errors.Is(err, ErrNoStudent):
		return "Please log in first!"
	case errors.Is(err, ErrEmptyMessage):
		return "Type a question for Nia first!"
	case errors.Is(err, ErrRequestInFlight):
		return "Nia is still thinking about your last question!"
	default:
		return msgChatTransportFailure
	}
}
