package dispatcher

import "fmt"

// Error codes with a predefined meaning.
const (
	CodeNoInternet = 101
)

// Message resource identifiers with a predefined meaning.
const (
	MessageIDNoInternet = 1
)

// TypedError is a caller-defined error value passed opaquely through the
// error-callback path. The dispatcher never inspects it.
//
// Code and MessageID are zero when unset; Message is empty when unset.
type TypedError struct {
	Code      int
	MessageID int
	Message   string
}

// NewTypedError returns an error with a code and a literal message.
func NewTypedError(code int, message string) *TypedError {
	return &TypedError{Code: code, Message: message}
}

// NewTypedErrorWithMessageID returns an error with a code and a message resource ID.
func NewTypedErrorWithMessageID(code, messageID int) *TypedError {
	return &TypedError{Code: code, MessageID: messageID}
}

// TypedErrorFromMessage returns an error carrying only a literal message.
func TypedErrorFromMessage(message string) *TypedError {
	return &TypedError{Message: message}
}

// TypedErrorFromMessageID returns an error carrying only a message resource ID.
func TypedErrorFromMessageID(messageID int) *TypedError {
	return &TypedError{MessageID: messageID}
}

// NoInternet is the connectivity error.
func NoInternet() *TypedError {
	return NewTypedErrorWithMessageID(CodeNoInternet, MessageIDNoInternet)
}

func (e *TypedError) SetCode(code int)           { e.Code = code }
func (e *TypedError) SetMessageID(messageID int) { e.MessageID = messageID }
func (e *TypedError) SetMessage(message string)  { e.Message = message }

func (e *TypedError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("error %d: %s", e.Code, e.Message)
	case e.MessageID != 0:
		return fmt.Sprintf("error %d (message id %d)", e.Code, e.MessageID)
	default:
		return fmt.Sprintf("error %d", e.Code)
	}
}
