package bridge

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/ferry/codec"
)

// Error codes carried in the first element of an error reply.
const (
	CodeMalformedMessage      = "MalformedMessage"
	CodeUnsupportedType       = "UnsupportedType"
	CodePickerFailed          = "PickerFailed"
	CodeMaterializationFailed = "MaterializationFailed"
	CodeEmptyResult           = "EmptyResult"
	CodeUnsupportedFilter     = "UnsupportedFilter"
	CodeUnavailable           = "Unavailable"
)

// Error is a structured call error, replied as [code, message, details].
type Error struct {
	Code    string
	Message string
	Details any
	Err     error
}

// NewError returns an Error without a cause.
func NewError(code, message string, details any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError converts err into the Error that will be replied.
//
// An *Error anywhere in the chain is used as is. Codec errors map to
// MalformedMessage or UnsupportedType. Anything else becomes an Error coded
// with its Go type name, its message, and a details string naming its
// cause chain.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	switch {
	case errors.Is(err, codec.ErrMalformedMessage):
		return &Error{Code: CodeMalformedMessage, Message: err.Error(), Err: err}
	case errors.Is(err, codec.ErrUnsupportedType):
		return &Error{Code: CodeUnsupportedType, Message: err.Error(), Err: err}
	}
	return WrapError(err)
}

// WrapError builds the generic form for an error with no structured code.
func WrapError(err error) *Error {
	cause := "<nil>"
	if inner := errors.Unwrap(err); inner != nil {
		cause = inner.Error()
	}
	return &Error{
		Code:    fmt.Sprintf("%T", err),
		Message: err.Error(),
		Details: fmt.Sprintf("Cause: %s, Stacktrace: %+v", cause, err),
		Err:     err,
	}
}
