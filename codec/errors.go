package codec

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	// ErrMalformedMessage reports bytes that are not a valid encoding.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrUnsupportedType reports a value the codec cannot represent.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrTagConflict reports an invalid record table passed to New.
	ErrTagConflict = errors.New("tag conflict")
)

// Error is returned by every codec operation.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func malformedf(format string, args ...any) *Error {
	return &Error{Kind: ErrMalformedMessage, Msg: fmt.Sprintf(format, args...)}
}

func unsupportedf(format string, args ...any) *Error {
	return &Error{Kind: ErrUnsupportedType, Msg: fmt.Sprintf(format, args...)}
}

// IsMalformed returns true if err is a malformed message error.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedMessage)
}

// IsUnsupported returns true if err is an unsupported type error.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupportedType)
}
