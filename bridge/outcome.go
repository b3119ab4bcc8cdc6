package bridge

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrAlreadySettled is returned when a Sink is settled a second time.
var ErrAlreadySettled = errors.New("bridge: outcome already settled")

// Outcome is the single result of a call: a success payload or an error.
// Build one with Success or Failure.
type Outcome struct {
	value any
	err   *Error
}

// Success returns a success outcome. A nil value is a valid payload.
func Success(v any) Outcome {
	return Outcome{value: v}
}

// Failure returns an error outcome for err. A nil err is reported as
// Unavailable so an outcome never holds neither variant.
func Failure(err error) Outcome {
	if err == nil {
		return Outcome{err: NewError(CodeUnavailable, "failure without error", nil)}
	}
	return Outcome{err: AsError(err)}
}

// IsError reports whether the outcome is an error.
func (o Outcome) IsError() bool {
	return o.err != nil
}

// Value returns the success payload.
func (o Outcome) Value() any {
	return o.value
}

// Err returns the error, or nil for a success.
func (o Outcome) Err() *Error {
	return o.err
}

// Wrap returns the reply list: [value] or [code, message, details].
func (o Outcome) Wrap() []any {
	if o.err != nil {
		details := o.err.Details
		if d, ok := details.(string); ok {
			details = sanitize(d)
		}
		return []any{sanitize(o.err.Code), sanitize(o.err.Message), details}
	}
	return []any{o.value}
}

// Sink settles one call. Only the first settlement is delivered.
type Sink struct {
	settled atomic.Bool
	deliver func(Outcome)
}

// NewSink returns a Sink that hands its outcome to deliver.
func NewSink(deliver func(Outcome)) *Sink {
	return &Sink{deliver: deliver}
}

// Success settles the call with v.
func (s *Sink) Success(v any) error {
	return s.Settle(Success(v))
}

// Fail settles the call with err.
func (s *Sink) Fail(err error) error {
	return s.Settle(Failure(err))
}

// Settle delivers o unless the Sink has already been settled.
func (s *Sink) Settle(o Outcome) error {
	if !s.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	s.deliver(o)
	return nil
}

// Settled reports whether the Sink has been settled.
func (s *Sink) Settled() bool {
	return s.settled.Load()
}

// ErrNoReply is returned by ParseReply for an empty reply, which the host
// sends when no handler is registered for the channel.
var ErrNoReply = errors.New("bridge: empty reply")

// ParseReply rebuilds the outcome carried by a decoded reply list.
func ParseReply(reply any) (Outcome, error) {
	if reply == nil {
		return Outcome{}, ErrNoReply
	}
	list, ok := reply.([]any)
	if !ok {
		return Outcome{}, fmt.Errorf("bridge: reply is %T, want list", reply)
	}
	switch len(list) {
	case 1:
		return Success(list[0]), nil
	case 3:
		code, ok := list[0].(string)
		if !ok {
			return Outcome{}, fmt.Errorf("bridge: error code is %T, want string", list[0])
		}
		msg, _ := list[1].(string)
		return Outcome{err: &Error{Code: code, Message: msg, Details: list[2]}}, nil
	default:
		return Outcome{}, fmt.Errorf("bridge: reply has %d elements, want 1 or 3", len(list))
	}
}
