package picker

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout bounds every invocation of p by d. A picker still running
// when d elapses is abandoned and the invocation fails with ErrTimeout.
// d <= 0 returns p unchanged.
func WithTimeout(p Picker, d time.Duration) Picker {
	if d <= 0 {
		return p
	}
	return &timeoutPicker{next: p, timeout: d}
}

type timeoutPicker struct {
	next    Picker
	timeout time.Duration
}

type selectOutcome struct {
	res *Result
	err error
}

func (t *timeoutPicker) Select(ctx context.Context, req *Request) (*Result, error) {
	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan selectOutcome, 1)
	go func() {
		res, err := t.next.Select(tctx, req)
		done <- selectOutcome{res: res, err: err}
	}()

	var out selectOutcome
	select {
	case out = <-done:
		if out.err == nil {
			return out.res, nil
		}
	case <-tctx.Done():
	}

	if ctx.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Mode: req.Mode, Op: "wait", Err: fmt.Errorf("%w after %s", ErrTimeout, t.timeout)}
	}
	if out.err != nil {
		return nil, out.err
	}
	return nil, ctx.Err()
}
