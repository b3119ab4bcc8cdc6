package picker

import (
	"context"
	"sync"
)

// Step is one scripted picker outcome.
type Step struct {
	Result *Result
	Err    error
	// Hang blocks until the request context ends.
	Hang bool
}

// Selected returns a step that selects uris.
func Selected(uris ...string) Step {
	return Step{Result: &Result{Code: ResultOK, URIs: uris}}
}

// Cancelled returns a step where the user cancels.
func Cancelled() Step {
	return Step{Result: &Result{Code: ResultCancelled}}
}

// Failed returns a step where the picker reports code and message.
func Failed(code int, message string) Step {
	return Step{Result: &Result{Code: code, Message: message}}
}

// Hang returns a step that never completes on its own.
func Hang() Step {
	return Step{Hang: true}
}

// Scripted replays queued steps in order and records every request.
// Once the queue is empty each invocation is a cancel.
type Scripted struct {
	mu       sync.Mutex
	steps    []Step
	requests []Request
}

var _ Picker = (*Scripted)(nil)

// NewScripted returns a Scripted picker with steps queued.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Push queues more steps.
func (s *Scripted) Push(steps ...Step) {
	s.mu.Lock()
	s.steps = append(s.steps, steps...)
	s.mu.Unlock()
}

// Select records req and replays the next step.
func (s *Scripted) Select(ctx context.Context, req *Request) (*Result, error) {
	s.mu.Lock()
	s.requests = append(s.requests, *req)
	step := Cancelled()
	if len(s.steps) > 0 {
		step = s.steps[0]
		s.steps = s.steps[1:]
	}
	s.mu.Unlock()

	if step.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Result == nil {
		return &Result{Code: ResultCancelled}, nil
	}
	res := *step.Result
	res.URIs = append([]string(nil), step.Result.URIs...)
	return &res, nil
}

// Requests returns a copy of every request received so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
