// Package picker invokes native file pickers.
//
// A Picker runs one selection dialog to completion and reports a result
// code plus the selected URIs. Code 0 with URIs is a selection, -1 is a
// user cancel, and any other code is a picker failure.
package picker

import (
	"context"
	"errors"
	"fmt"
)

// Result codes.
const (
	ResultOK        = 0
	ResultCancelled = -1
)

// Mode selects which native dialog runs.
type Mode string

const (
	// ModeMedia opens the photo and video picker.
	ModeMedia Mode = "media"
	// ModeDocument opens the document picker.
	ModeDocument Mode = "document"
	// ModeDirectory opens a directory chooser.
	ModeDirectory Mode = "directory"
)

// Selection is single or multiple selection.
type Selection string

const (
	SelectionSingle   Selection = "single"
	SelectionMultiple Selection = "multiple"
)

// Filter narrows the media picker to a media category.
type Filter string

const (
	FilterNone  Filter = ""
	FilterImage Filter = "image"
	FilterVideo Filter = "video"
	FilterAll   Filter = "all"
)

// MediaFilter maps a MIME marker to the media filter that shows it.
// Markers with no media filter return false.
func MediaFilter(marker string) (Filter, bool) {
	switch marker {
	case "image/*":
		return FilterImage, true
	case "video/*":
		return FilterVideo, true
	case "*/*":
		return FilterAll, true
	default:
		return FilterNone, false
	}
}

// Request describes one picker invocation.
type Request struct {
	Mode             Mode      `json:"mode"`
	Selection        Selection `json:"selection"`
	Filter           Filter    `json:"filter,omitempty"`
	MaxCount         int       `json:"max_count,omitempty"`
	InitialDirectory string    `json:"initial_directory,omitempty"`
}

// Result is what a picker reports when it completes.
type Result struct {
	Code    int      `json:"result_code"`
	URIs    []string `json:"uris"`
	Message string   `json:"message,omitempty"`
}

// Cancelled reports whether the result is a user cancel. A success with no
// URIs counts as a cancel.
func (r *Result) Cancelled() bool {
	return r.Code == ResultCancelled || (r.Code == ResultOK && len(r.URIs) == 0)
}

// Picker runs selection dialogs.
type Picker interface {
	Select(ctx context.Context, req *Request) (*Result, error)
}

// Func adapts a function to Picker.
type Func func(ctx context.Context, req *Request) (*Result, error)

// Select calls f.
func (f Func) Select(ctx context.Context, req *Request) (*Result, error) {
	return f(ctx, req)
}

// Fixed returns a picker that selects uris on every invocation.
func Fixed(uris ...string) Func {
	return func(context.Context, *Request) (*Result, error) {
		return &Result{Code: ResultOK, URIs: append([]string(nil), uris...)}, nil
	}
}

// Error kinds.
var (
	// ErrUnavailable reports a mode with no configured picker.
	ErrUnavailable = errors.New("picker unavailable")
	// ErrTimeout reports a picker that did not complete in time.
	ErrTimeout = errors.New("picker timed out")
)

// Error reports a picker that could not run to completion.
type Error struct {
	Mode Mode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s picker %s: %v", e.Mode, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
