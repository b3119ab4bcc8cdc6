package fileselector

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/ferry/bridge"
)

// API and method names.
const (
	DefaultNamespace = "dev.flutter.pigeon"
	APIName          = "FileSelectorApi"

	MethodOpenFile         = "openFile"
	MethodOpenFiles        = "openFiles"
	MethodGetDirectoryPath = "getDirectoryPath"
)

// Methods lists every method Setup registers.
var Methods = []string{MethodOpenFile, MethodOpenFiles, MethodGetDirectoryPath}

// API is the host side of FileSelectorApi.
type API interface {
	// OpenFile returns nil when the user cancelled.
	OpenFile(ctx context.Context, types *FileTypes, initialDirectory string) (*FileResponse, error)
	// OpenFiles returns nil when the user cancelled.
	OpenFiles(ctx context.Context, types *FileTypes, initialDirectory string) ([]*FileResponse, error)
	// GetDirectoryPath reports ok false when the user cancelled.
	GetDirectoryPath(ctx context.Context, initialDirectory string) (path string, ok bool, err error)
}

// Outcome summarizes how a call ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Completion describes a settled call.
type Completion struct {
	CallID    string
	Method    string
	Outcome   Outcome
	ErrorCode string
	Files     []*FileResponse
	Directory string
	Duration  time.Duration
	Completed time.Time
}

// Bytes returns the total size of Files.
func (c *Completion) Bytes() int64 {
	var n int64
	for _, f := range c.Files {
		n += f.Size
	}
	return n
}

// Listener observes settled calls. It runs after the reply was sent.
type Listener interface {
	SelectionCompleted(ctx context.Context, c *Completion)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, c *Completion)

// SelectionCompleted calls f.
func (f ListenerFunc) SelectionCompleted(ctx context.Context, c *Completion) {
	f(ctx, c)
}

// Listeners fans a completion out to each listener in order.
type Listeners []Listener

// SelectionCompleted implements Listener.
func (ls Listeners) SelectionCompleted(ctx context.Context, c *Completion) {
	for _, l := range ls {
		l.SelectionCompleted(ctx, c)
	}
}

// SetupOption configures Setup.
type SetupOption func(*setup)

type setup struct {
	listener Listener
}

// WithListener observes every settled call.
func WithListener(l Listener) SetupOption {
	return func(s *setup) { s.listener = l }
}

// Setup registers api on b under namespace. An empty namespace uses
// DefaultNamespace. A nil api removes the registrations.
func Setup(b *bridge.Bridge, namespace string, api API, opts ...SetupOption) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	channel := func(method string) string {
		return bridge.ChannelName(namespace, APIName, method)
	}
	if api == nil {
		for _, method := range Methods {
			b.Register(channel(method), nil)
		}
		return
	}

	var cfg setup
	for _, opt := range opts {
		opt(&cfg)
	}

	b.Register(channel(MethodOpenFile), cfg.method(MethodOpenFile, func(ctx context.Context, call *bridge.Call) (any, *Completion, error) {
		dir, types, err := fileArgs(call)
		if err != nil {
			return nil, nil, err
		}
		file, err := api.OpenFile(ctx, types, dir)
		if err != nil || file == nil {
			return nil, nil, err
		}
		return file, &Completion{Files: []*FileResponse{file}}, nil
	}))

	b.Register(channel(MethodOpenFiles), cfg.method(MethodOpenFiles, func(ctx context.Context, call *bridge.Call) (any, *Completion, error) {
		dir, types, err := fileArgs(call)
		if err != nil {
			return nil, nil, err
		}
		files, err := api.OpenFiles(ctx, types, dir)
		if err != nil || files == nil {
			return nil, nil, err
		}
		list := make([]any, len(files))
		for i, f := range files {
			list[i] = f
		}
		return list, &Completion{Files: files}, nil
	}))

	b.Register(channel(MethodGetDirectoryPath), cfg.method(MethodGetDirectoryPath, func(ctx context.Context, call *bridge.Call) (any, *Completion, error) {
		dir, _, err := bridge.Arg[string](call, 0)
		if err != nil {
			return nil, nil, err
		}
		path, ok, err := api.GetDirectoryPath(ctx, dir)
		if err != nil || !ok {
			return nil, nil, err
		}
		return path, &Completion{Directory: path}, nil
	}))
}

// callFunc returns the reply value and, on a selection, its completion.
type callFunc func(ctx context.Context, call *bridge.Call) (any, *Completion, error)

func (s *setup) method(name string, fn callFunc) bridge.Method {
	return func(ctx context.Context, call *bridge.Call, sink *bridge.Sink) {
		start := time.Now()
		result, done, err := fn(ctx, call)
		if err != nil {
			_ = sink.Fail(err)
		} else {
			_ = sink.Success(result)
		}

		if s.listener == nil {
			return
		}
		switch {
		case err != nil:
			done = &Completion{Outcome: OutcomeFailed, ErrorCode: bridge.AsError(err).Code}
		case done == nil:
			done = &Completion{Outcome: OutcomeCancelled}
		default:
			done.Outcome = OutcomeSucceeded
		}
		done.CallID = call.ID
		done.Method = name
		done.Completed = time.Now()
		done.Duration = done.Completed.Sub(start)
		s.listener.SelectionCompleted(ctx, done)
	}
}

func fileArgs(call *bridge.Call) (string, *FileTypes, error) {
	dir, _, err := bridge.Arg[string](call, 0)
	if err != nil {
		return "", nil, err
	}
	types, _, err := bridge.Arg[*FileTypes](call, 1)
	if err != nil {
		return "", nil, err
	}
	if types == nil {
		return "", nil, bridge.NewError(bridge.CodeMalformedMessage, fmt.Sprintf("%s: allowed types are required", call.Channel), nil)
	}
	return dir, types, nil
}
