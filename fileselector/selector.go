package fileselector

import (
	"context"
	"errors"

	"github.com/pithecene-io/ferry/bridge"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/picker"
)

// DefaultMaxMediaCount is the media picker limit for multiple selection.
const DefaultMaxMediaCount = 5

// Names and MIME types given to materialized files.
const (
	mediaName        = "Picture"
	documentName     = "Text"
	documentMimeType = "text/*"
)

// ErrEmptyResult reports a multi-file read with no files.
var ErrEmptyResult = errors.New("read file list failed")

// Materializer reads picked URIs into memory.
type Materializer interface {
	ReadFile(ctx context.Context, uri, mimeType, name string) (*FileResponse, error)
	// ReadFiles reads every URI in order. It fails with ErrEmptyResult when
	// uris is empty.
	ReadFiles(ctx context.Context, uris []string, mimeType, name string) ([]*FileResponse, error)
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Selector) { s.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Selector) { s.collector = c }
}

// WithMaxMediaCount sets the media picker limit for OpenFiles.
func WithMaxMediaCount(n int) Option {
	return func(s *Selector) {
		if n > 0 {
			s.maxMediaCount = n
		}
	}
}

// Selector implements API on a picker and a materializer.
type Selector struct {
	picker        picker.Picker
	materializer  Materializer
	maxMediaCount int
	logger        *log.Logger
	collector     *metrics.Collector
}

var _ API = (*Selector)(nil)

// NewSelector creates a Selector.
func NewSelector(p picker.Picker, m Materializer, opts ...Option) *Selector {
	s := &Selector{picker: p, materializer: m, maxMediaCount: DefaultMaxMediaCount}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.NewNop()
	}
	return s
}

// OpenFile picks one file and reads it. A cancelled selection returns nil
// and no error.
func (s *Selector) OpenFile(ctx context.Context, types *FileTypes, initialDirectory string) (*FileResponse, error) {
	sel, err := s.pick(ctx, types, initialDirectory, picker.SelectionSingle)
	if err != nil || sel == nil {
		return nil, err
	}
	file, err := s.materializer.ReadFile(ctx, sel.uris[0], sel.mimeType, sel.name)
	if err != nil {
		return nil, s.materializationError(err)
	}
	s.collector.AddMaterialized(file.Size)
	return file, nil
}

// OpenFiles picks several files and reads all of them. A cancelled
// selection returns nil and no error.
func (s *Selector) OpenFiles(ctx context.Context, types *FileTypes, initialDirectory string) ([]*FileResponse, error) {
	sel, err := s.pick(ctx, types, initialDirectory, picker.SelectionMultiple)
	if err != nil || sel == nil {
		return nil, err
	}
	files, err := s.materializer.ReadFiles(ctx, sel.uris, sel.mimeType, sel.name)
	if err != nil {
		return nil, s.materializationError(err)
	}
	for _, f := range files {
		s.collector.AddMaterialized(f.Size)
	}
	return files, nil
}

// GetDirectoryPath picks a directory. ok is false when the user cancelled.
func (s *Selector) GetDirectoryPath(ctx context.Context, initialDirectory string) (string, bool, error) {
	req := &picker.Request{
		Mode:             picker.ModeDirectory,
		Selection:        picker.SelectionSingle,
		InitialDirectory: initialDirectory,
	}
	res, err := s.launch(ctx, req)
	if err != nil {
		return "", false, err
	}
	if res.Cancelled() {
		s.collector.IncCallCancelled()
		return "", false, nil
	}
	return res.URIs[0], true, nil
}

type selection struct {
	uris     []string
	mimeType string
	name     string
}

// pick tries each marker in order until one picker invocation succeeds or
// fails. Cancelled invocations move on to the next marker.
func (s *Selector) pick(ctx context.Context, types *FileTypes, initialDirectory string, mode picker.Selection) (*selection, error) {
	var m machine
	for _, marker := range markers(types) {
		req, sel, ok := s.requestFor(marker, mode, initialDirectory)
		if !ok {
			s.logger.Debug("skipping unsupported marker", map[string]any{"marker": marker})
			continue
		}
		if err := m.to(StateAwaitingPickerResult); err != nil {
			return nil, err
		}

		res, err := s.launch(ctx, req)
		if err != nil {
			_ = m.to(StateFailed)
			return nil, err
		}
		if res.Cancelled() {
			s.logger.Debug("picker cancelled", map[string]any{"marker": marker})
			continue
		}
		if err := m.to(StateSucceeded); err != nil {
			return nil, err
		}
		sel.uris = res.URIs
		return sel, nil
	}

	if m.state == StateIdle {
		_ = m.to(StateFailed)
		return nil, bridge.NewError(bridge.CodeUnsupportedFilter, "no supported file type to pick", nil)
	}
	if err := m.to(StateCancelled); err != nil {
		return nil, err
	}
	s.collector.IncCallCancelled()
	return nil, nil
}

// launch runs one picker invocation. A non-zero, non-cancel result code
// becomes a PickerFailed error carrying the code.
func (s *Selector) launch(ctx context.Context, req *picker.Request) (*picker.Result, error) {
	s.collector.IncPickerLaunch()
	res, err := s.picker.Select(ctx, req)
	if err != nil {
		s.collector.IncPickerFailure()
		code := bridge.CodePickerFailed
		if errors.Is(err, picker.ErrUnavailable) {
			code = bridge.CodeUnavailable
		}
		return nil, &bridge.Error{Code: code, Message: err.Error(), Err: err}
	}
	if res == nil {
		s.collector.IncPickerFailure()
		return nil, bridge.NewError(bridge.CodePickerFailed, "picker returned no result", nil)
	}
	if res.Code != picker.ResultOK && res.Code != picker.ResultCancelled {
		s.collector.IncPickerFailure()
		msg := res.Message
		if msg == "" {
			msg = "picker failed"
		}
		return nil, bridge.NewError(bridge.CodePickerFailed, msg, int64(res.Code))
	}
	return res, nil
}

func (s *Selector) requestFor(marker string, mode picker.Selection, initialDirectory string) (*picker.Request, *selection, bool) {
	if filter, ok := picker.MediaFilter(marker); ok {
		maxCount := 1
		if mode == picker.SelectionMultiple {
			maxCount = s.maxMediaCount
		}
		return &picker.Request{
			Mode:             picker.ModeMedia,
			Selection:        mode,
			Filter:           filter,
			MaxCount:         maxCount,
			InitialDirectory: initialDirectory,
		}, &selection{mimeType: marker, name: mediaName}, true
	}
	if marker == MarkerDocument {
		return &picker.Request{
			Mode:             picker.ModeDocument,
			Selection:        mode,
			InitialDirectory: initialDirectory,
		}, &selection{mimeType: documentMimeType, name: documentName}, true
	}
	return nil, nil, false
}

func (s *Selector) materializationError(err error) error {
	s.collector.IncMaterializationFailure()
	code := bridge.CodeMaterializationFailed
	if errors.Is(err, ErrEmptyResult) {
		code = bridge.CodeEmptyResult
	}
	return &bridge.Error{Code: code, Message: err.Error(), Err: err}
}
