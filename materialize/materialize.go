// Package materialize reads picked URIs into FileResponses.
//
// Supported URIs are plain paths, file:// URIs with an empty or localhost
// host, and store://<key> URIs read from a lode store.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/storage"
)

// SchemeStore is the URI scheme for lode store objects.
const SchemeStore = "store"

var (
	// ErrUnsupportedScheme reports a URI scheme the materializer cannot read.
	ErrUnsupportedScheme = errors.New("unsupported URI scheme")
	// ErrNoStore reports a store:// URI with no store configured.
	ErrNoStore = errors.New("no store configured")
	// ErrTooLarge reports a file above the configured size limit.
	ErrTooLarge = errors.New("file too large")
	// ErrNotRegular reports a path that is not a regular file.
	ErrNotRegular = errors.New("not a regular file")
)

// Error reports a URI that could not be materialized.
type Error struct {
	URI string
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("materialize %s: %s: %v", e.URI, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithStore resolves store:// URIs against store.
func WithStore(store lode.Store) Option {
	return func(m *Materializer) { m.store = store }
}

// WithMaxSize rejects files larger than n bytes. Zero means no limit.
func WithMaxSize(n int64) Option {
	return func(m *Materializer) { m.maxSize = n }
}

// Materializer reads files fully into memory.
type Materializer struct {
	store   lode.Store
	maxSize int64
}

var _ fileselector.Materializer = (*Materializer)(nil)

// New creates a Materializer.
func New(opts ...Option) *Materializer {
	m := &Materializer{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ReadFile reads uri into a FileResponse carrying mimeType and name. The
// response path is uri as given.
func (m *Materializer) ReadFile(ctx context.Context, uri, mimeType, name string) (*fileselector.FileResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{URI: uri, Op: "read", Err: err}
	}
	loc, err := parseURI(uri)
	if err != nil {
		return nil, err
	}

	var data []byte
	if loc.key != "" {
		data, err = m.readStore(ctx, uri, loc.key)
	} else {
		data, err = m.readPath(uri, loc.path)
	}
	if err != nil {
		return nil, err
	}

	return &fileselector.FileResponse{
		Path:     uri,
		MimeType: mimeType,
		Name:     name,
		Size:     int64(len(data)),
		Bytes:    data,
	}, nil
}

// ReadFiles reads every URI in order. The first failure fails the whole
// read; no partial list is returned.
func (m *Materializer) ReadFiles(ctx context.Context, uris []string, mimeType, name string) ([]*fileselector.FileResponse, error) {
	if len(uris) == 0 {
		return nil, fileselector.ErrEmptyResult
	}
	files := make([]*fileselector.FileResponse, 0, len(uris))
	for i, uri := range uris {
		f, err := m.ReadFile(ctx, uri, mimeType, name)
		if err != nil {
			return nil, fmt.Errorf("file %d of %d: %w", i+1, len(uris), err)
		}
		files = append(files, f)
	}
	return files, nil
}

// readPath stats the open file, allocates exactly its size and reads it
// fully.
func (m *Materializer) readPath(uri, p string) ([]byte, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, &Error{URI: uri, Op: "open", Err: storage.WrapReadError(err, p)}
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return nil, &Error{URI: uri, Op: "stat", Err: err}
	}
	if !info.Mode().IsRegular() {
		return nil, &Error{URI: uri, Op: "stat", Err: ErrNotRegular}
	}
	size := info.Size()
	if err := m.checkSize(size); err != nil {
		return nil, &Error{URI: uri, Op: "stat", Err: err}
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, &Error{URI: uri, Op: "read", Err: err}
	}
	return data, nil
}

func (m *Materializer) readStore(ctx context.Context, uri, key string) ([]byte, error) {
	if m.store == nil {
		return nil, &Error{URI: uri, Op: "open", Err: ErrNoStore}
	}
	rc, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, &Error{URI: uri, Op: "open", Err: storage.WrapReadError(err, key)}
	}
	defer iox.DiscardClose(rc)

	data, over, err := iox.ReadAtMost(rc, m.maxSize)
	if err != nil {
		return nil, &Error{URI: uri, Op: "read", Err: storage.WrapReadError(err, key)}
	}
	if over {
		return nil, &Error{URI: uri, Op: "read", Err: fmt.Errorf("%w: more than %d bytes", ErrTooLarge, m.maxSize)}
	}
	return data, nil
}

func (m *Materializer) checkSize(size int64) error {
	if m.maxSize > 0 && size > m.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, size, m.maxSize)
	}
	return nil
}

// location is a parsed URI: a local path or a store key.
type location struct {
	path string
	key  string
}

func parseURI(uri string) (location, error) {
	if uri == "" {
		return location{}, &Error{URI: uri, Op: "parse", Err: errors.New("empty URI")}
	}
	if !strings.Contains(uri, "://") {
		return location{path: filepath.Clean(uri)}, nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return location{}, &Error{URI: uri, Op: "parse", Err: err}
	}
	switch u.Scheme {
	case "file":
		if u.Host != "" && u.Host != "localhost" {
			return location{}, &Error{URI: uri, Op: "parse", Err: fmt.Errorf("%w: remote file host %q", ErrUnsupportedScheme, u.Host)}
		}
		if u.Path == "" {
			return location{}, &Error{URI: uri, Op: "parse", Err: errors.New("empty file path")}
		}
		return location{path: filepath.FromSlash(u.Path)}, nil
	case SchemeStore:
		key := strings.TrimPrefix(path.Clean("/"+u.Host+u.Path), "/")
		if key == "" {
			return location{}, &Error{URI: uri, Op: "parse", Err: errors.New("empty store key")}
		}
		return location{key: key}, nil
	default:
		return location{}, &Error{URI: uri, Op: "parse", Err: fmt.Errorf("%w %q", ErrUnsupportedScheme, u.Scheme)}
	}
}
