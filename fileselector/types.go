// Package fileselector implements the FileSelectorApi channels: opening one
// file, opening several files and choosing a directory through a native
// picker.
package fileselector

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/ferry/codec"
)

// Record tags.
const (
	TagFileResponse codec.Tag = -128
	TagFileTypes    codec.Tag = -127
)

// FileResponse is one materialized file.
type FileResponse struct {
	Path     string
	MimeType string
	Name     string
	Size     int64
	Bytes    []byte
}

// FileTypes lists the types a call accepts. When MimeTypes is empty the
// Extensions are resolved to markers.
type FileTypes struct {
	MimeTypes  []string
	Extensions []string
}

// Extension is the codec extension for FileResponse and FileTypes.
type Extension struct{}

var (
	_ codec.Extension     = Extension{}
	_ codec.RecordChecker = Extension{}
)

// Tags implements codec.Extension.
func (Extension) Tags() []codec.Tag {
	return []codec.Tag{TagFileResponse, TagFileTypes}
}

// EncodeRecord implements codec.Extension.
func (Extension) EncodeRecord(v any) (codec.Tag, []any, bool) {
	switch r := v.(type) {
	case *FileResponse:
		if r == nil {
			return 0, nil, false
		}
		return TagFileResponse, r.fields(), true
	case FileResponse:
		return TagFileResponse, r.fields(), true
	case *FileTypes:
		if r == nil {
			return 0, nil, false
		}
		return TagFileTypes, r.fields(), true
	case FileTypes:
		return TagFileTypes, r.fields(), true
	default:
		return 0, nil, false
	}
}

// CheckRecord implements codec.RecordChecker. A FileResponse whose size
// disagrees with its bytes never reaches the wire.
func (Extension) CheckRecord(_ codec.Tag, v any) error {
	switch r := v.(type) {
	case *FileResponse:
		return r.checkSize()
	case FileResponse:
		return r.checkSize()
	}
	return nil
}

// DecodeRecord implements codec.Extension.
func (Extension) DecodeRecord(tag codec.Tag, fields []any) (any, error) {
	switch tag {
	case TagFileResponse:
		return decodeFileResponse(fields)
	case TagFileTypes:
		return decodeFileTypes(fields)
	default:
		return nil, fmt.Errorf("unknown record tag %d", tag)
	}
}

// NewCodec returns a codec carrying the FileSelectorApi records.
func NewCodec() *codec.Codec {
	c, err := codec.New(Extension{})
	if err != nil {
		// Tags are constants; a conflict here is a programming error.
		panic(err)
	}
	return c
}

func (r *FileResponse) fields() []any {
	return []any{r.Path, r.MimeType, r.Name, r.Size, r.Bytes}
}

func (r *FileResponse) checkSize() error {
	if r.Size < 0 {
		return fmt.Errorf("FileResponse.size: negative size %d", r.Size)
	}
	if int64(len(r.Bytes)) != r.Size {
		return fmt.Errorf("FileResponse: size %d does not match %d bytes", r.Size, len(r.Bytes))
	}
	return nil
}

func (t *FileTypes) fields() []any {
	return []any{stringsToList(t.MimeTypes), stringsToList(t.Extensions)}
}

func decodeFileResponse(fields []any) (*FileResponse, error) {
	if len(fields) != 5 {
		return nil, fmt.Errorf("FileResponse: expected 5 fields, got %d", len(fields))
	}
	path, ok := fields[0].(string)
	if !ok {
		return nil, fmt.Errorf("FileResponse.path: expected string, got %T", fields[0])
	}
	mimeType, err := optionalString(fields[1], "FileResponse.mimeType")
	if err != nil {
		return nil, err
	}
	name, err := optionalString(fields[2], "FileResponse.name")
	if err != nil {
		return nil, err
	}
	size, ok := fields[3].(int64)
	if !ok {
		return nil, fmt.Errorf("FileResponse.size: expected int, got %T", fields[3])
	}
	if size < 0 {
		return nil, fmt.Errorf("FileResponse.size: negative size %d", size)
	}
	data, ok := fields[4].([]byte)
	if !ok {
		return nil, fmt.Errorf("FileResponse.bytes: expected bytes, got %T", fields[4])
	}
	if int64(len(data)) != size {
		return nil, fmt.Errorf("FileResponse: size %d does not match %d bytes", size, len(data))
	}
	return &FileResponse{Path: path, MimeType: mimeType, Name: name, Size: size, Bytes: data}, nil
}

func decodeFileTypes(fields []any) (*FileTypes, error) {
	if len(fields) != 2 {
		return nil, fmt.Errorf("FileTypes: expected 2 fields, got %d", len(fields))
	}
	mimeTypes, err := listToStrings(fields[0], "FileTypes.mimeTypes")
	if err != nil {
		return nil, err
	}
	extensions, err := listToStrings(fields[1], "FileTypes.extensions")
	if err != nil {
		return nil, err
	}
	return &FileTypes{MimeTypes: mimeTypes, Extensions: extensions}, nil
}

var errNullList = errors.New("list must not be null")

func listToStrings(v any, field string) ([]string, error) {
	if v == nil {
		return nil, fmt.Errorf("%s: %w", field, errNullList)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected list, got %T", field, v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: expected string, got %T", field, i, item)
		}
		out[i] = s
	}
	return out, nil
}

func stringsToList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func optionalString(v any, field string) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", field, v)
	}
	return s, nil
}
