// Package codec implements the tagged binary message codec used on every
// channel.
//
// The base format assigns tags 0 through 14 to null, booleans, integers,
// floats, strings, byte buffers, typed numeric lists, generic lists and
// maps. Integers and floats are little endian; typed lists and floats are
// aligned to their element width relative to the start of the message.
//
// Applications add record types through Extensions. Each extension owns a
// set of tags in the high half of the tag byte (negative Tag values) and
// encodes a record as the tag followed by its fields as a generic list.
package codec

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"unicode/utf8"
)

// Tag is the leading byte of every encoded value.
type Tag int8

// Base tags.
const (
	TagNull Tag = iota
	TagTrue
	TagFalse
	TagInt32
	TagInt64
	TagLargeInt
	TagFloat64
	TagString
	TagBytes
	TagInt32List
	TagInt64List
	TagFloat64List
	TagList
	TagMap
	TagFloat32List
)

// MaxDepth bounds the nesting of lists, maps and records in one message.
const MaxDepth = 1024

// Extension adds record types to a Codec.
type Extension interface {
	// Tags lists every tag the extension encodes or decodes.
	Tags() []Tag
	// EncodeRecord reports whether v is one of the extension's records and,
	// if so, returns its tag and positional fields.
	EncodeRecord(v any) (tag Tag, fields []any, ok bool)
	// DecodeRecord rebuilds a record from its decoded field list.
	DecodeRecord(tag Tag, fields []any) (any, error)
}

// RecordChecker is implemented by extensions that refuse some record values
// at encode time. A non-nil error fails the write as an unsupported type.
type RecordChecker interface {
	CheckRecord(tag Tag, v any) error
}

// Codec encodes and decodes messages. It is immutable after New and safe
// for concurrent use.
type Codec struct {
	exts   []Extension
	owners map[Tag]int
}

// New builds a Codec over the base format plus exts.
// A tag claimed by two extensions, or a tag inside the base range, is an
// ErrTagConflict error.
func New(exts ...Extension) (*Codec, error) {
	owners := make(map[Tag]int)
	for i, ext := range exts {
		for _, tag := range ext.Tags() {
			if tag >= 0 {
				return nil, &Error{
					Kind: ErrTagConflict,
					Msg:  fmt.Sprintf("tag %d is reserved for the base format", tag),
				}
			}
			if _, dup := owners[tag]; dup {
				return nil, &Error{
					Kind: ErrTagConflict,
					Msg:  fmt.Sprintf("tag %d (0x%02x) registered twice", tag, byte(tag)),
				}
			}
			owners[tag] = i
		}
	}
	return &Codec{exts: exts, owners: owners}, nil
}

// EncodeMessage encodes v as a complete message. A nil v encodes to an
// empty message.
func (c *Codec) EncodeMessage(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	var w Writer
	if err := c.writeValue(&w, v, 0); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// DecodeMessage decodes a complete message. An empty message decodes to nil.
// Bytes left over after the first value are an error.
func (c *Codec) DecodeMessage(b []byte) (any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	r := NewReader(b)
	v, err := c.readValue(r, 0)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, malformedf("%d trailing bytes after value", r.Remaining())
	}
	return v, nil
}

// WriteValue writes one tagged value to w.
func (c *Codec) WriteValue(w *Writer, v any) error {
	return c.writeValue(w, v, 0)
}

// ReadValue reads one tagged value from r.
func (c *Codec) ReadValue(r *Reader) (any, error) {
	return c.readValue(r, 0)
}

func (c *Codec) writeValue(w *Writer, v any, depth int) error {
	if depth > MaxDepth {
		return unsupportedf("value nested deeper than %d", MaxDepth)
	}
	for i, ext := range c.exts {
		tag, fields, ok := ext.EncodeRecord(v)
		if !ok {
			continue
		}
		if owner, registered := c.owners[tag]; !registered || owner != i {
			return unsupportedf("%T encoded under tag %d not owned by its extension", v, tag)
		}
		if chk, ok := ext.(RecordChecker); ok {
			if err := chk.CheckRecord(tag, v); err != nil {
				return &Error{Kind: ErrUnsupportedType, Msg: fmt.Sprintf("%T rejected", v), Err: err}
			}
		}
		w.WriteTag(tag)
		return c.writeList(w, fields, depth+1)
	}
	return c.writeBase(w, v, depth)
}

func (c *Codec) writeBase(w *Writer, v any, depth int) error {
	switch x := v.(type) {
	case nil:
		w.WriteTag(TagNull)
	case bool:
		if x {
			w.WriteTag(TagTrue)
		} else {
			w.WriteTag(TagFalse)
		}
	case int:
		writeInt(w, int64(x))
	case int8:
		writeInt(w, int64(x))
	case int16:
		writeInt(w, int64(x))
	case int32:
		writeInt(w, int64(x))
	case int64:
		writeInt(w, x)
	case uint8:
		writeInt(w, int64(x))
	case uint16:
		writeInt(w, int64(x))
	case uint32:
		writeInt(w, int64(x))
	case uint:
		writeUint(w, uint64(x))
	case uint64:
		writeUint(w, x)
	case *big.Int:
		if x == nil {
			w.WriteTag(TagNull)
			return nil
		}
		writeBig(w, x)
	case float32:
		writeFloat(w, float64(x))
	case float64:
		writeFloat(w, x)
	case string:
		if !utf8.ValidString(x) {
			return unsupportedf("string is not valid UTF-8")
		}
		w.WriteTag(TagString)
		w.WriteSize(len(x))
		w.writeBytes([]byte(x))
	case []byte:
		w.WriteTag(TagBytes)
		w.WriteSize(len(x))
		w.writeBytes(x)
	case []int32:
		w.WriteTag(TagInt32List)
		w.WriteSize(len(x))
		w.WriteAlignment(4)
		for _, e := range x {
			w.writeInt32(e)
		}
	case []int64:
		w.WriteTag(TagInt64List)
		w.WriteSize(len(x))
		w.WriteAlignment(8)
		for _, e := range x {
			w.writeInt64(e)
		}
	case []float32:
		w.WriteTag(TagFloat32List)
		w.WriteSize(len(x))
		w.WriteAlignment(4)
		for _, e := range x {
			w.writeFloat32(e)
		}
	case []float64:
		w.WriteTag(TagFloat64List)
		w.WriteSize(len(x))
		w.WriteAlignment(8)
		for _, e := range x {
			w.writeFloat64(e)
		}
	case []any:
		return c.writeList(w, x, depth+1)
	case []string:
		w.WriteTag(TagList)
		w.WriteSize(len(x))
		for _, e := range x {
			if err := c.writeBase(w, e, depth+1); err != nil {
				return err
			}
		}
	case map[any]any:
		w.WriteTag(TagMap)
		w.WriteSize(len(x))
		for k, e := range x {
			if err := c.writeValue(w, k, depth+1); err != nil {
				return err
			}
			if err := c.writeValue(w, e, depth+1); err != nil {
				return err
			}
		}
	case map[string]any:
		w.WriteTag(TagMap)
		w.WriteSize(len(x))
		for k, e := range x {
			if err := c.writeBase(w, k, depth+1); err != nil {
				return err
			}
			if err := c.writeValue(w, e, depth+1); err != nil {
				return err
			}
		}
	default:
		return c.writeReflect(w, reflect.ValueOf(v), depth)
	}
	return nil
}

// writeReflect handles named types and container types the type switch
// does not list.
func (c *Codec) writeReflect(w *Writer, rv reflect.Value, depth int) error {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			w.WriteTag(TagNull)
			return nil
		}
		return unsupportedf("cannot encode %s", rv.Type())
	case reflect.Bool:
		return c.writeBase(w, rv.Bool(), depth)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeInt(w, rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		writeUint(w, rv.Uint())
	case reflect.Float32, reflect.Float64:
		writeFloat(w, rv.Float())
	case reflect.String:
		return c.writeBase(w, rv.String(), depth)
	case reflect.Slice, reflect.Array:
		w.WriteTag(TagList)
		w.WriteSize(rv.Len())
		for i := range rv.Len() {
			if err := c.writeValue(w, rv.Index(i).Interface(), depth+1); err != nil {
				return err
			}
		}
	case reflect.Map:
		w.WriteTag(TagMap)
		w.WriteSize(rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if err := c.writeValue(w, iter.Key().Interface(), depth+1); err != nil {
				return err
			}
			if err := c.writeValue(w, iter.Value().Interface(), depth+1); err != nil {
				return err
			}
		}
	default:
		return unsupportedf("cannot encode %s", rv.Type())
	}
	return nil
}

func (c *Codec) writeList(w *Writer, list []any, depth int) error {
	w.WriteTag(TagList)
	w.WriteSize(len(list))
	for _, e := range list {
		if err := c.writeValue(w, e, depth); err != nil {
			return err
		}
	}
	return nil
}

func writeInt(w *Writer, v int64) {
	if v >= math.MinInt32 && v <= math.MaxInt32 {
		w.WriteTag(TagInt32)
		w.writeInt32(int32(v))
		return
	}
	w.WriteTag(TagInt64)
	w.writeInt64(v)
}

func writeUint(w *Writer, v uint64) {
	if v <= math.MaxInt64 {
		writeInt(w, int64(v))
		return
	}
	writeBig(w, new(big.Int).SetUint64(v))
}

func writeBig(w *Writer, v *big.Int) {
	if v.IsInt64() {
		writeInt(w, v.Int64())
		return
	}
	hex := v.Text(16)
	w.WriteTag(TagLargeInt)
	w.WriteSize(len(hex))
	w.writeBytes([]byte(hex))
}

func writeFloat(w *Writer, v float64) {
	w.WriteTag(TagFloat64)
	w.WriteAlignment(8)
	w.writeFloat64(v)
}

func (c *Codec) readValue(r *Reader, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, malformedf("value nested deeper than %d", MaxDepth)
	}
	tag, err := r.ReadTag()
	if err != nil {
		return nil, err
	}
	if i, ok := c.owners[tag]; ok {
		return c.readRecord(r, c.exts[i], tag, depth)
	}
	return c.readBase(r, tag, depth)
}

func (c *Codec) readRecord(r *Reader, ext Extension, tag Tag, depth int) (any, error) {
	v, err := c.readValue(r, depth+1)
	if err != nil {
		return nil, err
	}
	fields, ok := v.([]any)
	if !ok {
		return nil, malformedf("record tag %d: fields must be a list, got %T", tag, v)
	}
	rec, err := ext.DecodeRecord(tag, fields)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, &Error{Kind: ErrMalformedMessage, Msg: fmt.Sprintf("record tag %d", tag), Err: err}
	}
	return rec, nil
}

func (c *Codec) readBase(r *Reader, tag Tag, depth int) (any, error) {
	switch tag {
	case TagNull:
		return nil, nil
	case TagTrue:
		return true, nil
	case TagFalse:
		return false, nil
	case TagInt32:
		v, err := r.readInt32()
		return int64(v), err
	case TagInt64:
		return r.readInt64()
	case TagLargeInt:
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		v, ok := new(big.Int).SetString(s, 16)
		if !ok {
			return nil, malformedf("invalid large integer %q", s)
		}
		if v.IsInt64() {
			return v.Int64(), nil
		}
		return v, nil
	case TagFloat64:
		if err := r.ReadAlignment(8); err != nil {
			return nil, err
		}
		return r.readFloat64()
	case TagString:
		return readString(r)
	case TagBytes:
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		b, err := r.take(n)
		if err != nil {
			return nil, err
		}
		out := make([]byte, n)
		copy(out, b)
		return out, nil
	case TagInt32List:
		n, err := readTypedHeader(r, 4)
		if err != nil {
			return nil, err
		}
		out := make([]int32, n)
		for i := range out {
			out[i], _ = r.readInt32()
		}
		return out, nil
	case TagInt64List:
		n, err := readTypedHeader(r, 8)
		if err != nil {
			return nil, err
		}
		out := make([]int64, n)
		for i := range out {
			out[i], _ = r.readInt64()
		}
		return out, nil
	case TagFloat32List:
		n, err := readTypedHeader(r, 4)
		if err != nil {
			return nil, err
		}
		out := make([]float32, n)
		for i := range out {
			out[i], _ = r.readFloat32()
		}
		return out, nil
	case TagFloat64List:
		n, err := readTypedHeader(r, 8)
		if err != nil {
			return nil, err
		}
		out := make([]float64, n)
		for i := range out {
			out[i], _ = r.readFloat64()
		}
		return out, nil
	case TagList:
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		if err := r.ensure(n, 1); err != nil {
			return nil, err
		}
		out := make([]any, n)
		for i := range out {
			if out[i], err = c.readValue(r, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	case TagMap:
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		if err := r.ensure(n, 2); err != nil {
			return nil, err
		}
		out := make(map[any]any, n)
		for range n {
			k, err := c.readValue(r, depth+1)
			if err != nil {
				return nil, err
			}
			if k != nil && !reflect.TypeOf(k).Comparable() {
				return nil, malformedf("map key of type %T cannot be hashed", k)
			}
			v, err := c.readValue(r, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, malformedf("unknown tag %d (0x%02x)", tag, byte(tag))
	}
}

// readTypedHeader reads the size and alignment of a typed numeric list and
// verifies the elements are present.
func readTypedHeader(r *Reader, width int) (int, error) {
	n, err := r.ReadSize()
	if err != nil {
		return 0, err
	}
	if err := r.ReadAlignment(width); err != nil {
		return 0, err
	}
	if err := r.ensure(n, width); err != nil {
		return 0, err
	}
	return n, nil
}

func readString(r *Reader) (string, error) {
	n, err := r.ReadSize()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", malformedf("string is not valid UTF-8")
	}
	return string(b), nil
}
