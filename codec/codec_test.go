package codec

import (
	"bytes"
	"errors"
	"math/big"
	"reflect"
	"strings"
	"testing"
)

type point struct{ X, Y int64 }

type pointExt struct{}

func (pointExt) Tags() []Tag { return []Tag{-1} }

func (pointExt) EncodeRecord(v any) (Tag, []any, bool) {
	switch p := v.(type) {
	case *point:
		return -1, []any{p.X, p.Y}, true
	case point:
		return -1, []any{p.X, p.Y}, true
	}
	return 0, nil, false
}

func (pointExt) DecodeRecord(_ Tag, fields []any) (any, error) {
	if len(fields) != 2 {
		return nil, errors.New("point needs 2 fields")
	}
	x, okX := fields[0].(int64)
	y, okY := fields[1].(int64)
	if !okX || !okY {
		return nil, errors.New("point fields must be integers")
	}
	return &point{X: x, Y: y}, nil
}

// tagsOnly claims tags without encoding anything.
type tagsOnly []Tag

func (t tagsOnly) Tags() []Tag                       { return t }
func (tagsOnly) EncodeRecord(any) (Tag, []any, bool) { return 0, nil, false }
func (tagsOnly) DecodeRecord(Tag, []any) (any, error) {
	return nil, errors.New("no records")
}

// rogueExt encodes under a tag it never registered.
type rogueExt struct{}

func (rogueExt) Tags() []Tag { return []Tag{-2} }
func (rogueExt) EncodeRecord(v any) (Tag, []any, bool) {
	if _, ok := v.(*point); ok {
		return -3, nil, true
	}
	return 0, nil, false
}
func (rogueExt) DecodeRecord(Tag, []any) (any, error) { return nil, nil }

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(pointExt{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestEncodeMessage_WireBytes(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		value any
		want  []byte
	}{
		{"true", true, []byte{1}},
		{"false", false, []byte{2}},
		{"int32", 5, []byte{3, 5, 0, 0, 0}},
		{"negative int32", int64(-1), []byte{3, 0xff, 0xff, 0xff, 0xff}},
		{"int64", int64(1) << 40, []byte{4, 0, 0, 0, 0, 0, 1, 0, 0}},
		{"string", "hi", []byte{7, 2, 'h', 'i'}},
		{"bytes", []byte{9, 8}, []byte{8, 2, 9, 8}},
		{"float64 aligned", 1.0, []byte{6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0xf0, 0x3f}},
		{"int32 list aligned", []int32{1, 2}, []byte{9, 2, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0}},
		{"list", []any{true, nil}, []byte{12, 2, 1, 0}},
		{"string list", []string{"a"}, []byte{12, 1, 7, 1, 'a'}},
		{"map", map[any]any{"k": false}, []byte{13, 1, 7, 1, 'k', 2}},
		{"record", &point{X: 1, Y: 2}, []byte{0xff, 12, 2, 3, 1, 0, 0, 0, 3, 2, 0, 0, 0}},
		{"record by value", point{X: 1, Y: 2}, []byte{0xff, 12, 2, 3, 1, 0, 0, 0, 3, 2, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.EncodeMessage(tt.value)
			if err != nil {
				t.Fatalf("EncodeMessage failed: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeMessage(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestEncodeMessage_NilIsEmpty(t *testing.T) {
	c := newTestCodec(t)

	got, err := c.EncodeMessage(nil)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("EncodeMessage(nil) = %v, want empty", got)
	}

	v, err := c.DecodeMessage(nil)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	if v != nil {
		t.Errorf("DecodeMessage(empty) = %v, want nil", v)
	}
}

func TestWriteSize_Prefixes(t *testing.T) {
	tests := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0}},
		{253, []byte{253}},
		{254, []byte{254, 254, 0}},
		{0xffff, []byte{254, 0xff, 0xff}},
		{70000, []byte{255, 0x70, 0x11, 0x01, 0x00}},
	}
	for _, tt := range tests {
		var w Writer
		w.WriteSize(tt.n)
		if !bytes.Equal(w.Bytes(), tt.want) {
			t.Errorf("WriteSize(%d) = %v, want %v", tt.n, w.Bytes(), tt.want)
		}
		n, err := NewReader(w.Bytes()).ReadSize()
		if err != nil {
			t.Fatalf("ReadSize failed: %v", err)
		}
		if n != tt.n {
			t.Errorf("ReadSize = %d, want %d", n, tt.n)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	large, _ := new(big.Int).SetString("-123456789abcdef0123456789", 16)

	tests := []struct {
		name  string
		value any
	}{
		{"true", true},
		{"int64 small", int64(42)},
		{"int64 min", int64(-1) << 63},
		{"float", 3.25},
		{"string", "héllo"},
		{"long string", strings.Repeat("x", 300)},
		{"bytes", []byte{0, 1, 2, 255}},
		{"int32 list", []int32{-1, 0, 1}},
		{"int64 list", []int64{1 << 40, -5}},
		{"float32 list", []float32{1.5, -2}},
		{"float64 list", []float64{0.5, 1e300}},
		{"empty list", []any{}},
		{"list", []any{nil, true, int64(1), "two", 3.0}},
		{"map", map[any]any{"a": int64(1), int64(2): []any{"x"}, nil: false}},
		{"record", &point{X: 7, Y: -7}},
		{"records in list", []any{&point{X: 1, Y: 2}, &point{X: 3, Y: 4}}},
		{"record in map in list", []any{map[any]any{"p": &point{X: 5, Y: 6}}, []any{[]any{&point{}}}}},
		{"large int", large},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := c.EncodeMessage(tt.value)
			if err != nil {
				t.Fatalf("EncodeMessage failed: %v", err)
			}
			got, err := c.DecodeMessage(b)
			if err != nil {
				t.Fatalf("DecodeMessage failed: %v", err)
			}
			if want, ok := tt.value.(*big.Int); ok {
				gotBig, ok := got.(*big.Int)
				if !ok || gotBig.Cmp(want) != 0 {
					t.Errorf("round trip = %v, want %v", got, want)
				}
				return
			}
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("round trip = %#v, want %#v", got, tt.value)
			}
		})
	}
}

func TestRoundTrip_IntegersDecodeAsInt64(t *testing.T) {
	c := newTestCodec(t)

	for _, v := range []any{int8(-3), int16(300), int32(70000), uint8(200), uint32(1 << 31), 12} {
		b, err := c.EncodeMessage(v)
		if err != nil {
			t.Fatalf("EncodeMessage(%T) failed: %v", v, err)
		}
		got, err := c.DecodeMessage(b)
		if err != nil {
			t.Fatalf("DecodeMessage failed: %v", err)
		}
		if _, ok := got.(int64); !ok {
			t.Errorf("decoded %T as %T, want int64", v, got)
		}
	}
}

func TestRoundTrip_LargeUnsigned(t *testing.T) {
	c := newTestCodec(t)

	b, err := c.EncodeMessage(uint64(1) << 63)
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if Tag(b[0]) != TagLargeInt {
		t.Fatalf("tag = %d, want %d", b[0], TagLargeInt)
	}
	got, err := c.DecodeMessage(b)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	want := new(big.Int).SetUint64(1 << 63)
	if gotBig, ok := got.(*big.Int); !ok || gotBig.Cmp(want) != 0 {
		t.Errorf("decoded %v, want %v", got, want)
	}
}

func TestEncode_NamedTypes(t *testing.T) {
	c := newTestCodec(t)

	type mode string
	type codes []int

	b, err := c.EncodeMessage([]any{mode("media"), codes{1, 2}})
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	got, err := c.DecodeMessage(b)
	if err != nil {
		t.Fatalf("DecodeMessage failed: %v", err)
	}
	want := []any{"media", []any{int64(1), int64(2)}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("decoded %#v, want %#v", got, want)
	}
}

func TestDecodeMessage_Malformed(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		input []byte
	}{
		{"unknown base-range tag", []byte{99}},
		{"unregistered custom tag", []byte{0x80}},
		{"truncated int32", []byte{3, 1, 2}},
		{"trailing bytes", []byte{0, 0}},
		{"list longer than input", []byte{12, 5, 0}},
		{"truncated size", []byte{7, 254, 1}},
		{"invalid utf8", []byte{7, 1, 0xff}},
		{"unhashable map key", []byte{13, 1, 8, 0, 0}},
		{"record fields not a list", []byte{0xff, 3, 1, 0, 0, 0}},
		{"record field count", []byte{0xff, 12, 1, 3, 1, 0, 0, 0}},
		{"bad large int", []byte{5, 2, 'z', 'z'}},
		{"typed list past end", []byte{10, 4, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecodeMessage(tt.input)
			if err == nil {
				t.Fatal("DecodeMessage succeeded, want error")
			}
			if !IsMalformed(err) {
				t.Errorf("DecodeMessage error = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestDecodeMessage_DepthLimit(t *testing.T) {
	c := newTestCodec(t)

	var b []byte
	for range MaxDepth + 2 {
		b = append(b, byte(TagList), 1)
	}
	b = append(b, byte(TagNull))

	_, err := c.DecodeMessage(b)
	if !IsMalformed(err) {
		t.Errorf("DecodeMessage error = %v, want ErrMalformedMessage", err)
	}
}

func TestEncodeMessage_Unsupported(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name  string
		value any
	}{
		{"struct", struct{ A int }{1}},
		{"channel", make(chan int)},
		{"func", func() {}},
		{"invalid utf8", string([]byte{0xff})},
		{"nested struct", []any{"ok", struct{}{}}},
		{"non-nil unknown pointer", &struct{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.EncodeMessage(tt.value)
			if !IsUnsupported(err) {
				t.Errorf("EncodeMessage error = %v, want ErrUnsupportedType", err)
			}
		})
	}
}

func TestEncodeMessage_NilPointerIsNull(t *testing.T) {
	c := newTestCodec(t)

	var p *struct{}
	got, err := c.EncodeMessage([]any{p})
	if err != nil {
		t.Fatalf("EncodeMessage failed: %v", err)
	}
	if want := []byte{12, 1, 0}; !bytes.Equal(got, want) {
		t.Errorf("EncodeMessage = %v, want %v", got, want)
	}
}

func TestNew_TagConflicts(t *testing.T) {
	tests := []struct {
		name string
		exts []Extension
	}{
		{"duplicate across extensions", []Extension{tagsOnly{-5}, tagsOnly{-5}}},
		{"duplicate within extension", []Extension{tagsOnly{-6, -6}}},
		{"base range", []Extension{tagsOnly{TagMap}}},
		{"base range beyond builtins", []Extension{tagsOnly{64}}},
		{"clash with record ext", []Extension{pointExt{}, tagsOnly{-1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.exts...)
			if !errors.Is(err, ErrTagConflict) {
				t.Errorf("New error = %v, want ErrTagConflict", err)
			}
		})
	}
}

func TestNew_DisjointExtensions(t *testing.T) {
	if _, err := New(pointExt{}, tagsOnly{-128, -127}); err != nil {
		t.Fatalf("New failed: %v", err)
	}
}

func TestEncodeMessage_UnownedTag(t *testing.T) {
	c, err := New(rogueExt{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = c.EncodeMessage(&point{})
	if !IsUnsupported(err) {
		t.Errorf("EncodeMessage error = %v, want ErrUnsupportedType", err)
	}
}

func TestError_Format(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Kind: ErrMalformedMessage, Msg: "record tag -1", Err: cause}

	if got, want := err.Error(), "malformed message: record tag -1: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if errors.Is(err, ErrUnsupportedType) {
		t.Error("errors.Is(err, ErrUnsupportedType) = true, want false")
	}
}
