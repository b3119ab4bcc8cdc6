package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeFrame prefixes body with its big-endian length.
func encodeFrame(body []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(body)))
	copy(buf[LengthPrefixSize:], body)
	return buf
}

func TestFrameEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf)

	sent := []*Envelope{
		{Type: TypeMessage, ID: "call-1", Channel: "dev.flutter.pigeon.FileSelectorApi.openFile", Payload: []byte{12, 0}},
		{Type: TypeReply, ID: "call-1", Payload: []byte{12, 1, 0}},
	}
	for _, env := range sent {
		if err := enc.WriteEnvelope(env); err != nil {
			t.Fatalf("WriteEnvelope failed: %v", err)
		}
	}

	dec := NewFrameDecoder(&buf)
	for i, want := range sent {
		got, err := dec.ReadEnvelope()
		if err != nil {
			t.Fatalf("ReadEnvelope[%d] failed: %v", i, err)
		}
		if got.Type != want.Type {
			t.Errorf("Type = %q, want %q", got.Type, want.Type)
		}
		if got.ID != want.ID {
			t.Errorf("ID = %q, want %q", got.ID, want.ID)
		}
		if got.Channel != want.Channel {
			t.Errorf("Channel = %q, want %q", got.Channel, want.Channel)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("Payload = %v, want %v", got.Payload, want.Payload)
		}
	}

	if _, err := dec.ReadEnvelope(); err != io.EOF {
		t.Errorf("ReadEnvelope at end = %v, want io.EOF", err)
	}
}

func TestFrameEncoder_Compression(t *testing.T) {
	payload := bytes.Repeat([]byte("ferry"), 1000)

	var buf bytes.Buffer
	enc := NewFrameEncoder(&buf, WithCompressThreshold(1024))
	if err := enc.WriteEnvelope(&Envelope{Type: TypeReply, ID: "x", Payload: payload}); err != nil {
		t.Fatalf("WriteEnvelope failed: %v", err)
	}

	body, err := NewFrameDecoder(bytes.NewReader(buf.Bytes())).ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	var raw Envelope
	if err := msgpack.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw.Encoding != EncodingZstd {
		t.Errorf("Encoding = %q, want %q", raw.Encoding, EncodingZstd)
	}
	if len(raw.Payload) >= len(payload) {
		t.Errorf("compressed payload is %d bytes, want fewer than %d", len(raw.Payload), len(payload))
	}

	got, err := NewFrameDecoder(&buf).ReadEnvelope()
	if err != nil {
		t.Fatalf("ReadEnvelope failed: %v", err)
	}
	if got.Encoding != "" {
		t.Errorf("decoded Encoding = %q, want empty", got.Encoding)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Error("decompressed payload differs from original")
	}
}

func TestFrameEncoder_BelowThresholdUncompressed(t *testing.T) {
	body, err := EncodeEnvelope(&Envelope{Type: TypeReply, ID: "x", Payload: []byte{1, 2, 3}}, 1024)
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}
	var raw Envelope
	if err := msgpack.Unmarshal(body, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if raw.Encoding != "" {
		t.Errorf("Encoding = %q, want empty", raw.Encoding)
	}
}

func TestFrameDecoder_PartialLengthPrefix(t *testing.T) {
	dec := NewFrameDecoder(bytes.NewReader([]byte{0, 0}))
	_, err := dec.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("error = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %v, want %v", frameErr.Kind, FrameErrorPartial)
	}
	if !IsFatalFrameError(err) {
		t.Error("partial frame should be fatal")
	}
}

func TestFrameDecoder_PartialPayload(t *testing.T) {
	frame := encodeFrame([]byte{1, 2, 3, 4})
	dec := NewFrameDecoder(bytes.NewReader(frame[:6]))
	_, err := dec.ReadFrame()
	if !IsFatalFrameError(err) {
		t.Errorf("error = %v, want fatal partial frame", err)
	}
}

func TestFrameDecoder_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)

	_, err := NewFrameDecoder(bytes.NewReader(prefix[:])).ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Fatalf("error = %v, want FrameErrorTooLarge", err)
	}
	if !frameErr.IsFatal() {
		t.Error("oversized frame should be fatal")
	}
}

func TestFrameEncoder_TooLarge(t *testing.T) {
	enc := NewFrameEncoder(io.Discard)
	err := enc.WriteFrame(make([]byte, MaxPayloadSize+1))

	var frameErr *FrameError
	if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("error = %v, want FrameErrorTooLarge", err)
	}
}

func TestFrameDecoder_BadEnvelopeIsNotFatal(t *testing.T) {
	unknownType, err := msgpack.Marshal(&Envelope{Type: "bogus", ID: "1"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	badEncoding, err := msgpack.Marshal(&Envelope{Type: TypeMessage, ID: "2", Payload: []byte{1}, Encoding: "lz4"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	good, err := EncodeEnvelope(&Envelope{Type: TypeMessage, ID: "3"}, 0)
	if err != nil {
		t.Fatalf("EncodeEnvelope failed: %v", err)
	}

	var stream []byte
	stream = append(stream, encodeFrame([]byte{0xc1})...)
	stream = append(stream, encodeFrame(unknownType)...)
	stream = append(stream, encodeFrame(badEncoding)...)
	stream = append(stream, encodeFrame(good)...)

	dec := NewFrameDecoder(bytes.NewReader(stream))
	for i := range 3 {
		_, err := dec.ReadEnvelope()
		var frameErr *FrameError
		if !errors.As(err, &frameErr) || frameErr.Kind != FrameErrorDecode {
			t.Fatalf("frame %d: error = %v, want FrameErrorDecode", i, err)
		}
		if frameErr.IsFatal() {
			t.Errorf("frame %d: decode error should not be fatal", i)
		}
	}

	env, err := dec.ReadEnvelope()
	if err != nil {
		t.Fatalf("ReadEnvelope after bad frames failed: %v", err)
	}
	if env.ID != "3" {
		t.Errorf("ID = %q, want %q", env.ID, "3")
	}
}
