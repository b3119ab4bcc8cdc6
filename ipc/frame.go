// Package ipc implements the length-prefixed envelope framing that carries
// codec messages between the application and the bridge.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), excluding the length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum msgpack body of a single frame.
	MaxPayloadSize = MaxFrameSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates an envelope that could not be decoded.
	FrameErrorDecode
	// FrameErrorEncode indicates an envelope that could not be encoded.
	FrameErrorEncode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorDecode:
		return "decode"
	case FrameErrorEncode:
		return "encode"
	default:
		return "unknown"
	}
}

// FrameError represents a framing error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream cannot continue after this error.
// Partial and oversized frames desynchronize the stream; a bad envelope
// inside a well-formed frame does not.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame and returns its body.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// ReadEnvelope reads the next frame and decodes it as an Envelope.
// A decode failure is a non-fatal *FrameError; the stream stays usable.
func (d *FrameDecoder) ReadEnvelope() (*Envelope, error) {
	body, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope(body)
}

// FrameEncoder writes length-prefixed envelopes to a stream.
// Writes are serialized so concurrent replies never interleave.
type FrameEncoder struct {
	mu        sync.Mutex
	writer    io.Writer
	threshold int
}

// EncoderOption configures a FrameEncoder.
type EncoderOption func(*FrameEncoder)

// WithCompressThreshold compresses payloads of at least n bytes with zstd.
// Zero or negative disables compression.
func WithCompressThreshold(n int) EncoderOption {
	return func(e *FrameEncoder) { e.threshold = n }
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer, opts ...EncoderOption) *FrameEncoder {
	e := &FrameEncoder{writer: w}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteFrame writes body with its length prefix as a single write.
func (e *FrameEncoder) WriteFrame(body []byte) error {
	if len(body) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(body), MaxPayloadSize),
		}
	}
	frame := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(body)))
	copy(frame[LengthPrefixSize:], body)

	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.writer.Write(frame)
	return err
}

// WriteEnvelope encodes env, compressing its payload when it reaches the
// configured threshold, and writes it as one frame.
func (e *FrameEncoder) WriteEnvelope(env *Envelope) error {
	body, err := EncodeEnvelope(env, e.threshold)
	if err != nil {
		return err
	}
	return e.WriteFrame(body)
}
