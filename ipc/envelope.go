package ipc

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// EnvelopeType discriminates envelopes.
type EnvelopeType string

const (
	// TypeMessage carries a request addressed to a channel.
	TypeMessage EnvelopeType = "message"
	// TypeReply carries the reply to the message with the same ID.
	TypeReply EnvelopeType = "reply"
)

// EncodingZstd marks a zstd-compressed payload.
const EncodingZstd = "zstd"

// MaxDecodedPayloadSize bounds a decompressed payload.
const MaxDecodedPayloadSize = 4 * MaxPayloadSize

// Envelope is the msgpack body of every frame. Payload holds codec bytes.
type Envelope struct {
	Type     EnvelopeType `msgpack:"type"`
	ID       string       `msgpack:"id"`
	Channel  string       `msgpack:"channel,omitempty"`
	Payload  []byte       `msgpack:"payload"`
	Encoding string       `msgpack:"encoding,omitempty"`
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("ipc: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedPayloadSize))
	if err != nil {
		panic("ipc: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeEnvelope marshals env. Payloads of at least threshold bytes are
// zstd-compressed when that makes them smaller; threshold <= 0 disables
// compression. env is not modified.
func EncodeEnvelope(env *Envelope, threshold int) ([]byte, error) {
	out := *env
	if out.Encoding == "" && threshold > 0 && len(out.Payload) >= threshold {
		compressed := zstdEncoder.EncodeAll(out.Payload, nil)
		if len(compressed) < len(out.Payload) {
			out.Payload = compressed
			out.Encoding = EncodingZstd
		}
	}
	body, err := msgpack.Marshal(&out)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorEncode,
			Msg:  "failed to encode envelope",
			Err:  err,
		}
	}
	return body, nil
}

// DecodeEnvelope unmarshals a frame body and decompresses its payload.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := msgpack.Unmarshal(body, &env); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode envelope",
			Err:  err,
		}
	}

	switch env.Type {
	case TypeMessage, TypeReply:
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown envelope type %q", env.Type),
		}
	}

	switch env.Encoding {
	case "":
	case EncodingZstd:
		payload, err := zstdDecoder.DecodeAll(env.Payload, nil)
		if err != nil {
			return nil, &FrameError{
				Kind: FrameErrorDecode,
				Msg:  "failed to decompress payload",
				Err:  err,
			}
		}
		env.Payload = payload
		env.Encoding = ""
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown payload encoding %q", env.Encoding),
		}
	}

	return &env, nil
}
