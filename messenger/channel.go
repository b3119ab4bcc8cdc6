package messenger

import (
	"context"

	"github.com/pithecene-io/ferry/codec"
)

// BasicChannel sends codec values on one named channel.
type BasicChannel struct {
	messenger *Messenger
	name      string
	codec     *codec.Codec
}

// NewBasicChannel binds name and c to m.
func NewBasicChannel(m *Messenger, name string, c *codec.Codec) *BasicChannel {
	return &BasicChannel{messenger: m, name: name, codec: c}
}

// Name returns the channel name.
func (b *BasicChannel) Name() string {
	return b.name
}

// Send encodes msg, sends it and decodes the reply. An empty reply decodes
// to nil.
func (b *BasicChannel) Send(ctx context.Context, msg any) (any, error) {
	payload, err := b.codec.EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	reply, err := b.messenger.Send(ctx, b.name, payload)
	if err != nil {
		return nil, err
	}
	return b.codec.DecodeMessage(reply)
}

// SetMessageHandler installs h for the channel, decoding each message with
// the channel's codec. Undecodable messages get an empty reply and are not
// passed to h. A nil h removes the handler.
func (b *BasicChannel) SetMessageHandler(h func(ctx context.Context, msg any) (any, error)) {
	if h == nil {
		b.messenger.SetMessageHandler(b.name, nil)
		return
	}
	b.messenger.SetMessageHandler(b.name, func(ctx context.Context, m *Message, reply *Reply) {
		in, err := b.codec.DecodeMessage(m.Payload)
		if err != nil {
			b.messenger.collector.IncDecodeErrors()
			b.messenger.logger.Warn("undecodable message", map[string]any{"channel": b.name, "error": err.Error()})
			b.messenger.sendReply(reply, nil)
			return
		}
		out, err := h(ctx, in)
		if err != nil {
			b.messenger.logger.Warn("channel handler failed", map[string]any{"channel": b.name, "error": err.Error()})
			b.messenger.sendReply(reply, nil)
			return
		}
		payload, err := b.codec.EncodeMessage(out)
		if err != nil {
			b.messenger.logger.Error("unencodable reply", map[string]any{"channel": b.name, "error": err.Error()})
			payload = nil
		}
		b.messenger.sendReply(reply, payload)
	})
}
