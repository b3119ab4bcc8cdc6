// Package bridge turns channel messages into typed calls and answers each
// call with exactly one outcome.
//
// A registered Method receives the decoded positional arguments and a Sink.
// The Sink delivers the first outcome as the reply and rejects every later
// one. Decode failures, panics and methods that return without settling are
// answered with structured errors, so a call never goes unanswered.
package bridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pithecene-io/ferry/codec"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/messenger"
	"github.com/pithecene-io/ferry/metrics"
)

// Call is one decoded inbound request.
type Call struct {
	ID      string
	Channel string
	Args    []any
}

// Arg returns argument i as T. A missing or nil argument returns the zero
// T and false. An argument of any other type is a MalformedMessage error.
func Arg[T any](c *Call, i int) (T, bool, error) {
	var zero T
	if i >= len(c.Args) || c.Args[i] == nil {
		return zero, false, nil
	}
	v, ok := c.Args[i].(T)
	if !ok {
		return zero, false, NewError(CodeMalformedMessage,
			fmt.Sprintf("argument %d: expected %T, got %T", i, zero, c.Args[i]), nil)
	}
	return v, true, nil
}

type callKey struct{}

// WithCall returns ctx carrying call.
func WithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// CallFromContext returns the call a method is serving.
func CallFromContext(ctx context.Context) (*Call, bool) {
	call, ok := ctx.Value(callKey{}).(*Call)
	return call, ok
}

// Method serves one channel. It must settle sink before returning.
type Method func(ctx context.Context, call *Call, sink *Sink)

// Registrar accepts per-channel message handlers.
type Registrar interface {
	SetMessageHandler(channel string, h messenger.Handler)
}

// ChannelName returns "<namespace>.<api>.<method>".
func ChannelName(namespace, api, method string) string {
	return namespace + "." + api + "." + method
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(b *Bridge) { b.collector = c }
}

// Bridge binds Methods to channels.
type Bridge struct {
	registrar Registrar
	codec     *codec.Codec
	logger    *log.Logger
	collector *metrics.Collector
}

// New creates a Bridge registering on r and encoding with c.
func New(r Registrar, c *codec.Codec, opts ...Option) *Bridge {
	b := &Bridge{registrar: r, codec: c}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = log.NewNop()
	}
	return b
}

// Codec returns the codec used for arguments and replies.
func (b *Bridge) Codec() *codec.Codec {
	return b.codec
}

// Register binds m to channel. A nil m removes the binding.
func (b *Bridge) Register(channel string, m Method) {
	if m == nil {
		b.registrar.SetMessageHandler(channel, nil)
		return
	}
	b.registrar.SetMessageHandler(channel, b.handler(channel, m))
}

func (b *Bridge) handler(channel string, m Method) messenger.Handler {
	return func(ctx context.Context, msg *messenger.Message, reply *messenger.Reply) {
		start := time.Now()
		call := &Call{ID: msg.ID, Channel: channel}
		sink := NewSink(func(o Outcome) { b.deliver(call, reply, o, start) })
		b.collector.IncCallReceived()

		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("method panicked", map[string]any{
					"channel": channel,
					"call_id": call.ID,
					"panic":   fmt.Sprint(r),
				})
				_ = sink.Fail(NewError(CodeUnavailable, fmt.Sprintf("handler panicked: %v", r), nil))
			}
			if !sink.Settled() {
				_ = sink.Fail(NewError(CodeUnavailable, "handler returned without a result", nil))
			}
		}()

		args, err := b.decodeArgs(msg.Payload)
		if err != nil {
			b.collector.IncDecodeErrors()
			_ = sink.Fail(err)
			return
		}
		call.Args = args

		b.logger.Debug("call received", map[string]any{"channel": channel, "call_id": call.ID, "args": len(args)})
		m(WithCall(ctx, call), call, sink)
	}
}

func (b *Bridge) decodeArgs(payload []byte) ([]any, error) {
	v, err := b.codec.DecodeMessage(payload)
	if err != nil {
		return nil, err
	}
	switch args := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return args, nil
	default:
		return nil, NewError(CodeMalformedMessage, fmt.Sprintf("arguments must be a list, got %T", v), nil)
	}
}

func (b *Bridge) deliver(call *Call, reply *messenger.Reply, o Outcome, start time.Time) {
	payload, err := b.codec.EncodeMessage(o.Wrap())
	if err != nil {
		b.logger.Error("reply not encodable", map[string]any{"channel": call.Channel, "call_id": call.ID, "error": err.Error()})
		o = Failure(err)
		payload, err = b.codec.EncodeMessage(o.Wrap())
		if err != nil {
			payload, _ = b.codec.EncodeMessage([]any{o.err.Code, o.err.Message, nil})
		}
	}

	fields := map[string]any{
		"channel":     call.Channel,
		"call_id":     call.ID,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if o.IsError() {
		b.collector.IncCallFailed(o.err.Code)
		fields["code"] = o.err.Code
		fields["error"] = o.err.Message
		b.logger.Warn("call failed", fields)
	} else {
		b.collector.IncCallSucceeded()
		b.logger.Info("call succeeded", fields)
	}

	if err := reply.Send(payload); err != nil {
		b.logger.Error("failed to send reply", map[string]any{"channel": call.Channel, "call_id": call.ID, "error": err.Error()})
	}
}

// sanitize keeps reply strings encodable.
func sanitize(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
