// Package messenger routes framed messages to per-channel handlers and
// correlates replies to outgoing requests.
//
// The read loop only decodes envelopes. Every inbound message runs on its
// own worker goroutine, bounded by the in-flight limit, and every handler
// replies exactly once through its Reply.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pithecene-io/ferry/ipc"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
)

// DefaultMaxInFlight bounds concurrently running handlers.
const DefaultMaxInFlight = 8

// Errors returned by the messenger.
var (
	// ErrReplyAlreadySent is returned by a second Reply.Send.
	ErrReplyAlreadySent = errors.New("messenger: reply already sent")
	// ErrClosed is returned by Send after the read loop has stopped.
	ErrClosed = errors.New("messenger: closed")
)

// Message is one inbound request.
type Message struct {
	ID      string
	Channel string
	Payload []byte
}

// Handler serves messages on one channel. It must send its reply before
// returning; a handler that returns without replying gets an empty reply.
type Handler func(ctx context.Context, msg *Message, reply *Reply)

// Reply answers one message. Only the first Send is delivered.
type Reply struct {
	sent atomic.Bool
	send func(payload []byte) error
}

// NewReply returns a Reply that delivers through send. Intended for
// handlers driven outside a Messenger, such as tests.
func NewReply(send func(payload []byte) error) *Reply {
	return &Reply{send: send}
}

// Send delivers payload. A nil payload is an empty reply.
func (r *Reply) Send(payload []byte) error {
	if !r.sent.CompareAndSwap(false, true) {
		return ErrReplyAlreadySent
	}
	return r.send(payload)
}

// Sent reports whether Send has been called.
func (r *Reply) Sent() bool {
	return r.sent.Load()
}

// Option configures a Messenger.
type Option func(*Messenger)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Messenger) { m.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(m *Messenger) { m.collector = c }
}

// WithMaxInFlight bounds concurrently running handlers. Values below 1
// keep the default.
func WithMaxInFlight(n int) Option {
	return func(m *Messenger) {
		if n > 0 {
			m.maxInFlight = n
		}
	}
}

// WithCompressThreshold compresses outgoing payloads of at least n bytes.
func WithCompressThreshold(n int) Option {
	return func(m *Messenger) { m.threshold = n }
}

// Messenger is one end of a framed bidirectional stream.
type Messenger struct {
	dec         *ipc.FrameDecoder
	enc         *ipc.FrameEncoder
	logger      *log.Logger
	collector   *metrics.Collector
	maxInFlight int
	threshold   int

	mu       sync.RWMutex
	handlers map[string]Handler

	pendingMu sync.Mutex
	pending   map[string]chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// New creates a Messenger reading frames from r and writing frames to w.
func New(r io.Reader, w io.Writer, opts ...Option) *Messenger {
	m := &Messenger{
		dec:         ipc.NewFrameDecoder(r),
		maxInFlight: DefaultMaxInFlight,
		handlers:    make(map[string]Handler),
		pending:     make(map[string]chan []byte),
		closed:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.NewNop()
	}
	m.enc = ipc.NewFrameEncoder(w, ipc.WithCompressThreshold(m.threshold))
	return m
}

// SetMessageHandler installs h for channel. A nil h removes the handler.
func (m *Messenger) SetMessageHandler(channel string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h == nil {
		delete(m.handlers, channel)
		return
	}
	m.handlers[channel] = h
}

// Channels returns the channels that currently have a handler.
func (m *Messenger) Channels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.handlers))
	for name := range m.handlers {
		names = append(names, name)
	}
	return names
}

func (m *Messenger) handler(channel string) Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers[channel]
}

// Serve runs the read loop until the stream ends, a fatal framing error
// occurs or ctx is cancelled.
//
// On a clean end of stream Serve waits for in-flight handlers to reply and
// returns nil. Otherwise handler contexts are cancelled before Serve waits
// for them and returns the error.
func (m *Messenger) Serve(ctx context.Context) error {
	defer m.closeOnce.Do(func() { close(m.closed) })

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sem := make(chan struct{}, m.maxInFlight)

	// The decoder blocks on an idle peer; reading in its own goroutine lets
	// a cancel end Serve without waiting for the next frame.
	frames := make(chan frameResult)
	stop := make(chan struct{})
	defer close(stop)
	go m.readFrames(frames, stop)

	for {
		var res frameResult
		select {
		case <-ctx.Done():
			cancel()
			wg.Wait()
			return ctx.Err()
		case res = <-frames:
		}

		env, err := res.env, res.err
		if err == io.EOF {
			wg.Wait()
			return nil
		}
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				m.logger.Error("fatal framing error", map[string]any{"error": err.Error()})
				cancel()
				wg.Wait()
				return fmt.Errorf("read loop: %w", err)
			}
			m.collector.IncDecodeErrors()
			m.logger.Warn("skipping undecodable frame", map[string]any{"error": err.Error()})
			continue
		}

		switch env.Type {
		case ipc.TypeReply:
			m.resolve(env)
		case ipc.TypeMessage:
			msg := &Message{ID: env.ID, Channel: env.Channel, Payload: env.Payload}
			reply := m.replyFor(msg)

			h := m.handler(msg.Channel)
			if h == nil {
				m.logger.Debug("no handler for channel", map[string]any{"channel": msg.Channel, "id": msg.ID})
				m.sendReply(reply, nil)
				continue
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				cancel()
				wg.Wait()
				return ctx.Err()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				m.dispatch(workCtx, h, msg, reply)
			}()
		}
	}
}

type frameResult struct {
	env *ipc.Envelope
	err error
}

// readFrames delivers envelopes until the stream ends, a fatal framing
// error occurs or stop is closed.
func (m *Messenger) readFrames(out chan<- frameResult, stop <-chan struct{}) {
	for {
		env, err := m.dec.ReadEnvelope()
		select {
		case out <- frameResult{env: env, err: err}:
		case <-stop:
			return
		}
		if err == io.EOF || ipc.IsFatalFrameError(err) {
			return
		}
	}
}

func (m *Messenger) dispatch(ctx context.Context, h Handler, msg *Message, reply *Reply) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("handler panicked", map[string]any{
				"channel": msg.Channel,
				"id":      msg.ID,
				"panic":   fmt.Sprint(r),
			})
		}
		if !reply.Sent() {
			m.logger.Warn("handler returned without replying", map[string]any{"channel": msg.Channel, "id": msg.ID})
			m.sendReply(reply, nil)
		}
	}()
	h(ctx, msg, reply)
}

func (m *Messenger) replyFor(msg *Message) *Reply {
	return NewReply(func(payload []byte) error {
		return m.enc.WriteEnvelope(&ipc.Envelope{Type: ipc.TypeReply, ID: msg.ID, Payload: payload})
	})
}

func (m *Messenger) sendReply(reply *Reply, payload []byte) {
	if err := reply.Send(payload); err != nil && !errors.Is(err, ErrReplyAlreadySent) {
		m.logger.Error("failed to write reply", map[string]any{"error": err.Error()})
	}
}

func (m *Messenger) resolve(env *ipc.Envelope) {
	m.pendingMu.Lock()
	ch, ok := m.pending[env.ID]
	delete(m.pending, env.ID)
	m.pendingMu.Unlock()

	if !ok {
		m.logger.Warn("reply for unknown request", map[string]any{"id": env.ID})
		return
	}
	ch <- env.Payload
}

// Send writes a request on channel and waits for its reply. Serve must be
// running on the same Messenger for the reply to be read.
func (m *Messenger) Send(ctx context.Context, channel string, payload []byte) ([]byte, error) {
	id := uuid.NewString()
	ch := make(chan []byte, 1)

	m.pendingMu.Lock()
	m.pending[id] = ch
	m.pendingMu.Unlock()
	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	env := &ipc.Envelope{Type: ipc.TypeMessage, ID: id, Channel: channel, Payload: payload}
	if err := m.enc.WriteEnvelope(env); err != nil {
		return nil, fmt.Errorf("send on %s: %w", channel, err)
	}

	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.closed:
		select {
		case reply := <-ch:
			return reply, nil
		default:
			return nil, ErrClosed
		}
	}
}
