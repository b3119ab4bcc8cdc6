// Package notify publishes selection completion events to downstream
// systems.
//
// Notifiers are best effort. A failed publish is logged and counted by the
// Listener and never changes the outcome of the call it describes.
package notify

import (
	"context"
	"time"

	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
)

// EventTypeSelectionCompleted is the event_type of every event.
const EventTypeSelectionCompleted = "selection_completed"

// SelectionCompletedEvent is the payload published when a call settles.
type SelectionCompletedEvent struct {
	EventType  string `json:"event_type"` // always "selection_completed"
	CallID     string `json:"call_id"`
	Namespace  string `json:"namespace"`
	Method     string `json:"method"`
	Outcome    string `json:"outcome"` // succeeded, cancelled, failed
	ErrorCode  string `json:"error_code,omitempty"`
	FileCount  int    `json:"file_count"`
	Bytes      int64  `json:"bytes"`
	Directory  string `json:"directory,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  string `json:"timestamp"` // RFC 3339
}

// NewEvent builds the event describing c.
func NewEvent(namespace string, c *fileselector.Completion) *SelectionCompletedEvent {
	completed := c.Completed
	if completed.IsZero() {
		completed = time.Now()
	}
	return &SelectionCompletedEvent{
		EventType:  EventTypeSelectionCompleted,
		CallID:     c.CallID,
		Namespace:  namespace,
		Method:     c.Method,
		Outcome:    string(c.Outcome),
		ErrorCode:  c.ErrorCode,
		FileCount:  len(c.Files),
		Bytes:      c.Bytes(),
		Directory:  c.Directory,
		DurationMs: c.Duration.Milliseconds(),
		Timestamp:  completed.UTC().Format(time.RFC3339Nano),
	}
}

// Notifier publishes completion events to a downstream system.
type Notifier interface {
	// Publish sends one event. Must respect context cancellation.
	Publish(ctx context.Context, event *SelectionCompletedEvent) error

	// Close releases notifier resources.
	Close() error
}

// Backoff returns the wait before retry attempt i (i >= 1): 500ms doubling.
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Listener publishes every completion through a Notifier.
type Listener struct {
	notifier  Notifier
	namespace string
	logger    *log.Logger
	collector *metrics.Collector
}

var _ fileselector.Listener = (*Listener)(nil)

// NewListener creates a Listener. logger and collector may be nil.
func NewListener(n Notifier, namespace string, logger *log.Logger, collector *metrics.Collector) *Listener {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Listener{notifier: n, namespace: namespace, logger: logger, collector: collector}
}

// SelectionCompleted implements fileselector.Listener.
func (l *Listener) SelectionCompleted(ctx context.Context, c *fileselector.Completion) {
	if err := l.notifier.Publish(ctx, NewEvent(l.namespace, c)); err != nil {
		l.collector.IncNotifyFailure()
		l.logger.Warn("notification failed", map[string]any{
			"call_id": c.CallID,
			"error":   err.Error(),
		})
	}
}
