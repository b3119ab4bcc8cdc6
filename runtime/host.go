// Package runtime assembles a FileSelectorApi host from its collaborators
// and serves it over a stream, a unix socket or an in-process pipe.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ferry/archive"
	"github.com/pithecene-io/ferry/bridge"
	"github.com/pithecene-io/ferry/codec"
	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/materialize"
	"github.com/pithecene-io/ferry/messenger"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/notify"
	"github.com/pithecene-io/ferry/picker"
)

// HostConfig configures a Host.
type HostConfig struct {
	// Namespace prefixes every channel name.
	// If empty, fileselector.DefaultNamespace is used.
	Namespace string
	// Picker launches the native dialogs (required).
	Picker picker.Picker
	// MaxMediaCount bounds multi-select media pickers.
	// If zero, fileselector.DefaultMaxMediaCount is used.
	MaxMediaCount int
	// MaxFileSize rejects files larger than this many bytes. Zero is unbounded.
	MaxFileSize int64
	// Store backs store:// URIs, the archive and the call history.
	// If nil, store:// URIs fail and Archive and History must be false.
	Store lode.StoreFactory
	// Archive persists the files of every successful call into Store.
	Archive bool
	// History records every settled call in the history dataset.
	History bool
	// Notifier publishes a completion event per settled call (optional).
	Notifier notify.Notifier
	// Listeners observe settled calls after the built-in listeners.
	Listeners []fileselector.Listener
	// MaxInFlight bounds concurrent handlers per connection.
	MaxInFlight int
	// CompressThreshold compresses outgoing payloads of at least this size.
	CompressThreshold int
	// Logger receives host logs. If nil, logs are discarded.
	Logger *log.Logger
	// Collector records host metrics.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
}

// Host is a configured FileSelectorApi implementation ready to be attached
// to messengers. A Host is safe to attach to many connections at once.
type Host struct {
	config   HostConfig
	codec    *codec.Codec
	selector *fileselector.Selector
	listener fileselector.Listener
	history  *archive.History
	logger   *log.Logger
}

// NewHost validates cfg and builds the selector, materializer and
// listeners it describes.
func NewHost(cfg HostConfig) (*Host, error) {
	if cfg.Picker == nil {
		return nil, errors.New("host requires a picker")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = fileselector.DefaultNamespace
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.Store == nil && (cfg.Archive || cfg.History) {
		return nil, errors.New("archive and history require a store")
	}

	matOpts := []materialize.Option{materialize.WithMaxSize(cfg.MaxFileSize)}
	var store lode.Store
	if cfg.Store != nil {
		s, err := cfg.Store()
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		store = s
		matOpts = append(matOpts, materialize.WithStore(store))
	}

	h := &Host{
		config: cfg,
		codec:  fileselector.NewCodec(),
		logger: cfg.Logger,
	}
	h.selector = fileselector.NewSelector(cfg.Picker, materialize.New(matOpts...),
		fileselector.WithLogger(cfg.Logger.Named("selector")),
		fileselector.WithCollector(cfg.Collector),
		fileselector.WithMaxMediaCount(cfg.MaxMediaCount),
	)

	if cfg.History {
		history, err := archive.NewHistory(cfg.Store)
		if err != nil {
			return nil, err
		}
		h.history = history
	}

	var listeners fileselector.Listeners
	switch {
	case cfg.Archive:
		opts := []archive.Option{
			archive.WithLogger(cfg.Logger.Named("archive")),
			archive.WithCollector(cfg.Collector),
		}
		if h.history != nil {
			opts = append(opts, archive.WithHistory(h.history))
		}
		listeners = append(listeners, archive.New(store, cfg.Namespace, opts...))
	case h.history != nil:
		listeners = append(listeners, h.recordHistory())
	}
	if cfg.Notifier != nil {
		listeners = append(listeners, notify.NewListener(cfg.Notifier, cfg.Namespace, cfg.Logger.Named("notify"), cfg.Collector))
	}
	listeners = append(listeners, cfg.Listeners...)
	if len(listeners) > 0 {
		h.listener = listeners
	}
	return h, nil
}

// recordHistory writes completions to the history dataset without
// archiving files.
func (h *Host) recordHistory() fileselector.Listener {
	return fileselector.ListenerFunc(func(ctx context.Context, c *fileselector.Completion) {
		if err := h.history.Record(ctx, h.config.Namespace, c); err != nil {
			h.config.Collector.IncArchiveFailure()
			h.logger.Error("history write failed", map[string]any{
				"call_id": c.CallID,
				"error":   err.Error(),
			})
		}
	})
}

// Namespace returns the channel namespace.
func (h *Host) Namespace() string {
	return h.config.Namespace
}

// Codec returns the codec carrying the FileSelectorApi records.
func (h *Host) Codec() *codec.Codec {
	return h.codec
}

// History returns the call history, or nil when it is disabled.
func (h *Host) History() *archive.History {
	return h.history
}

// Attach registers the FileSelectorApi channels on r.
func (h *Host) Attach(r bridge.Registrar) *bridge.Bridge {
	b := bridge.New(r, h.codec,
		bridge.WithLogger(h.logger.Named("bridge")),
		bridge.WithCollector(h.config.Collector),
	)
	var opts []fileselector.SetupOption
	if h.listener != nil {
		opts = append(opts, fileselector.WithListener(h.listener))
	}
	fileselector.Setup(b, h.config.Namespace, h.selector, opts...)
	return b
}

// NewMessenger creates a messenger on r and w using the host's transport
// settings.
func (h *Host) NewMessenger(r io.Reader, w io.Writer) *messenger.Messenger {
	return messenger.New(r, w,
		messenger.WithLogger(h.logger.Named("messenger")),
		messenger.WithCollector(h.config.Collector),
		messenger.WithMaxInFlight(h.config.MaxInFlight),
		messenger.WithCompressThreshold(h.config.CompressThreshold),
	)
}

// Close releases the notifier.
func (h *Host) Close() error {
	if h.config.Notifier == nil {
		return nil
	}
	return h.config.Notifier.Close()
}
