// Package archive persists materialized files and call history into a lode
// store.
//
// Files land at
//
//	archive/<namespace>/day=<YYYY-MM-DD>/call_id=<id>/<index>-<basename>
//
// next to a manifest.json describing the call. Archiving is best effort:
// failures are logged and counted, never reported to the caller.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/iox"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/storage"
)

// ManifestName is the per-call manifest file name.
const ManifestName = "manifest.json"

// Manifest describes one archived call.
type Manifest struct {
	CallID    string          `json:"call_id"`
	Namespace string          `json:"namespace"`
	Method    string          `json:"method"`
	Completed time.Time       `json:"completed_at"`
	Files     []ManifestEntry `json:"files"`
}

// ManifestEntry describes one archived file.
type ManifestEntry struct {
	Index    int    `json:"index"`
	Source   string `json:"source"`
	Key      string `json:"key"`
	MimeType string `json:"mime_type"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
}

// Option configures an Archive.
type Option func(*Archive)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Archive) { a.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(a *Archive) { a.collector = c }
}

// WithHistory also records every completion in h.
func WithHistory(h *History) Option {
	return func(a *Archive) { a.history = h }
}

// Archive stores the files of successful calls.
type Archive struct {
	store     lode.Store
	namespace string
	history   *History
	logger    *log.Logger
	collector *metrics.Collector
}

var _ fileselector.Listener = (*Archive)(nil)

// New creates an Archive writing to store under namespace.
func New(store lode.Store, namespace string, opts ...Option) *Archive {
	a := &Archive{store: store, namespace: namespace}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.NewNop()
	}
	return a
}

// SelectionCompleted implements fileselector.Listener.
func (a *Archive) SelectionCompleted(ctx context.Context, c *fileselector.Completion) {
	if len(c.Files) > 0 {
		if _, err := a.Store(ctx, c); err != nil {
			a.collector.IncArchiveFailure()
			a.logger.Error("archive write failed", map[string]any{
				"call_id": c.CallID,
				"error":   err.Error(),
			})
		} else {
			a.collector.IncArchiveWrite()
		}
	}
	if a.history != nil {
		if err := a.history.Record(ctx, a.namespace, c); err != nil {
			a.collector.IncArchiveFailure()
			a.logger.Error("history write failed", map[string]any{
				"call_id": c.CallID,
				"error":   err.Error(),
			})
		}
	}
}

// Store writes every file of c and then its manifest.
func (a *Archive) Store(ctx context.Context, c *fileselector.Completion) (*Manifest, error) {
	completed := c.Completed
	if completed.IsZero() {
		completed = time.Now()
	}
	completed = completed.UTC()
	prefix := CallPrefix(a.namespace, completed, c.CallID)

	m := &Manifest{
		CallID:    c.CallID,
		Namespace: a.namespace,
		Method:    c.Method,
		Completed: completed,
		Files:     make([]ManifestEntry, 0, len(c.Files)),
	}
	for i, f := range c.Files {
		key := path.Join(prefix, fmt.Sprintf("%d-%s", i, basename(f.Path)))
		if err := a.store.Put(ctx, key, bytes.NewReader(f.Bytes)); err != nil {
			return nil, storage.WrapWriteError(err, key)
		}
		m.Files = append(m.Files, ManifestEntry{
			Index:    i,
			Source:   f.Path,
			Key:      key,
			MimeType: f.MimeType,
			Name:     f.Name,
			Size:     f.Size,
		})
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	key := path.Join(prefix, ManifestName)
	if err := a.store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return nil, storage.WrapWriteError(err, key)
	}

	a.logger.Debug("archived call", map[string]any{"call_id": c.CallID, "files": len(m.Files), "prefix": prefix})
	return m, nil
}

// ReadManifest loads the manifest stored under prefix.
func ReadManifest(ctx context.Context, store lode.Store, prefix string) (*Manifest, error) {
	key := path.Join(prefix, ManifestName)
	rc, err := store.Get(ctx, key)
	if err != nil {
		return nil, storage.WrapReadError(err, key)
	}
	defer iox.DiscardClose(rc)

	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", key, err)
	}
	return &m, nil
}

// CallPrefix returns the directory holding one call's files.
func CallPrefix(namespace string, completed time.Time, callID string) string {
	return fmt.Sprintf("archive/%s/day=%s/call_id=%s", namespace, completed.UTC().Format(time.DateOnly), callID)
}

func basename(p string) string {
	base := path.Base(strings.ReplaceAll(p, `\`, "/"))
	base = strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "." || base == "/" || base == "" || base == ".." {
		return "file"
	}
	return base
}
