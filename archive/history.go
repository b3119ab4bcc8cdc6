package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/storage"
)

// HistoryDataset is the lode dataset holding call records.
const HistoryDataset = "calls"

// ErrNoHistory is returned when no call records exist.
var ErrNoHistory = errors.New("no call records found")

// Record is one settled call as stored in the history dataset.
type Record struct {
	CallID     string `json:"call_id"`
	Namespace  string `json:"namespace"`
	Day        string `json:"day"`
	Method     string `json:"method"`
	Outcome    string `json:"outcome"`
	ErrorCode  string `json:"error_code,omitempty"`
	Files      int64  `json:"files"`
	Bytes      int64  `json:"bytes"`
	DurationMS int64  `json:"duration_ms"`
	Completed  string `json:"completed_at"`
	Directory  string `json:"directory,omitempty"`
}

// History is a JSONL dataset of call records, Hive-partitioned by
// namespace, day and outcome.
type History struct {
	dataset lode.Dataset
}

// NewHistory opens the history dataset on factory.
func NewHistory(factory lode.StoreFactory) (*History, error) {
	ds, err := lode.NewDataset(
		lode.DatasetID(HistoryDataset),
		factory,
		lode.WithHiveLayout("namespace", "day", "outcome"),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, storage.WrapOpenError(err, HistoryDataset)
	}
	return &History{dataset: ds}, nil
}

// Record appends c to the dataset.
func (h *History) Record(ctx context.Context, namespace string, c *fileselector.Completion) error {
	completed := c.Completed
	if completed.IsZero() {
		completed = time.Now()
	}
	completed = completed.UTC()

	record := map[string]any{
		"record_kind":  "call",
		"call_id":      c.CallID,
		"namespace":    namespace,
		"day":          completed.Format(time.DateOnly),
		"method":       c.Method,
		"outcome":      string(c.Outcome),
		"files":        int64(len(c.Files)),
		"bytes":        c.Bytes(),
		"duration_ms":  c.Duration.Milliseconds(),
		"completed_at": completed.Format(time.RFC3339Nano),
	}
	if c.ErrorCode != "" {
		record["error_code"] = c.ErrorCode
	}
	if c.Directory != "" {
		record["directory"] = c.Directory
	}

	if _, err := h.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return storage.WrapWriteError(err, HistoryDataset)
	}
	return nil
}

// Recent returns up to limit records, newest first. A non-empty outcome
// keeps only records with that outcome. limit <= 0 returns every record.
func (h *History) Recent(ctx context.Context, limit int, outcome string) ([]Record, error) {
	snapshots, err := h.dataset.Snapshots(ctx)
	if err != nil {
		err = storage.WrapReadError(err, HistoryDataset+"/snapshots")
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoHistory
		}
		return nil, err
	}

	var out []Record
	// Snapshots are ordered by creation time.
	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatchesFilter(snap, "outcome", outcome) {
			continue
		}

		data, err := h.dataset.Read(ctx, snap.ID)
		if err != nil {
			return nil, storage.WrapReadError(err, fmt.Sprintf("%s/snapshot/%s", HistoryDataset, snap.ID))
		}
		for j := len(data) - 1; j >= 0; j-- {
			raw, ok := data[j].(map[string]any)
			if !ok || raw["record_kind"] != "call" {
				continue
			}
			rec := recordFromMap(raw)
			if outcome != "" && rec.Outcome != outcome {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	if len(out) == 0 {
		return nil, ErrNoHistory
	}
	return out, nil
}

func recordFromMap(m map[string]any) Record {
	return Record{
		CallID:     toString(m["call_id"]),
		Namespace:  toString(m["namespace"]),
		Day:        toString(m["day"]),
		Method:     toString(m["method"]),
		Outcome:    toString(m["outcome"]),
		ErrorCode:  toString(m["error_code"]),
		Files:      toInt64(m["files"]),
		Bytes:      toInt64(m["bytes"]),
		DurationMS: toInt64(m["duration_ms"]),
		Completed:  toString(m["completed_at"]),
		Directory:  toString(m["directory"]),
	}
}

// snapshotMatchesFilter reports whether any file of snap lies in the
// key=value partition. An empty value matches everything.
func snapshotMatchesFilter(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if matchesPartitionValue(f.Path, key, value) {
			return true
		}
	}
	return false
}

// matchesPartitionValue matches an exact key=value path segment, so
// outcome=failed does not match outcome=failed_x.
func matchesPartitionValue(p, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(p, "/") {
		if part == segment {
			return true
		}
	}
	return false
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric types a JSON round trip may produce.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}
