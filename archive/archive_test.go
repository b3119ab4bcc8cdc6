package archive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/storage"
)

// failingStore is a lode.Store whose writes fail.
type failingStore struct {
	putErr error
}

func (s *failingStore) Put(context.Context, string, io.Reader) error { return s.putErr }
func (s *failingStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not found")
}
func (s *failingStore) Exists(context.Context, string) (bool, error)   { return false, nil }
func (s *failingStore) List(context.Context, string) ([]string, error) { return nil, nil }
func (s *failingStore) Delete(context.Context, string) error           { return nil }
func (s *failingStore) ReadRange(context.Context, string, int64, int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}
func (s *failingStore) ReaderAt(context.Context, string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*failingStore)(nil)

var completedAt = time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)

func completion() *fileselector.Completion {
	return &fileselector.Completion{
		CallID:  "call-1",
		Method:  fileselector.MethodOpenFiles,
		Outcome: fileselector.OutcomeSucceeded,
		Files: []*fileselector.FileResponse{
			{Path: "/tmp/a.png", MimeType: "image/*", Name: "Picture", Size: 2, Bytes: []byte{1, 2}},
			{Path: "store://uploads/b.png", MimeType: "image/*", Name: "Picture", Size: 1, Bytes: []byte{3}},
		},
		Duration:  1500 * time.Millisecond,
		Completed: completedAt,
	}
}

func readKey(t *testing.T, store lode.Store, key string) []byte {
	t.Helper()
	rc, err := store.Get(t.Context(), key)
	if err != nil {
		t.Fatalf("Get(%s) failed: %v", key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	return data
}

func TestArchive_Store(t *testing.T) {
	store := lode.NewMemory()
	a := New(store, "dev.flutter.pigeon")

	m, err := a.Store(t.Context(), completion())
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	prefix := "archive/dev.flutter.pigeon/day=2026-10-14/call_id=call-1"
	wantKeys := []string{prefix + "/0-a.png", prefix + "/1-b.png"}
	if len(m.Files) != 2 {
		t.Fatalf("len(Files) = %d, want 2", len(m.Files))
	}
	for i, key := range wantKeys {
		if m.Files[i].Key != key {
			t.Errorf("Files[%d].Key = %q, want %q", i, m.Files[i].Key, key)
		}
	}
	if got := readKey(t, store, wantKeys[0]); string(got) != "\x01\x02" {
		t.Errorf("file 0 = %v", got)
	}

	read, err := ReadManifest(t.Context(), store, prefix)
	if err != nil {
		t.Fatalf("ReadManifest failed: %v", err)
	}
	if read.CallID != "call-1" || read.Method != "openFiles" || !read.Completed.Equal(completedAt) {
		t.Errorf("manifest = %+v", read)
	}
	if read.Files[1].Source != "store://uploads/b.png" || read.Files[1].Size != 1 {
		t.Errorf("manifest entry = %+v", read.Files[1])
	}
}

func TestArchive_SelectionCompleted(t *testing.T) {
	collector := metrics.NewCollector("test", "scripted", "memory")
	store := lode.NewMemory()
	a := New(store, "ns", WithCollector(collector))

	a.SelectionCompleted(t.Context(), completion())
	a.SelectionCompleted(t.Context(), &fileselector.Completion{CallID: "c2", Outcome: fileselector.OutcomeCancelled})

	if snap := collector.Snapshot(); snap.ArchiveWrites != 1 || snap.ArchiveFailures != 0 {
		t.Errorf("writes = %d failures = %d, want 1 and 0", snap.ArchiveWrites, snap.ArchiveFailures)
	}
	ok, err := store.Exists(t.Context(), "archive/ns/day=2026-10-14/call_id=call-1/manifest.json")
	if err != nil || !ok {
		t.Errorf("manifest Exists = %v, %v", ok, err)
	}
}

func TestArchive_WriteFailureCounted(t *testing.T) {
	collector := metrics.NewCollector("test", "scripted", "memory")
	a := New(&failingStore{putErr: errors.New("write: no space left on device")}, "ns", WithCollector(collector))

	_, err := a.Store(t.Context(), completion())
	if !errors.Is(err, storage.ErrDiskFull) {
		t.Errorf("Store error = %v, want ErrDiskFull", err)
	}

	a.SelectionCompleted(t.Context(), completion())
	if snap := collector.Snapshot(); snap.ArchiveFailures != 1 || snap.ArchiveWrites != 0 {
		t.Errorf("writes = %d failures = %d, want 0 and 1", snap.ArchiveWrites, snap.ArchiveFailures)
	}
}

func TestBasename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/tmp/a.png", "a.png"},
		{"store://bucket/x/y.txt", "y.txt"},
		{`C:\Users\me\pic.jpg`, "pic.jpg"},
		{"/", "file"},
		{"", "file"},
		{"bad\nname", "bad_name"},
	}
	for _, tt := range tests {
		if got := basename(tt.in); got != tt.want {
			t.Errorf("basename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHistory_RecordAndRecent(t *testing.T) {
	ctx := t.Context()
	factory := storage.Shared(lode.NewMemory())
	h, err := NewHistory(factory)
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}

	calls := []*fileselector.Completion{
		completion(),
		{CallID: "call-2", Method: "openFile", Outcome: fileselector.OutcomeFailed, ErrorCode: "PickerFailed", Completed: completedAt.Add(time.Minute)},
		{CallID: "call-3", Method: "getDirectoryPath", Outcome: fileselector.OutcomeSucceeded, Directory: "/home", Completed: completedAt.Add(2 * time.Minute)},
	}
	for _, c := range calls {
		if err := h.Record(ctx, "ns", c); err != nil {
			t.Fatalf("Record(%s) failed: %v", c.CallID, err)
		}
	}

	recent, err := h.Recent(ctx, 2, "")
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].CallID != "call-3" || recent[1].CallID != "call-2" {
		t.Fatalf("Recent = %+v, want call-3 then call-2", recent)
	}
	if recent[0].Directory != "/home" || recent[1].ErrorCode != "PickerFailed" {
		t.Errorf("Recent = %+v", recent)
	}

	succeeded, err := h.Recent(ctx, 0, "succeeded")
	if err != nil {
		t.Fatalf("Recent(succeeded) failed: %v", err)
	}
	if len(succeeded) != 2 {
		t.Fatalf("len = %d, want 2", len(succeeded))
	}
	first := succeeded[1]
	if first.CallID != "call-1" || first.Files != 2 || first.Bytes != 3 || first.DurationMS != 1500 || first.Day != "2026-10-14" {
		t.Errorf("record = %+v", first)
	}
}

func TestHistory_Empty(t *testing.T) {
	h, err := NewHistory(storage.Shared(lode.NewMemory()))
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	if _, err := h.Recent(t.Context(), 10, ""); !errors.Is(err, ErrNoHistory) {
		t.Errorf("Recent error = %v, want ErrNoHistory", err)
	}
}

func TestArchive_WithHistory(t *testing.T) {
	factory := storage.Shared(lode.NewMemory())
	store, _ := factory()
	h, err := NewHistory(factory)
	if err != nil {
		t.Fatalf("NewHistory failed: %v", err)
	}
	a := New(store, "ns", WithHistory(h))
	a.SelectionCompleted(t.Context(), &fileselector.Completion{CallID: "c9", Outcome: fileselector.OutcomeCancelled, Completed: completedAt})

	recent, err := h.Recent(t.Context(), 1, "cancelled")
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if recent[0].CallID != "c9" {
		t.Errorf("Recent = %+v", recent)
	}
}

func TestMatchesPartitionValue(t *testing.T) {
	p := "datasets/calls/partitions/namespace=ns/day=2026-10-14/outcome=failed/seg.jsonl"
	if !matchesPartitionValue(p, "outcome", "failed") {
		t.Error("expected match")
	}
	if matchesPartitionValue(p, "outcome", "fail") {
		t.Error("prefix should not match")
	}
}
