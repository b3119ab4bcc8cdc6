package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("dev.flutter.pigeon", "command", "fs")

	c.IncCallReceived()
	c.IncCallReceived()
	c.IncCallReceived()
	c.IncCallSucceeded()
	c.IncCallCancelled()
	c.IncCallFailed("PickerFailed")
	c.IncCallFailed("PickerFailed")
	c.IncCallFailed("EmptyResult")
	c.IncDecodeErrors()
	c.IncPickerLaunch()
	c.IncPickerLaunch()
	c.IncPickerFailure()
	c.AddMaterialized(4)
	c.AddMaterialized(10)
	c.IncMaterializationFailure()
	c.IncArchiveWrite()
	c.IncArchiveFailure()
	c.IncNotifyFailure()

	s := c.Snapshot()

	if s.CallsReceived != 3 {
		t.Errorf("CallsReceived = %d, want 3", s.CallsReceived)
	}
	if s.CallsSucceeded != 1 {
		t.Errorf("CallsSucceeded = %d, want 1", s.CallsSucceeded)
	}
	if s.CallsCancelled != 1 {
		t.Errorf("CallsCancelled = %d, want 1", s.CallsCancelled)
	}
	if s.CallsFailed != 3 {
		t.Errorf("CallsFailed = %d, want 3", s.CallsFailed)
	}
	if s.FailedByCode["PickerFailed"] != 2 {
		t.Errorf("FailedByCode[PickerFailed] = %d, want 2", s.FailedByCode["PickerFailed"])
	}
	if s.FailedByCode["EmptyResult"] != 1 {
		t.Errorf("FailedByCode[EmptyResult] = %d, want 1", s.FailedByCode["EmptyResult"])
	}
	if s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", s.DecodeErrors)
	}
	if s.PickerLaunches != 2 {
		t.Errorf("PickerLaunches = %d, want 2", s.PickerLaunches)
	}
	if s.PickerFailures != 1 {
		t.Errorf("PickerFailures = %d, want 1", s.PickerFailures)
	}
	if s.FilesMaterialized != 2 {
		t.Errorf("FilesMaterialized = %d, want 2", s.FilesMaterialized)
	}
	if s.BytesMaterialized != 14 {
		t.Errorf("BytesMaterialized = %d, want 14", s.BytesMaterialized)
	}
	if s.MaterializationFailure != 1 {
		t.Errorf("MaterializationFailure = %d, want 1", s.MaterializationFailure)
	}
	if s.ArchiveWrites != 1 || s.ArchiveFailures != 1 || s.NotifyFailures != 1 {
		t.Errorf("archive/notify = %d/%d/%d, want 1/1/1", s.ArchiveWrites, s.ArchiveFailures, s.NotifyFailures)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	s := NewCollector("ns", "scripted", "memory").Snapshot()
	if s.Namespace != "ns" {
		t.Errorf("Namespace = %q, want %q", s.Namespace, "ns")
	}
	if s.PickerBackend != "scripted" {
		t.Errorf("PickerBackend = %q, want %q", s.PickerBackend, "scripted")
	}
	if s.StorageBackend != "memory" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "memory")
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector

	c.IncCallReceived()
	c.IncCallSucceeded()
	c.IncCallCancelled()
	c.IncCallFailed("x")
	c.IncDecodeErrors()
	c.IncPickerLaunch()
	c.IncPickerFailure()
	c.AddMaterialized(1)
	c.IncMaterializationFailure()
	c.IncArchiveWrite()
	c.IncArchiveFailure()
	c.IncNotifyFailure()

	if s := c.Snapshot(); s.CallsReceived != 0 {
		t.Errorf("nil Snapshot CallsReceived = %d, want 0", s.CallsReceived)
	}
}

func TestCollector_SnapshotIsolation(t *testing.T) {
	c := NewCollector("ns", "command", "fs")
	c.IncCallFailed("PickerFailed")

	s := c.Snapshot()
	c.IncCallFailed("PickerFailed")

	if s.FailedByCode["PickerFailed"] != 1 {
		t.Errorf("snapshot mutated: FailedByCode = %d, want 1", s.FailedByCode["PickerFailed"])
	}
}

func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector("ns", "command", "fs")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.IncCallReceived()
			c.AddMaterialized(2)
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	if s.CallsReceived != 50 {
		t.Errorf("CallsReceived = %d, want 50", s.CallsReceived)
	}
	if s.BytesMaterialized != 100 {
		t.Errorf("BytesMaterialized = %d, want 100", s.BytesMaterialized)
	}
}

func TestHandler_Exposition(t *testing.T) {
	c := NewCollector("ns", "command", "fs")
	c.IncCallReceived()
	c.IncCallFailed("PickerFailed")

	srv := httptest.NewServer(NewHandler(NewRegistry(c)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}

	for _, want := range []string{
		`ferry_calls_received_total{namespace="ns",picker_backend="command",storage_backend="fs"} 1`,
		`ferry_calls_failed_total{code="PickerFailed",namespace="ns",picker_backend="command",storage_backend="fs"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q\n%s", want, body)
		}
	}

	health, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	defer health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", health.StatusCode)
	}
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	bound := make(chan string, 1)
	done := make(chan error, 1)

	go func() { done <- Serve(ctx, "127.0.0.1:0", NewCollector("ns", "command", "fs"), bound) }()

	addr := <-bound
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz failed: %v", err)
	}
	resp.Body.Close()

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve returned %v, want nil", err)
	}
}
