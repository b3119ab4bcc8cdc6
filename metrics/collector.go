// Package metrics provides per-session counters for the bridge.
//
// The Collector accumulates counters across every call served by one
// session. It is a leaf package; the Prometheus view in prometheus.go reads
// Snapshots and never touches the counters directly.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Calls. CallsSucceeded includes cancelled calls, which reply with a
	// nil success; CallsCancelled counts them separately.
	CallsReceived  int64
	CallsSucceeded int64
	CallsCancelled int64
	CallsFailed    int64
	FailedByCode   map[string]int64

	// Transport
	DecodeErrors int64

	// Picker
	PickerLaunches int64
	PickerFailures int64

	// Materialization
	FilesMaterialized      int64
	BytesMaterialized      int64
	MaterializationFailure int64

	// Archive / notifications
	ArchiveWrites   int64
	ArchiveFailures int64
	NotifyFailures  int64

	// Dimensions
	Namespace      string
	PickerBackend  string
	StorageBackend string
}

// Collector accumulates counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	callsReceived  int64
	callsSucceeded int64
	callsCancelled int64
	callsFailed    int64
	failedByCode   map[string]int64

	decodeErrors int64

	pickerLaunches int64
	pickerFailures int64

	filesMaterialized      int64
	bytesMaterialized      int64
	materializationFailure int64

	archiveWrites   int64
	archiveFailures int64
	notifyFailures  int64

	namespace      string
	pickerBackend  string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(namespace, pickerBackend, storageBackend string) *Collector {
	return &Collector{
		failedByCode:   make(map[string]int64),
		namespace:      namespace,
		pickerBackend:  pickerBackend,
		storageBackend: storageBackend,
	}
}

// --- Calls ---

// IncCallReceived records an inbound call.
func (c *Collector) IncCallReceived() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsReceived++
	c.mu.Unlock()
}

// IncCallSucceeded records a success reply.
func (c *Collector) IncCallSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsSucceeded++
	c.mu.Unlock()
}

// IncCallCancelled records a call whose every picker attempt was cancelled.
func (c *Collector) IncCallCancelled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsCancelled++
	c.mu.Unlock()
}

// IncCallFailed records an error reply with its code.
func (c *Collector) IncCallFailed(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.callsFailed++
	c.failedByCode[code]++
	c.mu.Unlock()
}

// IncDecodeErrors records an undecodable envelope or call payload.
func (c *Collector) IncDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeErrors++
	c.mu.Unlock()
}

// --- Picker ---

// IncPickerLaunch records a picker invocation.
func (c *Collector) IncPickerLaunch() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pickerLaunches++
	c.mu.Unlock()
}

// IncPickerFailure records a picker that failed to run or reported an error code.
func (c *Collector) IncPickerFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pickerFailures++
	c.mu.Unlock()
}

// --- Materialization ---

// AddMaterialized records one file read into memory.
func (c *Collector) AddMaterialized(bytes int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.filesMaterialized++
	c.bytesMaterialized += bytes
	c.mu.Unlock()
}

// IncMaterializationFailure records a file that could not be read.
func (c *Collector) IncMaterializationFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.materializationFailure++
	c.mu.Unlock()
}

// --- Archive / notifications ---

// IncArchiveWrite records a call archived to storage.
func (c *Collector) IncArchiveWrite() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveWrites++
	c.mu.Unlock()
}

// IncArchiveFailure records a failed archive write.
func (c *Collector) IncArchiveFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.archiveFailures++
	c.mu.Unlock()
}

// IncNotifyFailure records a completion event that could not be published.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notifyFailures++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byCode := make(map[string]int64, len(c.failedByCode))
	for k, v := range c.failedByCode {
		byCode[k] = v
	}

	return Snapshot{
		CallsReceived:  c.callsReceived,
		CallsSucceeded: c.callsSucceeded,
		CallsCancelled: c.callsCancelled,
		CallsFailed:    c.callsFailed,
		FailedByCode:   byCode,

		DecodeErrors: c.decodeErrors,

		PickerLaunches: c.pickerLaunches,
		PickerFailures: c.pickerFailures,

		FilesMaterialized:      c.filesMaterialized,
		BytesMaterialized:      c.bytesMaterialized,
		MaterializationFailure: c.materializationFailure,

		ArchiveWrites:   c.archiveWrites,
		ArchiveFailures: c.archiveFailures,
		NotifyFailures:  c.notifyFailures,

		Namespace:      c.namespace,
		PickerBackend:  c.pickerBackend,
		StorageBackend: c.storageBackend,
	}
}
