package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

const promNamespace = "ferry"

// PromCollector exposes a Collector's snapshots as Prometheus metrics.
// It implements prometheus.Collector.
type PromCollector struct {
	source *Collector

	callsReceived     *prometheus.Desc
	callsSucceeded    *prometheus.Desc
	callsCancelled    *prometheus.Desc
	callsFailed       *prometheus.Desc
	decodeErrors      *prometheus.Desc
	pickerLaunches    *prometheus.Desc
	pickerFailures    *prometheus.Desc
	filesMaterialized *prometheus.Desc
	bytesMaterialized *prometheus.Desc
	materializeFailed *prometheus.Desc
	archiveWrites     *prometheus.Desc
	archiveFailures   *prometheus.Desc
	notifyFailures    *prometheus.Desc
}

var _ prometheus.Collector = (*PromCollector)(nil)

// NewPromCollector wraps source. The collector's dimensions become constant
// labels on every metric.
func NewPromCollector(source *Collector) *PromCollector {
	s := source.Snapshot()
	labels := prometheus.Labels{
		"namespace":       s.Namespace,
		"picker_backend":  s.PickerBackend,
		"storage_backend": s.StorageBackend,
	}
	desc := func(name, help string, variable ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(promNamespace, "", name), help, variable, labels)
	}
	return &PromCollector{
		source:            source,
		callsReceived:     desc("calls_received_total", "Calls received."),
		callsSucceeded:    desc("calls_succeeded_total", "Calls answered with a success reply, cancelled calls included."),
		callsCancelled:    desc("calls_cancelled_total", "Calls whose every picker attempt was cancelled."),
		callsFailed:       desc("calls_failed_total", "Calls answered with an error reply.", "code"),
		decodeErrors:      desc("decode_errors_total", "Undecodable envelopes or call payloads."),
		pickerLaunches:    desc("picker_launches_total", "Picker invocations."),
		pickerFailures:    desc("picker_failures_total", "Picker invocations that failed."),
		filesMaterialized: desc("files_materialized_total", "Files read into memory."),
		bytesMaterialized: desc("bytes_materialized_total", "Bytes read into memory."),
		materializeFailed: desc("materialization_failures_total", "Files that could not be read."),
		archiveWrites:     desc("archive_writes_total", "Calls archived to storage."),
		archiveFailures:   desc("archive_failures_total", "Failed archive writes."),
		notifyFailures:    desc("notify_failures_total", "Completion events that could not be published."),
	}
}

// Describe implements prometheus.Collector.
func (p *PromCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		p.callsReceived, p.callsSucceeded, p.callsCancelled, p.callsFailed,
		p.decodeErrors, p.pickerLaunches, p.pickerFailures,
		p.filesMaterialized, p.bytesMaterialized, p.materializeFailed,
		p.archiveWrites, p.archiveFailures, p.notifyFailures,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (p *PromCollector) Collect(ch chan<- prometheus.Metric) {
	s := p.source.Snapshot()
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	counter(p.callsReceived, s.CallsReceived)
	counter(p.callsSucceeded, s.CallsSucceeded)
	counter(p.callsCancelled, s.CallsCancelled)

	codes := make([]string, 0, len(s.FailedByCode))
	for code := range s.FailedByCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		counter(p.callsFailed, s.FailedByCode[code], code)
	}

	counter(p.decodeErrors, s.DecodeErrors)
	counter(p.pickerLaunches, s.PickerLaunches)
	counter(p.pickerFailures, s.PickerFailures)
	counter(p.filesMaterialized, s.FilesMaterialized)
	counter(p.bytesMaterialized, s.BytesMaterialized)
	counter(p.materializeFailed, s.MaterializationFailure)
	counter(p.archiveWrites, s.ArchiveWrites)
	counter(p.archiveFailures, s.ArchiveFailures)
	counter(p.notifyFailures, s.NotifyFailures)
}

// NewRegistry returns a registry holding only source's metrics.
func NewRegistry(source *Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPromCollector(source))
	return reg
}
