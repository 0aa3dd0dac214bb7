package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nettools/pagemon/internal/page"
	"github.com/nettools/pagemon/internal/perr"
)

// maxErrorRing bounds the in-memory error log carried into summary.json;
// beyond this the oldest entries are dropped and errorsDropped counts up,
// so a runaway error storm cannot grow the process's memory unbounded.
const maxErrorRing = 1024

// EndpointTotals aggregates every reported page for one endpoint, keyed
// by endpoint string ("A.B.C.D:P") in Document.EndpointTotals.
type EndpointTotals struct {
	PagesDetected     uint64  `json:"pages_detected"`
	TotalDurationSecs float64 `json:"total_duration_secs"`
	TotalPackets      uint64  `json:"total_packets"`
	TotalBytes        uint64  `json:"total_bytes"`
}

// TestMetadata describes one `test` subcommand run; left nil for plain
// monitor/transmit runs, which have no bounded timeout or metrics tick
// interval to report. RunID is an additive field beyond the core schema,
// stamped with a fresh UUID per run.
type TestMetadata struct {
	StartTime          time.Time `json:"start_time"`
	EndTime            time.Time `json:"end_time"`
	DurationSecs       float64   `json:"duration_secs"`
	Pattern            string    `json:"pattern"`
	EndpointsMonitored int       `json:"endpoints_monitored"`
	MetricsIntervalMs  int64     `json:"metrics_interval_ms"`
	TimeoutSecs        int       `json:"timeout_secs"`
	RunID              string    `json:"run_id"`
}

// Document is the full summary.json schema.
type Document struct {
	Pages          []page.Summary            `json:"pages"`
	EndpointTotals map[string]EndpointTotals `json:"endpoint_totals"`
	Errors         []perr.Entry              `json:"errors"`
	ErrorsDropped  uint64                    `json:"errors_dropped,omitempty"`
	TestMetadata   *TestMetadata             `json:"test_metadata,omitempty"`
}

// builder accumulates the pieces of Document as pages and errors arrive.
// Not safe for concurrent use; owned exclusively by the Sink's worker
// goroutine.
type builder struct {
	pages         []page.Summary
	totals        map[string]*EndpointTotals
	errors        []perr.Entry
	errorsDropped uint64
	testMeta      *TestMetadata
}

// newBuilder starts a builder; meta, when non-nil, must already carry
// StartTime/Pattern/EndpointsMonitored/MetricsIntervalMs/TimeoutSecs/RunID
// — document() only fills in EndTime/DurationSecs at close time.
func newBuilder(meta *TestMetadata) *builder {
	return &builder{totals: make(map[string]*EndpointTotals), testMeta: meta}
}

func (b *builder) addPage(s page.Summary) {
	b.pages = append(b.pages, s)

	t, ok := b.totals[s.Endpoint]
	if !ok {
		t = &EndpointTotals{}
		b.totals[s.Endpoint] = t
	}
	t.PagesDetected++
	t.TotalDurationSecs += s.DurationSecs
	t.TotalPackets += s.Network.Packets
	t.TotalBytes += s.Network.Bytes
}

func (b *builder) addError(e perr.Entry) {
	if len(b.errors) >= maxErrorRing {
		b.errors = b.errors[1:]
		b.errorsDropped++
	}
	b.errors = append(b.errors, e)
}

// document snapshots the builder into a Document. endTime finalizes
// test_metadata's end_time/duration_secs for a `test` run; ignored when
// the builder has no testMeta (plain monitor/transmit runs).
func (b *builder) document(endTime time.Time) Document {
	pages := make([]page.Summary, len(b.pages))
	copy(pages, b.pages)
	sort.Slice(pages, func(i, j int) bool { return pages[i].StartTime.Before(pages[j].StartTime) })

	totals := make(map[string]EndpointTotals, len(b.totals))
	for ep, t := range b.totals {
		totals[ep] = *t
	}

	var meta *TestMetadata
	if b.testMeta != nil {
		m := *b.testMeta
		m.EndTime = endTime
		m.DurationSecs = endTime.Sub(m.StartTime).Seconds()
		meta = &m
	}

	return Document{
		Pages:          pages,
		EndpointTotals: totals,
		Errors:         append([]perr.Entry(nil), b.errors...),
		ErrorsDropped:  b.errorsDropped,
		TestMetadata:   meta,
	}
}

// writeSummary atomically publishes doc to path via a temp file plus
// rename, so a reader never observes a half-written summary.json.
func writeSummary(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return perr.New(perr.KindRecorderIOError, "", "marshal summary.json", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return perr.New(perr.KindRecorderIOError, "", "write summary.json.tmp", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return perr.New(perr.KindRecorderIOError, "", "rename summary.json.tmp", err)
	}
	return nil
}

func summaryPath(dir string) string {
	return filepath.Join(dir, "summary.json")
}
