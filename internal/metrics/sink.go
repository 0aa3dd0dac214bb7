package metrics

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/nettools/pagemon/internal/page"
	"github.com/nettools/pagemon/internal/perr"
)

// eventQueueCapacity bounds the Sink's internal event channel. A metrics
// producer (page.Session) must never block on a slow disk, so once the
// queue is full new events are dropped and counted rather than queued
// without bound.
const eventQueueCapacity = 1024

type sinkEvent struct {
	kind eventKind
	page page.Summary
	err  perr.Entry
}

// eventKind discriminates a sinkEvent's payload. Unrelated to
// metrics.jsonl, which is driven entirely by ReportSnapshot ticks.
type eventKind int

const (
	eventKindPage eventKind = iota
	eventKindError
)

// Sink implements page.Sink, feeding the in-memory builder behind
// summary.json and (optionally) Prometheus collectors from page closes and
// errors, and metrics.jsonl from the supervisor's periodic snapshot tick.
type Sink struct {
	events chan sinkEvent
	done   chan struct{}

	jsonl  *jsonlWriter
	b      *builder
	prom   *Prom
	outDir string

	dropped uint64
}

// NewSink opens metrics.jsonl under outDir and starts the sink's worker
// goroutine. meta, when non-nil, seeds summary.json's test_metadata (used
// by the `test` subcommand). prom may be nil to disable Prometheus export.
func NewSink(outDir string, meta *TestMetadata, prom *Prom) (*Sink, error) {
	jsonl, err := newJSONLWriter(filepath.Join(outDir, "metrics.jsonl"))
	if err != nil {
		return nil, err
	}
	s := &Sink{
		events: make(chan sinkEvent, eventQueueCapacity),
		done:   make(chan struct{}),
		jsonl:  jsonl,
		b:      newBuilder(meta),
		prom:   prom,
		outDir: outDir,
	}
	go s.run()
	return s, nil
}

func (s *Sink) run() {
	defer close(s.done)
	for ev := range s.events {
		switch ev.kind {
		case eventKindPage:
			s.b.addPage(ev.page)
			s.prom.observePage(ev.page.Endpoint, ev.page.Network.Packets, ev.page.Network.Lost, ev.page.Network.JitterMs, ev.page.DurationSecs, false)
		case eventKindError:
			s.b.addError(ev.err)
			s.prom.observeError(ev.err.Kind)
		}
	}
}

// ReportPage implements page.Sink.
func (s *Sink) ReportPage(sum page.Summary) {
	select {
	case s.events <- sinkEvent{kind: eventKindPage, page: sum}:
	default:
		atomic.AddUint64(&s.dropped, 1)
		s.prom.incDropped()
	}
}

// ReportError implements page.Sink.
func (s *Sink) ReportError(err *perr.Error) {
	entry := perr.EntryFromError(time.Now().UTC(), err)
	select {
	case s.events <- sinkEvent{kind: eventKindError, err: entry}:
	default:
		atomic.AddUint64(&s.dropped, 1)
		s.prom.incDropped()
	}
}

// ReportSnapshot writes one metrics.jsonl line for ep's current tick,
// called synchronously by the supervisor's single metrics-tick goroutine
// (never concurrently), so the underlying buffered writer needs no lock
// of its own.
func (s *Sink) ReportSnapshot(ep string, tick page.Tick) {
	rec := tickRecord{
		Timestamp:  time.Now().UTC(),
		Endpoint:   ep,
		PageActive: tick.Active,
		Network:    tick.Network,
		Audio:      tick.Audio,
	}
	if tick.Active {
		num := tick.PageNumber
		dur := tick.DurationSecs
		rec.PageNumber = &num
		rec.DurationSecs = &dur
	}
	if err := s.jsonl.write(rec); err != nil {
		atomic.AddUint64(&s.dropped, 1)
	}
}

// SetActivePages updates the pages_active gauge; called by the
// supervisor's periodic tick, not derivable from ReportPage alone since
// that only fires on close.
func (s *Sink) SetActivePages(n int) {
	s.prom.setActivePages(float64(n))
}

// Dropped returns the number of events dropped because the queue was
// full.
func (s *Sink) Dropped() uint64 {
	return atomic.LoadUint64(&s.dropped)
}

// Close drains the event queue, fsyncs metrics.jsonl, and atomically
// publishes the final summary.json.
func (s *Sink) Close(endTime time.Time) error {
	close(s.events)
	<-s.done

	if err := s.jsonl.close(); err != nil {
		return err
	}
	return writeSummary(summaryPath(s.outDir), s.b.document(endTime))
}
