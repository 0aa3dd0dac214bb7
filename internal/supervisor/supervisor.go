// Package supervisor owns the full set of per-endpoint workers for a
// monitor run: it opens one multicast receiver and page session per
// endpoint, fans their output into a shared metrics sink, and drives a
// bounded, signal-triggered shutdown across all of them.
package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nettools/pagemon/internal/applog"
	"github.com/nettools/pagemon/internal/codec"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/mcast"
	"github.com/nettools/pagemon/internal/metrics"
	"github.com/nettools/pagemon/internal/page"
	"github.com/nettools/pagemon/internal/perr"
	"github.com/nettools/pagemon/internal/rtpparse"
)

var log = applog.Component("supervisor")

// maxGapTick bounds how often a worker wakes to check for a stalled
// page, regardless of the configured gap threshold.
const maxGapTick = 250 * time.Millisecond

// cleanupDeadline is the grace period workers get to finalize open pages
// after the run's context is canceled, per the design notes' bounded
// shutdown.
const cleanupDeadline = 2 * time.Second

// Options configures one monitor run.
type Options struct {
	Endpoints          []endpoint.Endpoint
	OutDir             string
	GapThreshold       time.Duration
	ReceiveBufferBytes int
	Interfaces         []string
	CodecHint          string
	TranscoderPath     string

	// RunID, Pattern and TimeoutSecs seed summary.json's test_metadata for
	// the `test` subcommand; left zero-valued for plain monitor/transmit
	// runs, which carry no TestMetadata at all.
	RunID       string
	Pattern     string
	TimeoutSecs int

	Prom *metrics.Prom
	// MetricsInterval paces both the metrics.jsonl snapshot tick and the
	// pages_active gauge recomputation (the `test --metrics-interval`
	// flag); defaults to activeTickInterval when zero.
	MetricsInterval time.Duration
}

// closer is implemented by sinks that own a resource (metrics.Sink's
// files) needing an orderly finalization step; monitor's console-only
// sink does not implement it.
type closer interface {
	Close(endTime time.Time) error
}

// snapshotReporter is implemented by sinks that write a per-tick
// per-endpoint metrics.jsonl line (metrics.Sink); a console-only sink can
// skip it.
type snapshotReporter interface {
	ReportSnapshot(endpoint string, tick page.Tick)
}

// Supervisor runs one worker goroutine per configured endpoint.
type Supervisor struct {
	opts       Options
	sink       page.Sink
	registry   *codec.Registry
	counter    *page.Counter
	singleFile string
	wg         sync.WaitGroup

	sessMu sync.Mutex
	sess   []*page.Session
}

// activeSetter is implemented by sinks that track a live pages_active
// gauge (metrics.Sink); a console-only sink can skip it.
type activeSetter interface {
	SetActivePages(n int)
}

// activeTickInterval bounds how often the active-page gauge is
// recomputed across all endpoints, per the design notes' shared
// metrics-tick task.
const activeTickInterval = time.Second

// New opens the shared metrics sink (metrics.jsonl, summary.json) and
// prepares a Supervisor; it does not open any sockets yet. This is the
// path the `test` subcommand uses, where disk-backed metrics are the
// point of the run.
func New(opts Options) (*Supervisor, error) {
	var meta *metrics.TestMetadata
	if opts.RunID != "" {
		meta = &metrics.TestMetadata{
			StartTime:          time.Now().UTC(),
			Pattern:            opts.Pattern,
			EndpointsMonitored: len(opts.Endpoints),
			MetricsIntervalMs:  opts.MetricsInterval.Milliseconds(),
			TimeoutSecs:        opts.TimeoutSecs,
			RunID:              opts.RunID,
		}
	}
	sink, err := metrics.NewSink(opts.OutDir, meta, opts.Prom)
	if err != nil {
		return nil, err
	}
	return &Supervisor{
		opts:     opts,
		sink:     sink,
		registry: codec.NewRegistry(opts.TranscoderPath),
		counter:  &page.Counter{},
	}, nil
}

// NewWithSink builds a Supervisor around a caller-supplied Sink instead
// of opening metrics.jsonl/summary.json, for `monitor`'s live console
// output. singleFileOutput, when non-empty, redirects every page's
// recording into one shared WAV file instead of one per page; callers
// must have already validated it against a single-endpoint Options.
func NewWithSink(opts Options, sink page.Sink, singleFileOutput string) (*Supervisor, error) {
	return &Supervisor{
		opts:       opts,
		sink:       sink,
		registry:   codec.NewRegistry(opts.TranscoderPath),
		counter:    &page.Counter{},
		singleFile: singleFileOutput,
	}, nil
}

// Run starts one worker per endpoint and blocks until ctx is canceled and
// every worker has finalized its open page (or cleanupDeadline elapses),
// then writes the final summary.json.
func (s *Supervisor) Run(ctx context.Context) error {
	log.WithField("endpoints", len(s.opts.Endpoints)).Info("starting monitor run")
	for _, ep := range s.opts.Endpoints {
		s.wg.Add(1)
		go s.runEndpoint(ctx, ep)
	}

	s.wg.Add(1)
	go s.tickMetrics(ctx)

	<-ctx.Done()
	log.Info("shutdown requested, draining workers")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(cleanupDeadline):
		log.Warn("cleanup deadline elapsed before all workers finished")
		s.sink.ReportError(perr.New(perr.KindShutdownDeadlineMissed, "", "cleanup deadline elapsed before all workers finished", nil))
	}

	if c, ok := s.sink.(closer); ok {
		return c.Close(time.Now().UTC())
	}
	return nil
}

// tickMetrics drives both the metrics.jsonl per-endpoint snapshot line and
// the pages_active gauge at a fixed interval, since page.Sink.ReportPage
// only fires when a page closes. Joins the run's WaitGroup so it cannot
// still be writing metrics.jsonl after Run calls the sink's Close.
func (s *Supervisor) tickMetrics(ctx context.Context) {
	defer s.wg.Done()

	interval := s.opts.MetricsInterval
	if interval <= 0 {
		interval = activeTickInterval
	}
	setter, hasSetter := s.sink.(activeSetter)
	reporter, hasReporter := s.sink.(snapshotReporter)
	if !hasSetter && !hasReporter {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.sessMu.Lock()
			sessions := append([]*page.Session(nil), s.sess...)
			s.sessMu.Unlock()

			active := 0
			for _, sess := range sessions {
				tick := sess.Snapshot(now)
				if tick.Active {
					active++
				}
				if hasReporter {
					reporter.ReportSnapshot(endpoint.Render(sess.Endpoint()), tick)
				}
			}
			if hasSetter {
				setter.SetActivePages(active)
			}
		}
	}
}

func (s *Supervisor) gapTick() time.Duration {
	if s.opts.GapThreshold <= 0 {
		return maxGapTick
	}
	tick := s.opts.GapThreshold / 4
	if tick > maxGapTick {
		return maxGapTick
	}
	if tick <= 0 {
		return maxGapTick
	}
	return tick
}

func (s *Supervisor) runEndpoint(ctx context.Context, ep endpoint.Endpoint) {
	defer s.wg.Done()

	epLog := log.WithField("endpoint", endpoint.Render(ep))

	recv, err := mcast.Open(ep, mcast.Config{
		ReceiveBufferBytes: s.opts.ReceiveBufferBytes,
		Interfaces:         s.opts.Interfaces,
		ReusePort:          true,
	})
	if err != nil {
		epLog.WithError(err).Error("failed to open multicast receiver")
		s.reportErr(err)
		return
	}
	defer recv.Close()
	epLog.Info("joined multicast group")

	sess := page.NewSession(ep, s.counter, s.sink, s.registry, s.opts.OutDir, s.opts.GapThreshold)
	if s.singleFile != "" {
		sess.SetSingleFile(s.singleFile)
	}
	s.sessMu.Lock()
	s.sess = append(s.sess, sess)
	s.sessMu.Unlock()
	tick := s.gapTick()
	buf := make([]byte, 65536) // large enough for any UDP datagram

	for {
		select {
		case <-ctx.Done():
			_ = sess.Shutdown(context.Background())
			epLog.Info("worker stopped")
			return
		default:
		}

		n, _, arrival, err := recv.ReadPacket(buf, tick)
		if err != nil {
			var pe *perr.Error
			if errors.As(err, &pe) && pe.Kind == perr.KindSocketIOTransient {
				_ = sess.CheckGap(ctx, time.Now())
				continue
			}
			epLog.WithError(err).Error("fatal read error, worker exiting")
			s.reportErr(err)
			return
		}

		pkt, err := rtpparse.Parse(buf[:n])
		if err != nil {
			s.reportErr(perr.New(perr.KindMalformedRTP, endpoint.Render(ep), "parse rtp packet", err))
			continue
		}

		if err := sess.HandlePacket(ctx, pkt.SequenceNumber, pkt.PayloadType, pkt.Marker, pkt.Timestamp, pkt.SSRC, pkt.Payload, arrival, s.opts.CodecHint); err != nil {
			s.reportErr(perr.New(perr.KindMalformedRTP, endpoint.Render(ep), "handle rtp packet", err))
		}
		_ = sess.CheckGap(ctx, arrival)
	}
}

func (s *Supervisor) reportErr(err error) {
	var pe *perr.Error
	if errors.As(err, &pe) {
		s.sink.ReportError(pe)
		return
	}
	s.sink.ReportError(perr.New(perr.KindSocketIOTransient, "", "unclassified error", err))
}
