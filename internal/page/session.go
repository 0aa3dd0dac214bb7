package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/looplab/fsm"
	"github.com/nettools/pagemon/internal/analyzer"
	"github.com/nettools/pagemon/internal/codec"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/jitter"
	"github.com/nettools/pagemon/internal/perr"
	"github.com/nettools/pagemon/internal/recorder"
)

// Session drives one endpoint's page lifecycle. It is not safe for
// concurrent use: the owning worker feeds it packets and gap ticks from a
// single goroutine, matching the per-endpoint worker model.
type Session struct {
	ep       endpoint.Endpoint
	counter  *Counter
	sink     Sink
	registry *codec.Registry
	recDir   string

	gapThreshold time.Duration
	fftWindow    int
	singleFile   string

	fsm *fsm.FSM
	cur *Page
	dec codec.Decoder
	acc *jitter.Accountant
	an  *analyzer.Analyzer
	rec *recorder.Recorder
}

// SetSingleFile redirects every page this session opens into one shared,
// continuously-appended recording rather than one file per page, for
// monitor's single-endpoint --output flag. Must be called before the
// first packet reaches the session.
func (s *Session) SetSingleFile(path string) {
	s.singleFile = path
}

// NewSession constructs a page Session for one endpoint. gapThreshold is
// the idle duration (measured against the global monitor clock, not
// per-endpoint) after which an active page is force-closed.
func NewSession(ep endpoint.Endpoint, counter *Counter, sink Sink, registry *codec.Registry, recDir string, gapThreshold time.Duration) *Session {
	s := &Session{
		ep:           ep,
		counter:      counter,
		sink:         sink,
		registry:     registry,
		recDir:       recDir,
		gapThreshold: gapThreshold,
		fftWindow:    analyzer.DefaultWindowSize,
	}
	s.fsm = newPageFSM(s)
	return s
}

// Current returns the FSM's current state name, mainly for tests and
// diagnostics.
func (s *Session) Current() string { return s.fsm.Current() }

// Endpoint returns the endpoint this session watches.
func (s *Session) Endpoint() endpoint.Endpoint { return s.ep }

// Snapshot derives a metrics-tick view of the currently open page (if
// any) without finalizing or resetting any accumulator.
func (s *Session) Snapshot(now time.Time) Tick {
	if s.cur == nil || s.Current() != StateActive {
		return Tick{}
	}
	t := Tick{
		Active:       true,
		PageNumber:   s.cur.Number,
		DurationSecs: now.Sub(s.cur.StartWall).Seconds(),
	}
	if s.acc != nil {
		t.Network = s.acc.Snapshot()
	}
	if s.an != nil {
		t.Audio = s.an.Snapshot()
	}
	return t
}

type packetArgs struct {
	seq     uint16
	pt      uint8
	marker  bool
	rtpTS   uint32
	ssrc    uint32
	payload []byte
	arrival time.Time
}

// HandlePacket feeds one parsed, validated RTP packet into the session.
// codecHint, when non-empty, overrides payload-type-based codec lookup
// (used for dynamic PTs announced out of band, e.g. via CLI flag).
func (s *Session) HandlePacket(ctx context.Context, seq uint16, pt uint8, marker bool, rtpTS uint32, ssrc uint32, payload []byte, arrival time.Time, codecHint string) error {
	if s.cur != nil && s.Current() == StateActive && ssrc != s.cur.SSRC {
		if err := s.closeCurrent(ctx, EventSSRCChange); err != nil {
			return err
		}
	}

	args := packetArgs{seq: seq, pt: pt, marker: marker, rtpTS: rtpTS, ssrc: ssrc, payload: payload, arrival: arrival}
	if err := s.fsm.Event(ctx, EventPacket, args, codecHint); err != nil && !isNoTransition(err) {
		return fmt.Errorf("page fsm packet event: %w", err)
	}

	return s.feed(args)
}

// feed pushes one packet's payload through the decoder, jitter accountant
// and analyzer for the currently open page. Called for both freshly
// opened pages (after onEnterActive has run) and continuing ones.
func (s *Session) feed(args packetArgs) error {
	if s.cur == nil {
		return nil
	}
	s.cur.PacketCount++
	s.cur.LastPacketWall = args.arrival

	outcome := s.acc.Update(args.seq, args.rtpTS, len(args.payload), args.arrival)
	if outcome == jitter.OutcomeStreamRestart {
		// A backward jump too large to be reorder/duplicate per RFC 3550's
		// MAX_DROPOUT heuristic; treat as a fresh stream under the same
		// SSRC rather than silently folding it into loss accounting.
		s.acc = jitter.New(s.clockRate())
		s.acc.Update(args.seq, args.rtpTS, len(args.payload), args.arrival)
	}

	if s.dec != nil {
		samples, err := s.dec.Decode(args.payload)
		if err != nil {
			s.sink.ReportError(perr.New(perr.KindCodecBackendFailure, endpoint.Render(s.ep), "decode failed", err))
			return nil
		}
		s.an.Push(samples, 1)
		if s.rec != nil {
			if err := s.rec.Append(samples); err != nil {
				s.sink.ReportError(perr.New(perr.KindRecorderIOError, endpoint.Render(s.ep), "append wav samples", err))
			}
		}
	}
	return nil
}

// clockRate recovers the sample rate the current decoder runs at, since
// jitter.Accountant does not expose the value it was constructed with.
func (s *Session) clockRate() uint32 {
	if s.dec != nil {
		return s.dec.SampleRate()
	}
	return 8000
}

func (s *Session) onEnterActive(ctx context.Context, e *fsm.Event) {
	args, ok := e.Args[0].(packetArgs)
	if !ok {
		return
	}
	codecHint, _ := e.Args[1].(string)

	num := s.counter.Next()
	s.cur = &Page{
		Number:    num,
		Endpoint:  s.ep,
		SSRC:      args.ssrc,
		StartWall: args.arrival,
	}

	dec, err := s.registry.DecoderFor(args.pt, codecHint)
	if err != nil {
		s.sink.ReportError(perr.New(perr.KindUnsupportedPayload, endpoint.Render(s.ep), "no decoder for payload type", err))
		s.dec = nil
	} else {
		s.dec = dec
	}

	clockRate := uint32(8000)
	if s.dec != nil {
		clockRate = s.dec.SampleRate()
	}
	s.acc = jitter.New(clockRate)
	s.an = analyzer.New(clockRate, s.fftWindow)

	if s.singleFile != "" {
		s.cur.RecordingFile = s.singleFile
		if s.rec == nil {
			rec, err := recorder.Open(s.singleFile, clockRate)
			if err != nil {
				s.sink.ReportError(perr.New(perr.KindRecorderIOError, endpoint.Render(s.ep), "open wav file", err))
			} else {
				s.rec = rec
			}
		}
		return
	}

	stem := fmt.Sprintf("page_%04d_%s.wav", num, s.ep.FileStem())
	s.cur.RecordingFile = filepath.Join(s.recDir, stem)

	rec, err := recorder.Open(s.cur.RecordingFile, clockRate)
	if err != nil {
		s.sink.ReportError(perr.New(perr.KindRecorderIOError, endpoint.Render(s.ep), "open wav file", err))
		s.rec = nil
	} else {
		s.rec = rec
	}
}

func (s *Session) onEnterClosing(ctx context.Context, e *fsm.Event) {
	if s.cur == nil {
		return
	}
	s.cur.EndWall = s.cur.LastPacketWall
	if s.acc != nil {
		s.cur.Net = s.acc.Close()
	}
	if s.an != nil {
		s.cur.Audio = s.an.Close()
	}

	if s.singleFile == "" && s.rec != nil {
		if err := s.rec.Close(); err != nil {
			s.sink.ReportError(perr.New(perr.KindRecorderIOError, endpoint.Render(s.ep), "close wav file", err))
		}
	}

	if s.cur.PacketCount >= MinPagePackets {
		s.sink.ReportPage(s.cur.toSummary())
	} else if s.cur.RecordingFile != "" && s.singleFile == "" {
		// Discarded short burst: drop the recording too. Its page number
		// is not reused, per the design notes. A shared singleFile is
		// never removed, since other pages' audio already lives in it.
		_ = os.Remove(s.cur.RecordingFile)
	}

	s.cur = nil
	s.dec = nil
	s.acc = nil
	s.an = nil
	if s.singleFile == "" {
		s.rec = nil
	}
}

func (s *Session) onEnterTerminal(ctx context.Context, e *fsm.Event) {
	if s.cur != nil {
		s.onEnterClosing(ctx, e)
	}
	if s.singleFile != "" && s.rec != nil {
		if err := s.rec.Close(); err != nil {
			s.sink.ReportError(perr.New(perr.KindRecorderIOError, endpoint.Render(s.ep), "close wav file", err))
		}
		s.rec = nil
	}
}

// closeCurrent fires reason (EventGap or EventSSRCChange) then the
// immediate follow-up EventCloseComplete, returning the page to idle.
// These are two sequential top-level Event calls, not a recursive call
// from within a callback.
func (s *Session) closeCurrent(ctx context.Context, reason string) error {
	if err := s.fsm.Event(ctx, reason); err != nil && !isNoTransition(err) {
		return fmt.Errorf("page fsm %s event: %w", reason, err)
	}
	if err := s.fsm.Event(ctx, EventCloseComplete); err != nil && !isNoTransition(err) {
		return fmt.Errorf("page fsm close_complete event: %w", err)
	}
	return nil
}

// CheckGap is driven by a periodic timer (at most gapThreshold/4, capped
// at 250ms per the design notes) and force-closes an active page that has
// not seen a packet within gapThreshold.
func (s *Session) CheckGap(ctx context.Context, now time.Time) error {
	if s.Current() != StateActive || s.cur == nil {
		return nil
	}
	if now.Sub(s.cur.LastPacketWall) < s.gapThreshold {
		return nil
	}
	return s.closeCurrent(ctx, EventGap)
}

// Shutdown finalizes any open page and moves the session to its terminal
// state. Safe to call from any state.
func (s *Session) Shutdown(ctx context.Context) error {
	if err := s.fsm.Event(ctx, EventShutdown); err != nil && !isNoTransition(err) {
		return fmt.Errorf("page fsm shutdown event: %w", err)
	}
	return nil
}

func isNoTransition(err error) bool {
	_, ok := err.(fsm.NoTransitionError)
	return ok
}
