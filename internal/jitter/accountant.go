// Package jitter implements per-SSRC sequence and arrival-jitter
// tracking, following RFC 3550 §6.4.1's running jitter estimator and the
// reorder/restart heuristic of the design notes.
package jitter

import "time"

// MaxDropout bounds the backward-jump magnitude treated as reorder
// rather than a stream restart.
const MaxDropout = 3000

// NetworkStats is the derived, close-time view of one accountant's
// accumulated state, matching PageSummary's network sub-object.
// Expected/FirstSeq/HighestSeq are internal accounting detail and are not
// part of the emitted schema.
type NetworkStats struct {
	Packets    uint64  `json:"packets_received"`
	Bytes      uint64  `json:"bytes_received"`
	Expected   uint64  `json:"-"`
	Lost       uint64  `json:"packets_lost"`
	LossPct    float64 `json:"loss_percent"`
	JitterMs   float64 `json:"jitter_ms"`
	FirstSeq   uint16  `json:"-"`
	HighestSeq uint16  `json:"-"`
}

// NetworkSnapshot is a live, non-finalizing view of an accountant's state,
// used for metrics.jsonl's per-tick network sub-object. It omits the
// packets_lost count the closed-page schema carries, matching §6's
// narrower tick shape.
type NetworkSnapshot struct {
	Packets     uint64  `json:"packets"`
	Bytes       uint64  `json:"bytes"`
	LossPercent float64 `json:"loss_percent"`
	JitterMs    float64 `json:"jitter_ms"`
}

// Accountant tracks sequence-number and jitter state for a single
// (endpoint, SSRC) stream. Not safe for concurrent use; the owning
// stream task is the sole writer, per the ordering guarantees in the
// design notes.
type Accountant struct {
	clockRate uint32

	seeded     bool
	baseSeq    uint16
	highestSeq uint16
	cycles     uint32 // number of times the 16-bit sequence has wrapped
	packets    uint64
	bytes      uint64

	lastArrival   time.Time
	lastRTPStamp  uint32
	haveLastStamp bool
	jitter        float64 // in RTP clock units
}

// New constructs an Accountant for a stream clocked at clockRate Hz
// (the codec's sample rate; defaults to 8000 until a decode succeeds for
// dynamic payload types, per the design notes).
func New(clockRate uint32) *Accountant {
	if clockRate == 0 {
		clockRate = 8000
	}
	return &Accountant{clockRate: clockRate}
}

// SetClockRate updates the RTP clock rate once it becomes known (e.g.
// after the first successful dynamic-PT decode).
func (a *Accountant) SetClockRate(rate uint32) {
	if rate != 0 {
		a.clockRate = rate
	}
}

// Outcome describes how Update classified the incoming packet.
type Outcome int

const (
	OutcomeInOrder Outcome = iota
	OutcomeReorderOrDuplicate
	OutcomeStreamRestart
)

// Update folds one arriving packet into the accountant's state.
// arrival is the monotonic wall-clock arrival time; seq/rtpTimestamp/
// bytes come from the parsed RTP packet.
func (a *Accountant) Update(seq uint16, rtpTimestamp uint32, bytes int, arrival time.Time) Outcome {
	if !a.seeded {
		a.seeded = true
		a.baseSeq = seq
		a.highestSeq = seq
		a.packets = 1
		a.bytes += uint64(bytes)
		a.lastArrival = arrival
		a.lastRTPStamp = rtpTimestamp
		a.haveLastStamp = true
		return OutcomeInOrder
	}

	delta := int16(seq - a.highestSeq)
	var outcome Outcome
	switch {
	case delta > 0:
		if seq < a.highestSeq {
			// sequence wrapped past 65535
			a.cycles++
		}
		a.highestSeq = seq
		a.packets++
		a.bytes += uint64(bytes)
		outcome = OutcomeInOrder
	case -int(delta) <= MaxDropout:
		// reorder or duplicate within tolerance: count the packet but
		// do not move highestSeq or decrement loss.
		a.packets++
		a.bytes += uint64(bytes)
		outcome = OutcomeReorderOrDuplicate
	default:
		// large backward jump: treat as a stream restart. The caller
		// is responsible for closing the current page and constructing
		// a fresh Accountant for the new epoch.
		return OutcomeStreamRestart
	}

	a.updateJitter(rtpTimestamp, arrival)
	a.lastArrival = arrival
	a.lastRTPStamp = rtpTimestamp
	return outcome
}

func (a *Accountant) updateJitter(rtpTimestamp uint32, arrival time.Time) {
	if !a.haveLastStamp {
		a.haveLastStamp = true
		return
	}
	arrivalUnits := arrival.Sub(a.lastArrival).Seconds() * float64(a.clockRate)
	stampUnits := float64(int64(rtpTimestamp) - int64(a.lastRTPStamp))
	d := arrivalUnits - stampUnits
	if d < 0 {
		d = -d
	}
	a.jitter += (d - a.jitter) / 16
}

// lossStats derives expected/lost/loss-percent from the accumulated
// sequence state. expected accounts for 16-bit sequence wraparound via
// the internal cycle counter.
func (a *Accountant) lossStats() (expected, lost uint64, lossPct float64) {
	expected = uint64(a.cycles)*65536 + uint64(a.highestSeq) - uint64(a.baseSeq) + 1
	if expected > a.packets {
		lost = expected - a.packets
	}
	if expected > 0 {
		lossPct = 100 * float64(lost) / float64(expected)
	}
	return expected, lost, lossPct
}

func (a *Accountant) jitterMs() float64 {
	return a.jitter / float64(a.clockRate) * 1000
}

// Close derives final NetworkStats from the accumulated state.
func (a *Accountant) Close() NetworkStats {
	expected, lost, lossPct := a.lossStats()
	return NetworkStats{
		Packets:    a.packets,
		Bytes:      a.bytes,
		Expected:   expected,
		Lost:       lost,
		LossPct:    lossPct,
		JitterMs:   a.jitterMs(),
		FirstSeq:   a.baseSeq,
		HighestSeq: a.highestSeq,
	}
}

// Snapshot derives a metrics-tick view of the accountant's current state
// without finalizing anything, for a page still in progress.
func (a *Accountant) Snapshot() NetworkSnapshot {
	_, _, lossPct := a.lossStats()
	return NetworkSnapshot{
		Packets:     a.packets,
		Bytes:       a.bytes,
		LossPercent: lossPct,
		JitterMs:    a.jitterMs(),
	}
}
