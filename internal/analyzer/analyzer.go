// Package analyzer computes per-frame time-domain audio statistics and
// windowed-FFT dominant-frequency voting for one decoded PCM stream.
package analyzer

import (
	"math"
	"math/cmplx"
)

// DefaultWindowSize is the default non-overlapping FFT window W.
const DefaultWindowSize = 1024

// ClipThreshold and GlitchThreshold follow the design notes' defaults.
const (
	ClipThreshold   = 32760
	GlitchThreshold = 16384
)

// SpectralSNRFloor is the minimum ratio (bin magnitude / mean magnitude)
// required before a window's dominant bin is allowed to vote.
const SpectralSNRFloor = 3.0

// Snapshot is a point-in-time view derived from the accumulator, used
// for metrics.jsonl's per-tick audio sub-object. It does not clear any
// counters.
type Snapshot struct {
	RMSDb          float64 `json:"rms_db"`
	PeakDb         float64 `json:"peak_db"`
	DominantFreqHz float64 `json:"dominant_freq_hz"`
	Glitches       uint64  `json:"glitches"`
	Clipped        uint64  `json:"clipped"`
}

// Stats is the closed-page derived view of the accumulator, matching
// PageSummary's audio sub-object.
type Stats struct {
	AvgRMSDb            float64 `json:"avg_rms_db"`
	PeakRMSDb           float64 `json:"peak_rms_db"`
	MaxPeakDb           float64 `json:"max_peak_db"`
	DominantFreqHz      float64 `json:"dominant_freq_hz"`
	TotalGlitches       uint64  `json:"total_glitches"`
	TotalClipped        uint64  `json:"total_clipped"`
	ClippingPercent     float64 `json:"clipping_percent"`
	AvgZeroCrossingRate float64 `json:"avg_zero_crossing_rate"`
}

// Analyzer accumulates per-sample and per-window audio statistics for
// one decoded mono PCM stream. Not safe for concurrent use; owned by a
// single (endpoint, ssrc) stream task.
type Analyzer struct {
	sampleRate uint32
	window     int

	sampleCount  uint64
	sumSquares   float64
	peakAbs      int32
	glitchCount  uint64
	clipCount    uint64
	zeroCrossing uint64
	dcSum        float64
	prevSample   int16
	havePrev     bool
	dcEstimate   float64

	freqVotes map[int]uint64 // bin center (Hz, rounded to 10Hz) -> votes
	peakRMSDb float64

	buf []int16 // sliding window accumulator, reset every W samples
}

// New constructs an Analyzer for a stream decoded at sampleRate Hz with
// FFT window size window (0 selects DefaultWindowSize).
func New(sampleRate uint32, window int) *Analyzer {
	if window <= 0 {
		window = DefaultWindowSize
	}
	return &Analyzer{
		sampleRate: sampleRate,
		window:     window,
		freqVotes:  make(map[int]uint64),
		peakRMSDb:  math.Inf(-1),
		buf:        make([]int16, 0, window),
	}
}

// downmix averages multi-channel interleaved samples to mono.
func downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	n := len(samples) / channels
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// Push folds newly decoded samples (already downmixed to mono, or
// interleaved if channels>1) into the accumulator.
func (a *Analyzer) Push(samples []int16, channels int) {
	mono := downmix(samples, channels)
	for _, s := range mono {
		a.pushSample(s)
	}
}

func (a *Analyzer) pushSample(s int16) {
	a.sampleCount++
	f := float64(s)
	a.sumSquares += f * f
	if abs32(int32(s)) > a.peakAbs {
		a.peakAbs = abs32(int32(s))
	}
	a.dcSum += f
	a.dcEstimate += (f - a.dcEstimate) / 256 // slow-moving DC tracker

	if abs32(int32(s)) >= ClipThreshold {
		a.clipCount++
	}

	if a.havePrev {
		diff := int32(s) - int32(a.prevSample)
		if abs32(diff) >= GlitchThreshold {
			a.glitchCount++
		}
		prevCentered := float64(a.prevSample) - a.dcEstimate
		curCentered := f - a.dcEstimate
		if (prevCentered < 0) != (curCentered < 0) {
			a.zeroCrossing++
		}
	}
	a.prevSample = s
	a.havePrev = true

	a.buf = append(a.buf, s)
	if len(a.buf) >= a.window {
		a.processWindow(a.buf)
		a.buf = a.buf[:0]
	}
}

func (a *Analyzer) processWindow(window []int16) {
	n := len(window)
	data := make([]complex128, n)
	var sumSquares float64
	for i, s := range window {
		w := hannWindow(i, n)
		v := float64(s) * w
		data[i] = complex(v, 0)
		sumSquares += float64(s) * float64(s)
	}
	fftRadix2(data)

	rms := math.Sqrt(sumSquares / float64(n))
	rmsDb := 20 * math.Log10(rms/32768)
	if rmsDb > a.peakRMSDb {
		a.peakRMSDb = rmsDb
	}

	half := n / 2
	if half < 2 {
		return
	}
	mags := make([]float64, half)
	var sum float64
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(data[i])
		sum += mags[i]
	}
	mean := sum / float64(half)

	bestBin := 1
	bestMag := mags[1]
	for k := 2; k < half; k++ {
		if mags[k] > bestMag {
			bestMag = mags[k]
			bestBin = k
		}
	}
	if mean > 0 && bestMag/mean >= SpectralSNRFloor {
		freq := float64(bestBin) * float64(a.sampleRate) / float64(n)
		bucket := int(math.Round(freq/10) * 10)
		a.freqVotes[bucket]++
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// dominantFreq returns the argmax of the freq_votes histogram.
func (a *Analyzer) dominantFreq() float64 {
	var bestBucket int
	var bestVotes uint64
	for bucket, votes := range a.freqVotes {
		if votes > bestVotes {
			bestVotes = votes
			bestBucket = bucket
		}
	}
	return float64(bestBucket)
}

// Snapshot derives a metrics-tick view without clearing any counters.
func (a *Analyzer) Snapshot() Snapshot {
	if a.sampleCount == 0 {
		return Snapshot{}
	}
	rms := math.Sqrt(a.sumSquares / float64(a.sampleCount))
	rmsDb := dbFullScale(rms)
	peakDb := dbFullScale(float64(a.peakAbs))
	return Snapshot{
		RMSDb:          nanToZero(rmsDb),
		PeakDb:         nanToZero(peakDb),
		DominantFreqHz: a.dominantFreq(),
		Glitches:       a.glitchCount,
		Clipped:        a.clipCount,
	}
}

// Close derives the final, closed-page Stats from the accumulator.
func (a *Analyzer) Close() Stats {
	if a.sampleCount == 0 {
		return Stats{}
	}
	rms := math.Sqrt(a.sumSquares / float64(a.sampleCount))
	avgRMSDb := dbFullScale(rms)
	maxPeakDb := dbFullScale(float64(a.peakAbs))
	peakRMSDb := a.peakRMSDb
	if math.IsInf(peakRMSDb, -1) {
		peakRMSDb = avgRMSDb
	}
	clippingPct := 100 * float64(a.clipCount) / float64(a.sampleCount)
	zcRate := float64(a.zeroCrossing) / float64(a.sampleCount)

	return Stats{
		AvgRMSDb:            nanToZero(avgRMSDb),
		PeakRMSDb:           nanToZero(peakRMSDb),
		MaxPeakDb:           nanToZero(maxPeakDb),
		DominantFreqHz:      a.dominantFreq(),
		TotalGlitches:       a.glitchCount,
		TotalClipped:        a.clipCount,
		ClippingPercent:     nanToZero(clippingPct),
		AvgZeroCrossingRate: nanToZero(zcRate),
	}
}

func dbFullScale(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1) // clamped to 0.0 by nanToZero
	}
	return 20 * math.Log10(amplitude/32768)
}

// nanToZero replaces NaN and -Inf results (silence) with 0.0, per the
// spec's "floats are finite; NaN replaced with 0.0" rule.
func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}
