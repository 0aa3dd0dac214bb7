package analyzer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sine(freqHz float64, sampleRate uint32, n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
	}
	return out
}

func TestDominantFrequencyWithinTolerance(t *testing.T) {
	a := New(8000, 1024)
	samples := sine(1000, 8000, 1024*8, 16000)
	a.Push(samples, 1)

	stats := a.Close()
	assert.InDelta(t, 1000, stats.DominantFreqHz, 10)
}

func TestClippingDetected(t *testing.T) {
	a := New(8000, 1024)
	samples := make([]int16, 2048)
	for i := range samples {
		samples[i] = 32767
	}
	a.Push(samples, 1)
	stats := a.Close()
	assert.Equal(t, uint64(2048), stats.TotalClipped)
	assert.Equal(t, 100.0, stats.ClippingPercent)
}

func TestGlitchDetected(t *testing.T) {
	a := New(8000, 1024)
	samples := make([]int16, 2048)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0
		} else {
			samples[i] = 30000
		}
	}
	a.Push(samples, 1)
	stats := a.Close()
	assert.Greater(t, stats.TotalGlitches, uint64(0))
}

func TestDownmixStereoToMono(t *testing.T) {
	a := New(8000, 1024)
	stereo := make([]int16, 2048)
	for i := 0; i < len(stereo); i += 2 {
		stereo[i] = 100
		stereo[i+1] = -100
	}
	a.Push(stereo, 2)
	// averaging +100/-100 should yield near-silence, not clipping.
	stats := a.Close()
	assert.Equal(t, uint64(0), stats.TotalClipped)
}

func TestSnapshotDoesNotClearCounters(t *testing.T) {
	a := New(8000, 1024)
	samples := sine(1000, 8000, 1024*4, 16000)
	a.Push(samples, 1)

	first := a.Snapshot()
	second := a.Snapshot()
	assert.Equal(t, first.Glitches, second.Glitches)
	assert.Equal(t, first.Clipped, second.Clipped)
}

func TestStatsAreFiniteOnSilence(t *testing.T) {
	a := New(8000, 1024)
	silence := make([]int16, 2048)
	a.Push(silence, 1)
	stats := a.Close()
	assert.False(t, math.IsNaN(stats.AvgRMSDb))
	assert.False(t, math.IsInf(stats.AvgRMSDb, 0))
	assert.Equal(t, 0.0, stats.AvgRMSDb)
}
