package jitter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccountantPerfectSequence(t *testing.T) {
	a := New(8000)
	base := time.Now()
	for i := uint16(0); i < 250; i++ {
		a.Update(i, uint32(i)*160, 160, base.Add(time.Duration(i)*20*time.Millisecond))
	}
	stats := a.Close()
	assert.EqualValues(t, 250, stats.Packets)
	assert.EqualValues(t, 0, stats.Lost)
	assert.Equal(t, 0.0, stats.LossPct)
}

func TestAccountantInvariantPacketsPlusLostEqualsRange(t *testing.T) {
	a := New(8000)
	base := time.Now()
	seq := uint16(100)
	for i := 0; i < 100; i++ {
		if i%10 == 9 {
			seq++ // simulate every 10th packet dropped at the socket
		}
		a.Update(seq, uint32(seq)*160, 160, base.Add(time.Duration(i)*20*time.Millisecond))
		seq++
	}
	stats := a.Close()
	assert.Equal(t, stats.Packets+stats.Lost, uint64(stats.HighestSeq)-uint64(stats.FirstSeq)+1)
	assert.GreaterOrEqual(t, stats.LossPct, 0.0)
	assert.LessOrEqual(t, stats.LossPct, 100.0)
}

func TestAccountantLossPercentZeroIffNoLoss(t *testing.T) {
	a := New(8000)
	base := time.Now()
	for i := uint16(0); i < 50; i++ {
		a.Update(i, uint32(i)*160, 160, base.Add(time.Duration(i)*20*time.Millisecond))
	}
	stats := a.Close()
	assert.Equal(t, uint64(0), stats.Lost)
	assert.Equal(t, 0.0, stats.LossPct)
}

func TestAccountantReorderWithinToleranceDoesNotCountLoss(t *testing.T) {
	a := New(8000)
	base := time.Now()
	a.Update(10, 1600, 160, base)
	a.Update(11, 1760, 160, base.Add(20*time.Millisecond))
	outcome := a.Update(10, 1600, 160, base.Add(40*time.Millisecond)) // duplicate/reorder
	assert.Equal(t, OutcomeReorderOrDuplicate, outcome)
	assert.EqualValues(t, 0, a.Close().Lost)
}

func TestAccountantLargeBackwardJumpIsStreamRestart(t *testing.T) {
	a := New(8000)
	base := time.Now()
	a.Update(40000, 0, 160, base)
	// 30000-40000 as int16 is -10000: backward by more than MaxDropout.
	outcome := a.Update(30000, 160, 160, base.Add(20*time.Millisecond))
	assert.Equal(t, OutcomeStreamRestart, outcome)
}

func TestAccountantSequenceWraparound(t *testing.T) {
	a := New(8000)
	base := time.Now()
	a.Update(65534, 0, 160, base)
	a.Update(65535, 160, 160, base.Add(20*time.Millisecond))
	a.Update(0, 320, 160, base.Add(40*time.Millisecond))
	a.Update(1, 480, 160, base.Add(60*time.Millisecond))
	stats := a.Close()
	assert.EqualValues(t, 4, stats.Packets)
	assert.EqualValues(t, 0, stats.Lost)
}

func TestAccountantJitterIsSmoothed(t *testing.T) {
	a := New(8000)
	base := time.Now()
	for i := uint16(0); i < 20; i++ {
		jitterSkew := time.Duration(0)
		if i%3 == 0 {
			jitterSkew = 5 * time.Millisecond
		}
		a.Update(i, uint32(i)*160, 160, base.Add(time.Duration(i)*20*time.Millisecond+jitterSkew))
	}
	stats := a.Close()
	assert.Greater(t, stats.JitterMs, 0.0)
}
