package transmit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerFirstWaitReturnsImmediately(t *testing.T) {
	p := NewPacer(20*time.Millisecond, time.Now())
	start := time.Now()
	late, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, late)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestPacerReportsLateWhenBehindSchedule(t *testing.T) {
	p := NewPacer(20*time.Millisecond, time.Now().Add(-time.Second))
	late, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, late)
	assert.EqualValues(t, 1, p.Late())
}

func TestPacerHonorsContextCancel(t *testing.T) {
	p := NewPacer(time.Second, time.Now().Add(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Wait(ctx)
	assert.Error(t, err)
}
