package transmit

import (
	"context"
	"time"
)

// Pacer schedules one send every frameInterval against an absolute
// deadline (rather than a free-running time.Ticker as in the teacher's
// audioSendLoop), so drift from slow frame preparation does not
// accumulate: each Wait call sleeps to nextDeadline, then advances
// nextDeadline by exactly one interval regardless of how late the
// previous send actually went out. Only when the schedule has fallen more
// than lateFrames intervals behind does it restart from the current time.
type Pacer struct {
	interval     time.Duration
	nextDeadline time.Time
	late         uint64
}

// NewPacer starts the schedule at time.Now(); the first Wait call
// returns immediately.
func NewPacer(interval time.Duration, start time.Time) *Pacer {
	return &Pacer{interval: interval, nextDeadline: start}
}

// lateFrames is how many intervals the schedule may fall behind before a
// frame counts as late and the schedule is restarted from now.
const lateFrames = 3

// Wait blocks until the next scheduled send time, or ctx is canceled.
// Returns true, without waiting, if this frame's deadline was more than
// lateFrames intervals in the past when Wait was called (counted in
// Late()); the next deadline is then one interval from now. A deadline
// that has passed by less than that returns immediately and is not late.
func (p *Pacer) Wait(ctx context.Context) (late bool, err error) {
	now := time.Now()
	deadline := p.nextDeadline

	if now.Sub(deadline) > lateFrames*p.interval {
		p.late++
		p.nextDeadline = now.Add(p.interval)
		return true, nil
	}
	p.nextDeadline = deadline.Add(p.interval)
	if !now.Before(deadline) {
		return false, nil
	}

	timer := time.NewTimer(deadline.Sub(now))
	defer timer.Stop()
	select {
	case <-timer.C:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Late returns the number of frames whose deadline was more than
// lateFrames intervals in the past when scheduled.
func (p *Pacer) Late() uint64 { return p.late }
