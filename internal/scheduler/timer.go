package scheduler

import "time"

// deadlineTimer is a single-shot wakeup: arm it for a duration, wait on
// C, or cancel before it fires. It is owned exclusively by the
// Scheduler's dispatch goroutine — no other goroutine touches it — so
// it needs no locking of its own; cross-goroutine requests to re-arm
// earlier go through the Scheduler's wake channel instead.
type deadlineTimer struct {
	t     *time.Timer
	armed bool
}

func newDeadlineTimer() *deadlineTimer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		<-t.C
	}
	return &deadlineTimer{t: t}
}

// C is the channel that fires when the timer's deadline elapses.
func (d *deadlineTimer) C() <-chan time.Time { return d.t.C }

// arm schedules a wakeup after d, replacing any previously armed
// deadline.
func (d *deadlineTimer) arm(d2 time.Duration) {
	d.cancel()
	if d2 < 0 {
		d2 = 0
	}
	d.t.Reset(d2)
	d.armed = true
}

// cancel disarms the timer if it is currently armed.
func (d *deadlineTimer) cancel() {
	if !d.armed {
		return
	}
	if !d.t.Stop() {
		select {
		case <-d.t.C:
		default:
		}
	}
	d.armed = false
}
