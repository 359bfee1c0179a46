package loopd

import "time"

// SupportsAsyncSignals reports whether this build delivers OS signals to the
// worker. Without them, the worker can only be paused or stopped through its
// methods, and iterations are never timed out.
func SupportsAsyncSignals() bool { return asyncSignals }

// alarm arms a single-shot timeout for one iteration. A nil channel is
// returned if nothing was armed. The returned function disarms the alarm.
type alarm interface {
	arm(d time.Duration) (<-chan time.Time, func())
}

// timerAlarm arms a wall-clock timer.
type timerAlarm struct{}

func (timerAlarm) arm(d time.Duration) (<-chan time.Time, func()) {
	// An alarm of 0 seconds is no alarm at all.
	if d <= 0 {
		return nil, func() {}
	}

	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

// nopAlarm never fires.
type nopAlarm struct{}

func (nopAlarm) arm(time.Duration) (<-chan time.Time, func()) {
	return nil, func() {}
}
