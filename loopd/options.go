package loopd

import "time"

// Options is the immutable configuration of a single Daemon invocation.
// Changing any of these requires a fresh process.
type Options struct {
	force   bool
	memory  int
	sleep   time.Duration
	timeout time.Duration
}

// DefaultOptions returns the options used when no flags are given: not forced,
// 128MB of memory, no sleep and a 60 second timeout.
func DefaultOptions() Options {
	return NewOptions(false, 128, 0, time.Minute)
}

// NewOptions creates a new Options. No validation is done here; negative
// durations are clamped by the Worker at the point of use.
func NewOptions(force bool, memoryMB int, sleep, timeout time.Duration) Options {
	return Options{
		force:   force,
		memory:  memoryMB,
		sleep:   sleep,
		timeout: timeout,
	}
}

// Force returns true if the worker should run even when the host is down for
// maintenance.
func (o Options) Force() bool { return o.force }

// Memory returns the memory limit in megabytes. 0 disables the check.
func (o Options) Memory() int { return o.memory }

// Sleep returns the time to sleep between iterations.
func (o Options) Sleep() time.Duration { return o.sleep }

// Timeout returns the maximum time a single iteration may run for. 0 means
// that iterations are never timed out.
func (o Options) Timeout() time.Duration { return o.timeout }

// pauseSleep returns the time to sleep while paused, which is never shorter
// than a second.
func (o Options) pauseSleep() time.Duration {
	if o.sleep > time.Second {
		return o.sleep
	}
	return time.Second
}
