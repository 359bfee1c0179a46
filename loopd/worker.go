package loopd

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// WorkFunc is the unit of work that a Worker runs once per iteration. Errors
// are journaled and otherwise ignored; a failed iteration is never retried.
type WorkFunc func(ctx context.Context) error

// Worker runs a WorkFunc in a loop until the process should stop. A Worker
// lives for as long as the process does; restarting means letting the process
// exit and having an outside supervisor start a new one.
type Worker struct {
	j      Journaler
	marker Marker
	host   Host
	key    string

	signals bool
	alarm   alarm
	sleep   func(d time.Duration)
	memory  func() (uint64, error)
	pid     int

	// states, flipped from signal handlers and read at checkpoints
	shouldQuit atomic.Bool
	paused     atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithMarker sets the restart marker store and the key to watch. Without a
// marker, the worker never restarts through a broadcast.
func WithMarker(m Marker, key string) WorkerOption {
	return func(w *Worker) {
		w.marker = m
		w.key = key
	}
}

// WithHost sets the host queried for maintenance mode. Without a host, the
// worker assumes it is never down.
func WithHost(h Host) WorkerOption {
	return func(w *Worker) {
		w.host = h
	}
}

// WithoutSignals disables OS signal handling and iteration timeouts, as if
// the platform did not support them.
func WithoutSignals() WorkerOption {
	return func(w *Worker) {
		w.signals = false
	}
}

// NewWorker creates a new Worker that writes its lifecycle events into j.
func NewWorker(j Journaler, opts ...WorkerOption) *Worker {
	if j == nil {
		j = DiscardJournaler
	}

	w := &Worker{
		j:       j,
		key:     RestartKey(""),
		signals: asyncSignals,
		sleep:   sleep,
		memory:  ResidentMemory,
		pid:     os.Getpid(),
	}

	for _, opt := range opts {
		opt(w)
	}

	// Decide once whether iterations can be preempted.
	if w.signals {
		w.alarm = timerAlarm{}
	} else {
		w.alarm = nopAlarm{}
	}

	return w
}

// Quit asks the worker to exit at its next checkpoint.
func (w *Worker) Quit() {
	w.shouldQuit.Store(true)
}

// ShouldQuit returns true if Quit was called.
func (w *Worker) ShouldQuit() bool {
	return w.shouldQuit.Load()
}

// Pause stops the worker from starting new iterations. The worker still
// checks whether it should stop while paused.
func (w *Worker) Pause() {
	if ev := w.setPaused(true); ev != nil {
		w.j.Write(ev)
	}
}

// Resume undoes Pause.
func (w *Worker) Resume() {
	if ev := w.setPaused(false); ev != nil {
		w.j.Write(ev)
	}
}

// setPaused flips the paused flag and returns the event describing the
// change, or nil if the worker was already in that state.
func (w *Worker) setPaused(paused bool) Event {
	if !w.paused.CompareAndSwap(!paused, paused) {
		return nil
	}
	if paused {
		return &EventWorkerPaused{PID: w.pid}
	}
	return &EventWorkerResumed{PID: w.pid}
}

// Paused returns true if the worker is paused.
func (w *Worker) Paused() bool {
	return w.paused.Load()
}

// Daemon runs work in a loop until the worker decides to stop, and returns
// how the process should end. The caller owns the process and must exit with
// the outcome's status; a Hard outcome must skip any further cleanup.
//
// Canceling ctx is treated as a quit request.
func (w *Worker) Daemon(ctx context.Context, work WorkFunc, opts Options) Outcome {
	if w.signals {
		stop := listenForSignals(w)
		defer stop()
	}

	restart := w.newRestartBaseline(ctx)

	w.j.Write(&EventWorkerStarting{
		PID:         w.pid,
		LastRestart: unixNano(restart.last),
		Signals:     w.signals,
	})

	for {
		// Before running, make sure that the host is not down for maintenance
		// and that we're not paused. If we are, then sleep for a bit and check
		// that we don't need to stop this process completely.
		if !w.shouldRun(opts) {
			if out, stop := w.pauseWorker(ctx, opts, restart); stop {
				return out
			}
			continue
		}

		if out, killed := w.runOnce(ctx, work, opts); killed {
			return out
		}

		w.sleep(opts.Sleep())

		// Finally, check if we've exceeded our memory limit or if we should
		// restart. If so, stop and let whatever is monitoring us restart the
		// process.
		if out, stop := w.stopIfNecessary(ctx, opts, restart); stop {
			return out
		}
	}
}

// shouldRun returns true if an iteration may run now.
func (w *Worker) shouldRun(opts Options) bool {
	down := w.host != nil && w.host.IsDownForMaintenance()
	return !((down && !opts.Force()) || w.paused.Load())
}

// pauseWorker sleeps for at least a second, then checks if the worker should
// stop.
func (w *Worker) pauseWorker(ctx context.Context, opts Options, restart *restartBaseline) (Outcome, bool) {
	w.sleep(opts.pauseSleep())
	return w.stopIfNecessary(ctx, opts, restart)
}

// runOnce runs a single iteration. If the iteration outlives its alarm, then
// it is abandoned and a hard outcome is returned.
func (w *Worker) runOnce(ctx context.Context, work WorkFunc, opts Options) (Outcome, bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fired, disarm := w.alarm.arm(opts.Timeout())
	defer disarm()

	if fired == nil {
		w.iterationDone(work(ctx))
		return Outcome{}, false
	}

	done := make(chan error, 1)
	go func() { done <- work(ctx) }()

	select {
	case err := <-done:
		w.iterationDone(err)
		return Outcome{}, false
	case <-fired:
		return w.kill(ExitTimeout, StopTimeout), true
	}
}

func (w *Worker) iterationDone(err error) {
	if err != nil {
		w.j.Write(&EventIterationFailed{Error: err.Error()})
	}
}

// stopIfNecessary checks, in order, for a quit request, the memory limit and
// a restart broadcast.
func (w *Worker) stopIfNecessary(ctx context.Context, opts Options, restart *restartBaseline) (Outcome, bool) {
	switch {
	case w.shouldQuit.Load() || ctx.Err() != nil:
		return w.kill(ExitOK, StopQuit), true
	case w.memoryExceeded(opts.Memory()):
		return w.stop(ExitMemory, StopMemory), true
	case restart.changed(ctx):
		return w.stop(ExitOK, StopRestart), true
	default:
		return Outcome{}, false
	}
}

// memoryExceeded returns true if the process uses at least limit megabytes. A
// limit of 0 or less is never exceeded.
func (w *Worker) memoryExceeded(limit int) bool {
	if limit <= 0 {
		return false
	}

	b, err := w.memory()
	if err != nil {
		w.warn("memory", err)
		return false
	}

	return megabytes(b) >= float64(limit)
}

// stop returns a clean outcome after notifying the journal.
func (w *Worker) stop(status int, reason StopReason) Outcome {
	return w.terminate(Outcome{Kind: Clean, Status: status, Reason: reason})
}

// kill returns a hard outcome after notifying the journal.
func (w *Worker) kill(status int, reason StopReason) Outcome {
	return w.terminate(Outcome{Kind: Hard, Status: status, Reason: reason})
}

func (w *Worker) terminate(out Outcome) Outcome {
	// Best effort; the process exits regardless.
	w.j.Write(&EventWorkerStopping{
		PID:    w.pid,
		Reason: out.Reason,
		Status: out.Status,
		Hard:   out.Kind == Hard,
	})

	return out
}

func (w *Worker) warn(component string, err error) {
	w.j.Write(&EventWarning{
		Component: component,
		Error:     err.Error(),
	})
}

// restartBaseline is the restart marker value seen when the loop started.
type restartBaseline struct {
	w     *Worker
	last  time.Time
	known bool
}

func (w *Worker) newRestartBaseline(ctx context.Context) *restartBaseline {
	b := &restartBaseline{w: w}
	b.last, b.known = b.read(ctx)
	return b
}

// changed returns true if the marker moved away from the baseline. If the
// baseline could not be read at startup, then the first successful read
// becomes the baseline instead.
func (b *restartBaseline) changed(ctx context.Context) bool {
	t, ok := b.read(ctx)
	if !ok {
		return false
	}

	if !b.known {
		b.last, b.known = t, true
		return false
	}

	return !t.Equal(b.last)
}

func (b *restartBaseline) read(ctx context.Context) (time.Time, bool) {
	if b.w.marker == nil {
		return time.Time{}, true
	}

	t, err := b.w.marker.LastRestart(ctx, b.w.key)
	if err != nil {
		b.w.warn("marker", errors.Wrapf(err, "failed to read %q", b.w.key))
		return time.Time{}, false
	}

	return t, true
}

// sleep is never cut short, not even by a quit request. Quitting is only
// observed at the next checkpoint.
func sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
