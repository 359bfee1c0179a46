package loopd

import "fmt"

// Exit statuses reported by a Worker. Supervisors may compare against these to
// decide how to respawn the daemon, so keep them stable.
const (
	ExitOK      = 0
	ExitTimeout = 1
	ExitMemory  = 12
)

// Termination describes how the process should end.
type Termination uint8

const (
	// Clean is a normal exit after the lifecycle notification. Deferred
	// cleanup is allowed to run.
	Clean Termination = iota
	// Hard is an immediate exit that skips any further cleanup.
	Hard
)

func (t Termination) String() string {
	switch t {
	case Clean:
		return "clean"
	case Hard:
		return "hard"
	default:
		return fmt.Sprintf("Termination(%d)", uint8(t))
	}
}

// StopReason is the condition that ended the daemon loop.
type StopReason string

const (
	StopQuit    StopReason = "quit"
	StopMemory  StopReason = "memory"
	StopRestart StopReason = "restart"
	StopTimeout StopReason = "timeout"
)

// Outcome is the terminal state of a Daemon call. The entry point owning the
// process is expected to act on it.
type Outcome struct {
	Kind   Termination
	Status int
	Reason StopReason
}

func (o Outcome) String() string {
	return fmt.Sprintf("%s stop (%s), status %d", o.Kind, o.Reason, o.Status)
}
