// Package loopd is the core of the loopd application: a Worker that runs a unit
// of work in a loop inside a long-lived process, and decides when that process
// should end.
//
// Mechanism of Operation
//
// Stopping
//
// A Worker never restarts itself. When it decides to stop, Daemon returns an
// Outcome and the process exits with its status. Whatever started the process
// (cron, systemd, a container runtime) is expected to start it again. Because
// of this, options such as the memory limit can only change across processes.
//
// There are two ways to stop. A clean stop lets the process run its deferred
// cleanup before exiting; a hard stop exits immediately. Both are journaled as
// "worker stopping" right before returning.
//
//    reason   | kind  | status
//    ---------+-------+-------
//    quit     | hard  | 0
//    memory   | clean | 12
//    restart  | clean | 0
//    timeout  | hard  | 1
//
// Restart Broadcasts
//
// Processes are told to restart through a Marker, which is a durable store
// holding the time of the last broadcast under a key. A Worker reads the marker
// once on start, then again after every iteration and every pause. If the value
// has changed, the worker stops cleanly. Broadcast always writes the current
// time and never reads it back, so no locking is needed beyond the store's own.
//
// Signals
//
// On platforms with signals, SIGTERM and SIGINT ask the worker to quit,
// SIGUSR2 pauses it and SIGCONT resumes it. These only flip flags that the loop
// looks at between iterations. Iterations that run for longer than the timeout
// are abandoned and the process is stopped hard; this is the only thing that
// can cut an iteration short.
package loopd
