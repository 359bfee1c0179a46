// Package exec provides an abstraction around package os' Process
// implementation for easier testing, and a work unit that runs a command once
// per iteration.
package exec

import (
	"context"
	"os"
	osexec "os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Process describes a command process.
type Process interface {
	PID() int
	Signal(os.Signal) error
	Kill() error
	Wait() ExitStatus
}

// ExitStatus is a process' exit status.
type ExitStatus struct {
	PID   int
	Code  int // -1 if killed by a signal
	Error error
}

type process struct {
	*os.Process
}

var _ Process = process{}

// StartProcess creates a new command process on the system. The process
// inherits the given files as its stdin, stdout and stderr. On Linux, the
// process is terminated when the calling thread dies.
func StartProcess(argv []string, files []*os.File) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("no command given")
	}

	path, err := osexec.LookPath(argv[0])
	if err != nil {
		return nil, err
	}

	// Lock this goroutine to the OS thread for Pdeathsig, which is delivered
	// when the thread that started the child dies rather than the process.
	// See https://github.com/golang/go/issues/27505.
	runtime.LockOSThread()

	p, err := os.StartProcess(path, argv, &os.ProcAttr{
		Files: files,
		Sys:   sysProcAttr(),
	})
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}

	return process{p}, nil
}

func (proc process) PID() int {
	return proc.Pid
}

// Wait waits for the process to exit. It must be called on the same goroutine
// as StartProcess.
func (proc process) Wait() ExitStatus {
	s, err := proc.Process.Wait()
	runtime.UnlockOSThread()

	code := -1
	if s != nil {
		code = s.ExitCode()
	}

	return ExitStatus{
		PID:   proc.Pid,
		Code:  code,
		Error: err,
	}
}

// KillTimeout is the time an abandoned command has to exit after being
// interrupted before it is killed.
var KillTimeout = 5 * time.Second

// Command is a work unit that runs a command to completion every time it is
// called.
type Command struct {
	KillTimeout time.Duration

	argv      []string
	startProc func() (Process, error)
}

// NewCommand creates a new Command that runs argv with the current process'
// standard streams.
func NewCommand(argv []string) *Command {
	files := []*os.File{os.Stdin, os.Stdout, os.Stderr}

	return &Command{
		KillTimeout: KillTimeout,
		argv:        argv,
		startProc: func() (Process, error) {
			return StartProcess(argv, files)
		},
	}
}

// String returns the command line.
func (c *Command) String() string {
	return strings.Join(c.argv, " ")
}

// Run starts the command and waits for it to exit. An error is returned if
// the command can't be started or exits with a non-zero status. If ctx is
// canceled first, the command is interrupted, then killed after KillTimeout.
func (c *Command) Run(ctx context.Context) error {
	p, err := c.startProc()
	if err != nil {
		return errors.Wrapf(err, "failed to start %q", c.String())
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-done:
			return
		case <-ctx.Done():
		}

		if err := p.Signal(os.Interrupt); err != nil {
			// Try to SIGKILL if we can't SIGINT (looking at you, Windows).
			p.Kill()
			return
		}

		after := time.NewTimer(c.KillTimeout)
		defer after.Stop()

		select {
		case <-done:
		case <-after.C:
			p.Kill()
		}
	}()

	status := p.Wait()

	if status.Error != nil {
		return errors.Wrapf(status.Error, "failed to wait for %q", c.String())
	}

	if status.Code != 0 {
		return errors.Errorf("%q (pid %d) exited with status %d", c.String(), status.PID, status.Code)
	}

	return nil
}
