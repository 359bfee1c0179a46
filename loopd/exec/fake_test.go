package exec

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// fakeProcess pretends to run for a duration, then exits with a code. If
// grace is larger than 0, then an interrupted process takes that long to exit,
// unless it is killed.
type fakeProcess struct {
	once  sync.Once
	stop  chan struct{}
	timer *time.Timer
	grace time.Duration

	pid     int
	code    int32
	exit    int32
	signals int32
}

const exitUnset = -2

func newFakeProcess(pid int, run time.Duration, code int, grace time.Duration) *fakeProcess {
	return &fakeProcess{
		stop:  make(chan struct{}),
		timer: time.NewTimer(run),
		grace: grace,
		pid:   pid,
		code:  int32(code),
		exit:  exitUnset,
	}
}

func (fake *fakeProcess) PID() int { return fake.pid }

func (fake *fakeProcess) Signal(sig os.Signal) error {
	atomic.AddInt32(&fake.signals, 1)

	var status int32

	switch sig {
	case os.Interrupt:
		status = 130
	case os.Kill:
		status = -1
	default:
		return errors.New("unknown signal")
	}

	go func() {
		if fake.grace > 0 && sig != os.Kill {
			select {
			case <-time.After(fake.grace):
			case <-fake.stop:
				return
			}
		}

		if !atomic.CompareAndSwapInt32(&fake.exit, exitUnset, status) {
			return
		}

		close(fake.stop)
		fake.timer.Stop()
	}()

	return nil
}

func (fake *fakeProcess) Kill() error {
	return fake.Signal(os.Kill)
}

func (fake *fakeProcess) Wait() ExitStatus {
	fake.once.Do(func() {
		select {
		case <-fake.stop:
		case <-fake.timer.C:
			atomic.CompareAndSwapInt32(&fake.exit, exitUnset, fake.code)
		}
	})

	return ExitStatus{
		PID:  fake.pid,
		Code: int(atomic.LoadInt32(&fake.exit)),
	}
}

// Signals returns the number of signals sent to the process.
func (fake *fakeProcess) Signals() int {
	return int(atomic.LoadInt32(&fake.signals))
}
