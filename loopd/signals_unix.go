//go:build unix

package loopd

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

const asyncSignals = true

// listenForSignals flips the worker's flags on SIGTERM or SIGINT (quit),
// SIGUSR2 (pause) and SIGCONT (resume). Signals never interrupt an iteration.
//
// The receiving goroutine only flips flags; journaling happens on a separate
// goroutine so that a slow journal can't make os/signal drop a signal.
func listenForSignals(w *Worker) (stop func()) {
	// Quit gets its own channel so that a burst of pause and resume signals
	// can never crowd it out.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	pause := make(chan os.Signal, 2)
	signal.Notify(pause, syscall.SIGUSR2, syscall.SIGCONT)

	events := make(chan Event, 16)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()

		for {
			select {
			case <-done:
				return
			case sig := <-quit:
				w.handleSignal(sig)
			case sig := <-pause:
				ev := w.handleSignal(sig)
				if ev == nil {
					continue
				}
				select {
				case events <- ev:
				default:
					// The flag is already flipped; only the journal entry is
					// lost.
				}
			}
		}
	}()

	go func() {
		defer wg.Done()

		for {
			select {
			case ev := <-events:
				w.j.Write(ev)
			case <-done:
				// Flush whatever is left.
				for {
					select {
					case ev := <-events:
						w.j.Write(ev)
					default:
						return
					}
				}
			}
		}
	}()

	return func() {
		signal.Stop(quit)
		signal.Stop(pause)
		close(done)
		wg.Wait()
	}
}

// handleSignal flips the flag that sig maps to. The event to journal is
// returned instead of written, or nil if nothing changed.
func (w *Worker) handleSignal(sig os.Signal) Event {
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		w.Quit()
	case syscall.SIGUSR2:
		return w.setPaused(true)
	case syscall.SIGCONT:
		return w.setPaused(false)
	}
	return nil
}
