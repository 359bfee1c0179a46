// Package journal provides implementations of loopd's Journaler interface: a
// line-delimited JSON writer, a file journaler that doubles as a
// single-instance lock, and a human-readable writer backed by zap.
package journal

import (
	"git.unix.lgbt/diamondburned/loopd/loopd"
)

// multiWriter combines multiple journalers.
type multiWriter struct {
	writers []loopd.Journaler
}

// MultiWriter creates a journaler that writes to multiple other journalers.
// Every journaler is written to even if one fails; the first error is
// returned.
func MultiWriter(ws ...loopd.Journaler) loopd.Journaler {
	return &multiWriter{ws}
}

func (w *multiWriter) Write(event loopd.Event) error {
	var firstErr error
	for _, writer := range w.writers {
		if err := writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
