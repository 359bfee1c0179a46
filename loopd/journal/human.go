package journal

import (
	"git.unix.lgbt/diamondburned/loopd/loopd"
	"go.uber.org/zap"
)

// HumanWriter is a journaler that logs events for humans to read.
type HumanWriter struct {
	log *zap.Logger
}

var _ loopd.Journaler = HumanWriter{}

// NewHumanWriter creates a journaler that logs into the given logger. Events
// that indicate a problem are logged as warnings.
func NewHumanWriter(log *zap.Logger) HumanWriter {
	return HumanWriter{log}
}

// Write logs the event with its type as the message. It never fails.
func (w HumanWriter) Write(ev loopd.Event) error {
	data := zap.Any("data", ev)

	switch ev := ev.(type) {
	case *loopd.EventWarning, *loopd.EventIterationFailed:
		w.log.Warn(ev.Type(), data)
	case *loopd.EventWorkerStopping:
		w.log.Info(ev.Type(),
			zap.String("reason", string(ev.Reason)),
			zap.Int("status", ev.Status),
			zap.Bool("hard", ev.Hard))
	default:
		w.log.Info(ev.Type(), data)
	}

	return nil
}
