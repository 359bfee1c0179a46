//go:build !unix

package loopd

const asyncSignals = false

func listenForSignals(w *Worker) (stop func()) {
	return func() {}
}
