package loopd

// Host is the application the worker runs within.
type Host interface {
	// IsDownForMaintenance returns true if the application does not want any
	// work done right now.
	IsDownForMaintenance() bool
}
