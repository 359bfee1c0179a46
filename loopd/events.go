package loopd

// eventType describes an event type.
type eventType = string

const (
	eventWarning          eventType = "warning"
	eventAcquired         eventType = "acquired lock"
	eventWorkerStarting   eventType = "worker starting"
	eventWorkerStopping   eventType = "worker stopping"
	eventWorkerPaused     eventType = "worker paused"
	eventWorkerResumed    eventType = "worker resumed"
	eventIterationFailed  eventType = "iteration failed"
	eventRestartBroadcast eventType = "restart broadcast"
	eventMaintenance      eventType = "maintenance changed"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewEvent creates a new event from the given event type. It is used primarily
// for decoding events from its type. Nil is returned if the event type is
// unknown.
func NewEvent(eventType string) Event {
	switch eventType {
	case eventWarning:
		return &EventWarning{}
	case eventAcquired:
		return &EventAcquired{}
	case eventWorkerStarting:
		return &EventWorkerStarting{}
	case eventWorkerStopping:
		return &EventWorkerStopping{}
	case eventWorkerPaused:
		return &EventWorkerPaused{}
	case eventWorkerResumed:
		return &EventWorkerResumed{}
	case eventIterationFailed:
		return &EventIterationFailed{}
	case eventRestartBroadcast:
		return &EventRestartBroadcast{}
	case eventMaintenance:
		return &EventMaintenance{}
	default:
		return nil
	}
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string { return eventWarning }
func (ev *EventWarning) event()       {}

// EventAcquired is emitted when the flock (i.e. write lock on the journal) is
// acquired, which is on startup.
type EventAcquired struct {
	PID int `json:"pid"`
}

func (ev *EventAcquired) Type() string { return eventAcquired }
func (ev *EventAcquired) event()       {}

// EventWorkerStarting is emitted once before the first iteration.
type EventWorkerStarting struct {
	PID         int   `json:"pid"`
	LastRestart int64 `json:"last_restart,omitempty"` // unix nanoseconds
	Signals     bool  `json:"signals"`
}

func (ev *EventWorkerStarting) Type() string { return eventWorkerStarting }
func (ev *EventWorkerStarting) event()       {}

// EventWorkerStopping is emitted right before the process exits, for both
// clean and hard stops.
type EventWorkerStopping struct {
	PID    int        `json:"pid"`
	Reason StopReason `json:"reason"`
	Status int        `json:"status"`
	Hard   bool       `json:"hard,omitempty"`
}

func (ev *EventWorkerStopping) Type() string { return eventWorkerStopping }
func (ev *EventWorkerStopping) event()       {}

// Outcome returns the outcome that this event describes.
func (ev *EventWorkerStopping) Outcome() Outcome {
	kind := Clean
	if ev.Hard {
		kind = Hard
	}
	return Outcome{Kind: kind, Status: ev.Status, Reason: ev.Reason}
}

// EventWorkerPaused is emitted when the worker is told to pause.
type EventWorkerPaused struct {
	PID int `json:"pid"`
}

func (ev *EventWorkerPaused) Type() string { return eventWorkerPaused }
func (ev *EventWorkerPaused) event()       {}

// EventWorkerResumed is emitted when the worker is told to resume.
type EventWorkerResumed struct {
	PID int `json:"pid"`
}

func (ev *EventWorkerResumed) Type() string { return eventWorkerResumed }
func (ev *EventWorkerResumed) event()       {}

// EventIterationFailed is emitted when the work unit returns an error. The
// loop carries on regardless.
type EventIterationFailed struct {
	Error string `json:"error"`
}

func (ev *EventIterationFailed) Type() string { return eventIterationFailed }
func (ev *EventIterationFailed) event()       {}

// EventRestartBroadcast is emitted by whoever broadcasts a restart.
type EventRestartBroadcast struct {
	Key  string `json:"key"`
	Time int64  `json:"time"` // unix nanoseconds
}

func (ev *EventRestartBroadcast) Type() string { return eventRestartBroadcast }
func (ev *EventRestartBroadcast) event()       {}

// EventMaintenance is emitted when a watched host goes down for maintenance or
// comes back up.
type EventMaintenance struct {
	Path string `json:"path"`
	Down bool   `json:"down"`
}

func (ev *EventMaintenance) Type() string { return eventMaintenance }
func (ev *EventMaintenance) event()       {}
