package loopd

// Journaler describes an event logger. Writes must be safe to call from
// multiple goroutines.
type Journaler interface {
	Write(Event) error
}

// JournalFunc is a function that implements Journaler.
type JournalFunc func(Event) error

// Write calls f.
func (f JournalFunc) Write(ev Event) error { return f(ev) }

// DiscardJournaler is a Journaler that drops every event.
var DiscardJournaler Journaler = JournalFunc(func(Event) error { return nil })
