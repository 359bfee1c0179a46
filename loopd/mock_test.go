package loopd

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"
)

// mockJournal is an in-memory storage of journals, primarily used for testing.
// A zero-value instance is a valid instance.
type mockJournal struct {
	mutex    sync.Mutex
	journals []Event
}

var _ Journaler = (*mockJournal)(nil)

// Write appends a journal event into the internal store.
func (m *mockJournal) Write(ev Event) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.journals = append(m.journals, ev)
	return nil
}

// Types returns the types of all stored events in order.
func (m *mockJournal) Types() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	types := make([]string, len(m.journals))
	for i, ev := range m.journals {
		types[i] = ev.Type()
	}
	return types
}

// Verify verifies that the given journals slice is equal to the one stored
// internally. If strict is true, then a length check is performed, otherwise,
// the unmatched events are returned.
//
// Consecutive calls to Verify will match the remaining unmatched events.
func (m *mockJournal) Verify(t *testing.T, strict bool, journals []Event) []Event {
	t.Helper()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if strict && len(journals) != len(m.journals) {
		t.Errorf("mismatch journal length, got %d, expected %d", len(m.journals), len(journals))
		return nil
	}

	if len(journals) > len(m.journals) {
		t.Errorf("too few journals, got %d, expected at least %d", len(m.journals), len(journals))
		return nil
	}

	for i, ev := range journals {
		if !reflect.DeepEqual(m.journals[i], ev) {
			t.Errorf("journal %d mismatch, got %#v, expected %#v", i, m.journals[i], ev)
		}
	}

	m.journals = m.journals[len(journals):]
	return m.journals
}

// mockMarker is an in-memory Marker. A zero-value instance is a valid
// instance.
type mockMarker struct {
	mutex sync.Mutex
	times map[string]time.Time
	err   error
	reads int
}

var _ Marker = (*mockMarker)(nil)

func (m *mockMarker) LastRestart(ctx context.Context, key string) (time.Time, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.reads++

	if m.err != nil {
		return time.Time{}, m.err
	}
	return m.times[key], nil
}

func (m *mockMarker) SetRestart(ctx context.Context, key string, t time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.err != nil {
		return m.err
	}

	if m.times == nil {
		m.times = make(map[string]time.Time)
	}
	m.times[key] = t
	return nil
}

func (m *mockMarker) setErr(err error) {
	m.mutex.Lock()
	m.err = err
	m.mutex.Unlock()
}

// mockHost is a Host whose maintenance state is toggled by tests.
type mockHost struct {
	mutex sync.Mutex
	down  bool
}

func (h *mockHost) IsDownForMaintenance() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.down
}

func (h *mockHost) setDown(down bool) {
	h.mutex.Lock()
	h.down = down
	h.mutex.Unlock()
}

// fakeSleeper records every sleep instead of sleeping, calling onSleep with the
// number of sleeps so far.
type fakeSleeper struct {
	mutex   sync.Mutex
	sleeps  []time.Duration
	onSleep func(n int)
}

func (s *fakeSleeper) sleep(d time.Duration) {
	s.mutex.Lock()
	s.sleeps = append(s.sleeps, d)
	n := len(s.sleeps)
	s.mutex.Unlock()

	if s.onSleep != nil {
		s.onSleep(n)
	}
}

func (s *fakeSleeper) Sleeps() []time.Duration {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]time.Duration(nil), s.sleeps...)
}

const testPID = 1

// newTestWorker creates a worker without signals that never really sleeps and
// always reports no memory usage.
func newTestWorker(j Journaler, s *fakeSleeper, opts ...WorkerOption) *Worker {
	w := NewWorker(j, append(opts, WithoutSignals())...)
	w.pid = testPID
	w.sleep = s.sleep
	w.memory = func() (uint64, error) { return 0, nil }
	return w
}
