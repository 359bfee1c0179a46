package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"git.unix.lgbt/diamondburned/loopd/loopd"
	"github.com/diamondburned/backwardio"
	"github.com/pkg/errors"
)

// Reader implements a primitive reader that parses journals written by Writer
// from the bottom up, so the latest event comes first.
type Reader struct {
	b *backwardio.Scanner
}

// NewReader creates a new journal reader.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{backwardio.NewScanner(r)}
}

// Read reads a single entry, starting from the end of the file. An EOF error
// is returned if the file has been fully consumed.
func (r *Reader) Read() (loopd.Event, time.Time, error) {
	var line []byte
	var err error

	for {
		line, err = r.b.ReadUntil('\n')
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(line) > 0 {
			break
		}
	}

	var rawEvent struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &rawEvent); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode JSON")
	}

	event := loopd.NewEvent(rawEvent.Type)
	if event == nil {
		return nil, time.Time{}, unknownEventError(rawEvent.Type)
	}

	if err := json.Unmarshal(rawEvent.Data, event); err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to decode event data")
	}

	return event, rawEvent.Time, nil
}

// ErrNoEvent is returned by LastEvent if no event matched.
var ErrNoEvent = errors.New("no matching event in journal")

// LastEvent returns the latest event in the journal file that matches. Lines
// that can't be decoded are skipped.
func LastEvent(path string, match func(loopd.Event) bool) (loopd.Event, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, errors.Wrap(err, "failed to open journal")
	}
	defer f.Close()

	r := NewReader(f)

	for {
		ev, t, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, time.Time{}, ErrNoEvent
			}
			if isDecodeError(err) {
				continue
			}
			return nil, time.Time{}, err
		}

		if match(ev) {
			return ev, t, nil
		}
	}
}

// LastLifecycleEvent returns the latest event telling whether a worker
// started or stopped.
func LastLifecycleEvent(path string) (loopd.Event, time.Time, error) {
	return LastEvent(path, func(ev loopd.Event) bool {
		switch ev.(type) {
		case *loopd.EventWorkerStarting, *loopd.EventWorkerStopping:
			return true
		default:
			return false
		}
	})
}

type unknownEventError string

func (err unknownEventError) Error() string {
	return fmt.Sprintf("unknown event %q", string(err))
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var unknown unknownEventError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &unknown)
}
